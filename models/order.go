package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id"`
	OrderNumber       string          `gorm:"size:255;not null" json:"order_number"`
	SequenceNo        decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	CustomerName      string          `gorm:"size:100;not null" json:"customer_name" binding:"required"`
	CustomerPhone     string          `gorm:"size:20;not null" json:"customer_phone" binding:"required"`
	ShippingAddress   string          `gorm:"type:text" json:"shipping_address"`
	FulfillmentType   FulfillmentType `gorm:"type:enum('self_delivery','third_party_courier','store');not null" json:"fulfillment_type"`
	CurrentStatus     OrderStatus     `gorm:"type:enum('intake','follow_up','converted','hold','packed','assigned','out_for_delivery','handover_to_courier','in_transit','store_sale','delivered','cancelled','rejected','return_initiated','returned');not null" json:"current_status"`
	StockState        OrderStockState `gorm:"type:enum('none','reserved','committed');not null;default:none" json:"stock_state"`
	AssignedRiderId   *int            `gorm:"index" json:"assigned_rider_id"`
	AssignedRider     *Rider          `gorm:"foreignKey:AssignedRiderId" json:"assigned_rider"`
	CourierPartner    string          `gorm:"size:100" json:"courier_partner"`
	CourierTrackingId string          `gorm:"size:100" json:"courier_tracking_id"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CancelReason      string          `gorm:"size:255" json:"cancel_reason"`
	Items             []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	// Transition timestamps, each written once when the order first enters
	// the corresponding status.
	ConvertedAt       *time.Time `json:"converted_at"`
	PackedAt          *time.Time `json:"packed_at"`
	AssignedAt        *time.Time `json:"assigned_at"`
	DispatchedAt      *time.Time `json:"dispatched_at"`
	HandedOverAt      *time.Time `json:"handed_over_at"`
	InTransitAt       *time.Time `json:"in_transit_at"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	StoreSoldAt       *time.Time `json:"store_sold_at"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	RejectedAt        *time.Time `json:"rejected_at"`
	ReturnInitiatedAt *time.Time `json:"return_initiated_at"`
	ReturnedAt        *time.Time `json:"returned_at"`
	CreatedBy         int        `gorm:"not null" json:"created_by"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy         int        `json:"updated_by"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	VariantId int             `gorm:"index;not null" json:"variant_id" binding:"required"`
	Variant   *ProductVariant `gorm:"foreignKey:VariantId" json:"variant"`
	Name      string          `gorm:"size:255" json:"name"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty" binding:"required"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	CustomerName    string         `json:"customer_name" binding:"required"`
	CustomerPhone   string         `json:"customer_phone" binding:"required"`
	ShippingAddress string         `json:"shipping_address"`
	FulfillmentType string         `json:"fulfillment_type" binding:"required"`
	Notes           string         `json:"notes"`
	Items           []NewOrderItem `json:"items" binding:"required,dive"`
}

type NewOrderItem struct {
	VariantId int             `json:"variant_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderStatusChange is the status-update request consumed from the HTTP
// layer. Status accepts legacy spellings; everything downstream of ingress
// sees the canonical enum only.
type OrderStatusChange struct {
	Status            string `json:"status" binding:"required"`
	Reason            string `json:"reason"`
	RiderId           int    `json:"rider_id"`
	CourierPartner    string `json:"courier_partner"`
	CourierTrackingId string `json:"courier_tracking_id"`
}

// OrderStatusChangeResult carries the updated order plus non-fatal warnings
// from best-effort side effects (stock bookkeeping clamps, outbox write
// failures). Warnings never indicate a failed transition.
type OrderStatusChangeResult struct {
	Order    *Order   `json:"order"`
	Warnings []string `json:"warnings,omitempty"`
}

const orderNumberPrefix = "ORD-"

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	fulfillmentType, err := ParseFulfillmentType(input.FulfillmentType)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}
	if len(input.Items) == 0 {
		return nil, utils.NewApiError(utils.ErrCodeValidation, "order requires at least one item")
	}

	variantIds := make([]int, 0, len(input.Items))
	items := make([]OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if !item.Qty.IsPositive() {
			return nil, utils.NewApiError(utils.ErrCodeValidation,
				fmt.Sprintf("variant %d: qty must be positive", item.VariantId))
		}
		variantIds = append(variantIds, item.VariantId)
		items = append(items, OrderItem{
			VariantId: item.VariantId,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	err = utils.MassValidateResourceIds(ctx, []utils.ValidationRule[int]{
		{
			Model:   ProductVariant{},
			Ids:     variantIds,
			Message: "one or more variants do not exist",
			Filter:  utils.Filter{Cond: "business_id = ?", Values: []interface{}{businessId}},
		},
	})
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}

	order := Order{
		BusinessId:      businessId,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: input.ShippingAddress,
		FulfillmentType: fulfillmentType,
		CurrentStatus:   OrderStatusIntake,
		StockState:      OrderStockStateNone,
		Notes:           input.Notes,
		Items:           items,
		CreatedBy:       userId,
	}

	db := config.GetDB()
	tx := db.Begin()
	seqNo, err := utils.GetSequence[Order](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	order.SequenceNo = decimal.NewFromInt(seqNo)
	order.OrderNumber = orderNumberPrefix + fmt.Sprint(seqNo)

	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishRetailEvent(ctx, tx, businessId, time.Now().UTC(), order.ID, EventReferenceTypeOrder, &order, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Order](ctx, businessId, id, "Items", "AssignedRider")
}

// UpdateOrderFulfillmentType corrects the delivery channel. Only permitted
// before the order reaches packing; after that the channel is locked because
// stock side effects start depending on it.
func UpdateOrderFulfillmentType(ctx context.Context, orderId int, rawType string) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !config.AllowFulfillmentTypeCorrection() {
		return nil, utils.NewApiError(utils.ErrCodeValidation, "fulfillment type correction is disabled")
	}

	fulfillmentType, err := ParseFulfillmentType(rawType)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}

	order, err := utils.FetchModel[Order](ctx, businessId, orderId)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("order %d not found", orderId))
	}
	switch order.CurrentStatus {
	case OrderStatusIntake, OrderStatusFollowUp, OrderStatusHold, OrderStatusConverted:
		// channel still correctable
	default:
		return nil, utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("fulfillment type cannot change once the order is %s", order.CurrentStatus))
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND business_id = ? AND current_status = ?", orderId, businessId, order.CurrentStatus).
		Update("fulfillment_type", fulfillmentType)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewConflict("order changed while updating fulfillment type; retry")
	}
	order.FulfillmentType = fulfillmentType
	return order, nil
}

// UpdateOrderStatus executes one transition of the order state machine:
// normalize → validate (rules engine) → compare-and-set commit → stock
// trigger → outbox event. The compare-and-set on the prior status serializes
// concurrent transitions on the same order; a losing writer gets Conflict,
// never a silent overwrite.
func UpdateOrderStatus(ctx context.Context, orderId int, input *OrderStatusChange) (*OrderStatusChangeResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	actor := ActorFromContext(ctx)
	logger := config.GetLogger()

	target, err := ParseOrderStatus(input.Status)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}

	order, err := utils.FetchModel[Order](ctx, businessId, orderId, "Items")
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("order %d not found", orderId))
	}

	// Same-status request is a no-op success: nothing to validate, no
	// timestamps or stock to touch.
	if target == order.CurrentStatus {
		return &OrderStatusChangeResult{Order: order}, nil
	}

	if apiErr := ValidateOrderTransition(order, target, actor, input); apiErr != nil {
		return nil, apiErr
	}
	if target == OrderStatusAssigned {
		if apiErr := ValidateRiderAssignment(ctx, businessId, input.RiderId); apiErr != nil {
			return nil, apiErr
		}
	}

	oldStatus := order.CurrentStatus
	now := time.Now().UTC()

	updates := map[string]interface{}{
		"current_status": target,
		"updated_by":     userId,
	}
	applyTransitionFields(order, target, input, now, updates)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	// Optimistic check: the prior status read above is the precondition.
	result := tx.Model(&Order{}).
		Where("id = ? AND business_id = ? AND current_status = ?", orderId, businessId, oldStatus).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflict(
			fmt.Sprintf("order %d is no longer %s; reload and retry", orderId, oldStatus))
	}

	order.CurrentStatus = target

	// Stock side effects commit atomically with the status change.
	triggerResult, err := ApplyOrderStockForStatusTransition(tx, logger, order, oldStatus, target)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	warnings := append([]string{}, triggerResult.Warnings...)

	// Notification/courier-sync dispatch is decoupled via the outbox; a
	// failed outbox write must not undo a committed customer-facing status,
	// so it degrades to a warning.
	if err := PublishRetailEvent(ctx, tx, businessId, now, order.ID, EventReferenceTypeOrder, order, oldStatus, PubSubMessageActionUpdate); err != nil {
		config.LogWarn(logger, "order.go", "UpdateOrderStatus", "PublishRetailEvent", order.ID, err)
		warnings = append(warnings, "event dispatch not queued: "+err.Error())
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	updated, err := utils.FetchModel[Order](ctx, businessId, orderId, "Items", "AssignedRider")
	if err != nil {
		// The transition committed; return what we have.
		return &OrderStatusChangeResult{Order: order, Warnings: warnings}, nil
	}
	return &OrderStatusChangeResult{Order: updated, Warnings: warnings}, nil
}

// applyTransitionFields collects the status-specific column updates:
// write-once timestamps and the extra fields the transition carries.
func applyTransitionFields(order *Order, target OrderStatus, input *OrderStatusChange, now time.Time, updates map[string]interface{}) {
	stamp := func(column string, existing *time.Time) {
		if existing == nil {
			updates[column] = now
		}
	}

	switch target {
	case OrderStatusConverted:
		stamp("converted_at", order.ConvertedAt)
	case OrderStatusPacked:
		stamp("packed_at", order.PackedAt)
		if order.CurrentStatus == OrderStatusAssigned {
			// returning to packed releases the rider
			updates["assigned_rider_id"] = nil
		}
	case OrderStatusAssigned:
		stamp("assigned_at", order.AssignedAt)
		updates["assigned_rider_id"] = input.RiderId
	case OrderStatusOutForDelivery:
		stamp("dispatched_at", order.DispatchedAt)
	case OrderStatusHandoverToCourier:
		stamp("handed_over_at", order.HandedOverAt)
		updates["courier_partner"] = input.CourierPartner
		updates["courier_tracking_id"] = input.CourierTrackingId
	case OrderStatusInTransit:
		stamp("in_transit_at", order.InTransitAt)
	case OrderStatusDelivered:
		stamp("delivered_at", order.DeliveredAt)
	case OrderStatusStoreSale:
		stamp("store_sold_at", order.StoreSoldAt)
	case OrderStatusCancelled:
		stamp("cancelled_at", order.CancelledAt)
		if input.Reason != "" {
			updates["cancel_reason"] = input.Reason
		}
	case OrderStatusRejected:
		stamp("rejected_at", order.RejectedAt)
		if input.Reason != "" {
			updates["cancel_reason"] = input.Reason
		}
	case OrderStatusReturnInitiated:
		stamp("return_initiated_at", order.ReturnInitiatedAt)
	case OrderStatusReturned:
		stamp("returned_at", order.ReturnedAt)
	}
}
