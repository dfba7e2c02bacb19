package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func riderContext(ctx context.Context, riderId int) context.Context {
	ctx = utils.SetUserIdInContext(ctx, 100+riderId)
	ctx = utils.SetUserNameInContext(ctx, "Rider")
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleRider))
	ctx = utils.SetRiderIdInContext(ctx, riderId)
	return ctx
}

func fetchVariant(t *testing.T, ctx context.Context, id int) *models.ProductVariant {
	t.Helper()
	v, err := models.GetProductVariant(ctx, id)
	if err != nil {
		t.Fatalf("GetProductVariant(%d): %v", id, err)
	}
	return v
}

func mustTransition(t *testing.T, ctx context.Context, orderId int, status string) *models.OrderStatusChangeResult {
	t.Helper()
	result, err := models.UpdateOrderStatus(ctx, orderId, &models.OrderStatusChange{Status: status})
	if err != nil {
		t.Fatalf("transition to %s: %v", status, err)
	}
	return result
}

// Full self-delivery lifecycle: stock is reserved at packing, committed at
// delivery, and restored after a return, with each stock effect applied
// exactly once.
func TestOrderFulfillment_SelfDeliveryStockFlow(t *testing.T) {
	ctx, _ := setupIntegration(t)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "TSH-1", Name: "T-Shirt"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	_, err = models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variant.ID, Quantity: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("opening purchase: %v", err)
	}

	rider1, err := models.CreateRider(ctx, &models.NewRider{Name: "Kyaw", Phone: "09790000002"})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}
	rider2, err := models.CreateRider(ctx, &models.NewRider{Name: "Mg Mg", Phone: "09790000003"})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerName:    "Daw Mya",
		CustomerPhone:   "09790000010",
		ShippingAddress: "Yangon",
		FulfillmentType: "self_delivery",
		Items: []models.NewOrderItem{
			{VariantId: variant.ID, Qty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.CurrentStatus != models.OrderStatusIntake {
		t.Fatalf("new order status = %s, want intake", order.CurrentStatus)
	}

	mustTransition(t, ctx, order.ID, "converted")
	result := mustTransition(t, ctx, order.ID, "packed")
	if result.Order.StockState != models.OrderStockStateReserved {
		t.Errorf("stock_state after packing = %s, want reserved", result.Order.StockState)
	}
	v := fetchVariant(t, ctx, variant.ID)
	if !v.ReservedStock.Equal(decimal.NewFromInt(2)) {
		t.Errorf("reserved after packing = %s, want 2", v.ReservedStock)
	}
	if !v.CurrentStock.Equal(decimal.NewFromInt(50)) {
		t.Errorf("on-hand after packing = %s, want 50 (reservation must not deduct)", v.CurrentStock)
	}
	packedAt := result.Order.PackedAt
	if packedAt == nil {
		t.Fatal("packed_at not stamped")
	}

	// Same-status request is a no-op success: no timestamps, no stock.
	result = mustTransition(t, ctx, order.ID, "packed")
	if result.Order.PackedAt == nil || !result.Order.PackedAt.Equal(*packedAt) {
		t.Errorf("no-op transition must not restamp packed_at")
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.ReservedStock.Equal(decimal.NewFromInt(2)) {
		t.Errorf("reserved after no-op = %s, want 2", v.ReservedStock)
	}

	_, err = models.UpdateOrderStatus(ctx, order.ID, &models.OrderStatusChange{Status: "assigned", RiderId: rider1.ID})
	if err != nil {
		t.Fatalf("assign rider: %v", err)
	}

	// Un-assign back to packed and re-assign; the reservation must not double.
	mustTransition(t, ctx, order.ID, "packed")
	v = fetchVariant(t, ctx, variant.ID)
	if !v.ReservedStock.Equal(decimal.NewFromInt(2)) {
		t.Errorf("reserved after un-assign = %s, want 2", v.ReservedStock)
	}
	_, err = models.UpdateOrderStatus(ctx, order.ID, &models.OrderStatusChange{Status: "assigned", RiderId: rider1.ID})
	if err != nil {
		t.Fatalf("re-assign rider: %v", err)
	}

	mustTransition(t, riderContext(ctx, rider1.ID), order.ID, "out_for_delivery")

	// The other rider cannot report the outcome.
	_, err = models.UpdateOrderStatus(riderContext(ctx, rider2.ID), order.ID, &models.OrderStatusChange{Status: "delivered"})
	if err == nil {
		t.Fatal("expected AccessDenied for the non-holding rider")
	}
	apiErr, ok := utils.AsApiError(err)
	if !ok || apiErr.Code != utils.ErrCodeAccessDenied {
		t.Fatalf("expected ACCESS_DENIED, got %v", err)
	}
	if apiErr.LockedBy == "" {
		t.Error("AccessDenied should name the holding rider")
	}

	result = mustTransition(t, riderContext(ctx, rider1.ID), order.ID, "delivered")
	if result.Order.StockState != models.OrderStockStateCommitted {
		t.Errorf("stock_state after delivery = %s, want committed", result.Order.StockState)
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.Equal(decimal.NewFromInt(48)) {
		t.Errorf("on-hand after delivery = %s, want 48", v.CurrentStock)
	}
	if !v.ReservedStock.IsZero() {
		t.Errorf("reserved after delivery = %s, want 0", v.ReservedStock)
	}

	mustTransition(t, ctx, order.ID, "return_initiated")
	result = mustTransition(t, ctx, order.ID, "returned")
	if result.Order.StockState != models.OrderStockStateNone {
		t.Errorf("stock_state after return = %s, want none", result.Order.StockState)
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.Equal(decimal.NewFromInt(50)) {
		t.Errorf("on-hand after return = %s, want 50", v.CurrentStock)
	}
}

// A third-party courier order must never take the self-delivery dispatch
// edge, and cancelling after packing releases the reservation.
func TestOrderFulfillment_CourierChannelAndCancel(t *testing.T) {
	ctx, _ := setupIntegration(t)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "CAP-1", Name: "Cap"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	_, err = models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variant.ID, Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("opening purchase: %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerName:    "U Ba",
		CustomerPhone:   "09790000011",
		FulfillmentType: "courier",
		Items: []models.NewOrderItem{
			{VariantId: variant.ID, Qty: decimal.NewFromInt(3)},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	mustTransition(t, ctx, order.ID, "converted")
	mustTransition(t, ctx, order.ID, "packed")

	_, err = models.UpdateOrderStatus(ctx, order.ID, &models.OrderStatusChange{Status: "out_for_delivery"})
	if err == nil {
		t.Fatal("expected InvalidTransition for out_for_delivery on a courier order")
	}
	if apiErr, ok := utils.AsApiError(err); !ok || apiErr.Code != utils.ErrCodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	// Handover needs courier fields.
	_, err = models.UpdateOrderStatus(ctx, order.ID, &models.OrderStatusChange{Status: "handover_to_courier"})
	if err == nil {
		t.Fatal("expected MissingRequiredField for handover without courier fields")
	}
	if apiErr, ok := utils.AsApiError(err); !ok || apiErr.Code != utils.ErrCodeMissingRequiredField {
		t.Fatalf("expected MISSING_REQUIRED_FIELD, got %v", err)
	}

	result := mustTransition(t, ctx, order.ID, "cancelled")
	if result.Order.StockState != models.OrderStockStateNone {
		t.Errorf("stock_state after cancel = %s, want none", result.Order.StockState)
	}
	v := fetchVariant(t, ctx, variant.ID)
	if !v.ReservedStock.IsZero() {
		t.Errorf("reserved after cancel = %s, want 0", v.ReservedStock)
	}
	if !v.CurrentStock.Equal(decimal.NewFromInt(10)) {
		t.Errorf("on-hand after cancel = %s, want 10", v.CurrentStock)
	}

	// Cancelled is terminal.
	_, err = models.UpdateOrderStatus(ctx, order.ID, &models.OrderStatusChange{Status: "packed"})
	if err == nil {
		t.Fatal("expected InvalidTransition out of cancelled")
	}

	// Events for each transition landed in the outbox for the dispatcher.
	db := config.GetDB()
	var outboxCount int64
	if err := db.Model(&models.PubSubMessageRecord{}).
		Where("reference_type = ? AND reference_id = ?", models.EventReferenceTypeOrder, order.ID).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount < 4 {
		t.Errorf("outbox records = %d, want at least 4 (create + 3 transitions)", outboxCount)
	}
}
