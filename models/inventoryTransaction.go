package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryTransaction is one entry of the append-only stock ledger. Entries
// are never deleted; they end as approved, rejected or voided.
type InventoryTransaction struct {
	ID                     int                        `gorm:"primary_key" json:"id"`
	BusinessId             string                     `gorm:"index;not null" json:"business_id"`
	TransactionNumber      string                     `gorm:"size:255;not null" json:"transaction_number"`
	SequenceNo             decimal.Decimal            `gorm:"type:decimal(15);not null" json:"sequence_no"`
	TransactionType        InventoryTransactionType   `gorm:"type:enum('purchase','purchase_return','damage','adjustment');not null" json:"transaction_type"`
	Status                 InventoryTransactionStatus `gorm:"type:enum('pending','approved','rejected','voided');not null;default:pending" json:"status"`
	TransactionDate        time.Time                  `gorm:"not null" json:"transaction_date"`
	VendorId               *int                       `gorm:"index" json:"vendor_id"`
	Vendor                 *Vendor                    `gorm:"foreignKey:VendorId" json:"vendor"`
	InvoiceNo              string                     `gorm:"size:100" json:"invoice_no"`
	ReferenceTransactionId *int                       `gorm:"index" json:"reference_transaction_id"`
	Reason                 string                     `gorm:"size:255" json:"reason"`
	Notes                  string                     `gorm:"type:text" json:"notes"`
	Items                  []InventoryTransactionItem `gorm:"foreignKey:TransactionId" json:"items"`
	RequiresApproval       bool                       `gorm:"-" json:"requires_approval"`
	CreatedBy              int                        `gorm:"not null" json:"created_by"`
	CreatedByName          string                     `gorm:"size:100" json:"created_by_name"`
	ApprovedBy             *int                       `json:"approved_by"`
	ApprovedByName         string                     `gorm:"size:100" json:"approved_by_name"`
	ApprovedAt             *time.Time                 `json:"approved_at"`
	RejectedBy             *int                       `json:"rejected_by"`
	RejectedAt             *time.Time                 `json:"rejected_at"`
	RejectReason           string                     `gorm:"size:255" json:"reject_reason"`
	VoidedBy               *int                       `json:"voided_by"`
	VoidedAt               *time.Time                 `json:"voided_at"`
	VoidReason             string                     `gorm:"size:255" json:"void_reason"`
	CreatedAt              time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

type InventoryTransactionItem struct {
	ID            int              `gorm:"primary_key" json:"id"`
	TransactionId int              `gorm:"index;not null" json:"transaction_id"`
	VariantId     int              `gorm:"index;not null" json:"variant_id"`
	Variant       *ProductVariant  `gorm:"foreignKey:VariantId" json:"variant"`
	Quantity      decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitCost      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	StockBefore   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"stock_before"`
	StockAfter    *decimal.Decimal `gorm:"type:decimal(20,4)" json:"stock_after"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryTransaction struct {
	TransactionType        string                        `json:"transaction_type" binding:"required"`
	TransactionDate        *time.Time                    `json:"transaction_date"`
	VendorId               *int                          `json:"vendor_id"`
	InvoiceNo              string                        `json:"invoice_no"`
	ReferenceTransactionId *int                          `json:"reference_transaction_id"`
	Reason                 string                        `json:"reason"`
	Notes                  string                        `json:"notes"`
	Items                  []NewInventoryTransactionItem `json:"items" binding:"required,dive"`
}

type NewInventoryTransactionItem struct {
	VariantId int             `json:"variant_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

var inventoryNumberPrefixes = map[InventoryTransactionType]string{
	InventoryTransactionTypePurchase:       "PUR-",
	InventoryTransactionTypePurchaseReturn: "PRT-",
	InventoryTransactionTypeDamage:         "DMG-",
	InventoryTransactionTypeAdjustment:     "ADJ-",
}

// normalizeItemQuantity enforces the sign convention of the ledger: inbound
// types store positive magnitudes, outbound types store negative magnitudes,
// adjustments keep the caller's sign.
func normalizeItemQuantity(txnType InventoryTransactionType, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsZero() {
		return decimal.Zero, errors.New("quantity must be non-zero")
	}
	switch {
	case txnType.IsInbound():
		return qty.Abs(), nil
	case txnType.IsOutbound():
		return qty.Abs().Neg(), nil
	default:
		return qty, nil
	}
}

// CreateInventoryTransaction records a ledger entry.
//
// Purchases always enter approved with stock applied in the same
// transaction. Other types enter approved only when the creator is
// privileged (maker-checker: everyone else's entry waits pending with no
// stock effect until a checker approves it).
func CreateInventoryTransaction(ctx context.Context, input *NewInventoryTransaction) (*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	actor := ActorFromContext(ctx)
	logger := config.GetLogger()

	txnType, err := ParseInventoryTransactionType(input.TransactionType)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}
	if len(input.Items) == 0 {
		return nil, utils.NewApiError(utils.ErrCodeValidation, "transaction requires at least one item")
	}
	if txnType.RequiresReference() && input.ReferenceTransactionId == nil {
		return nil, utils.NewMissingRequiredField(
			"purchase_return requires a reference purchase", []string{"reference_transaction_id"})
	}

	variantIds := make([]int, 0, len(input.Items))
	items := make([]InventoryTransactionItem, 0, len(input.Items))
	requestedQty := map[int]decimal.Decimal{}
	for _, item := range input.Items {
		qty, err := normalizeItemQuantity(txnType, item.Quantity)
		if err != nil {
			return nil, utils.NewApiError(utils.ErrCodeValidation,
				fmt.Sprintf("variant %d: %s", item.VariantId, err))
		}
		variantIds = append(variantIds, item.VariantId)
		requestedQty[item.VariantId] = requestedQty[item.VariantId].Add(qty.Abs())
		items = append(items, InventoryTransactionItem{
			VariantId: item.VariantId,
			Quantity:  qty,
			UnitCost:  item.UnitCost,
		})
	}

	rules := []utils.ValidationRule[int]{
		{
			Model:   ProductVariant{},
			Ids:     variantIds,
			Message: "one or more variants do not exist",
			Filter:  utils.Filter{Cond: "business_id = ?", Values: []interface{}{businessId}},
		},
	}
	if err := utils.MassValidateResourceIds(ctx, rules); err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, err.Error())
	}
	if input.VendorId != nil {
		if err := utils.ValidateResourceId[Vendor](ctx, businessId, *input.VendorId); err != nil {
			return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("vendor %d not found", *input.VendorId))
		}
	}

	now := time.Now().UTC()
	// Only purchases may backdate. Returns, damage and adjustments are always
	// stamped with the server's clock, an audit-integrity rule.
	transactionDate := now
	if txnType == InventoryTransactionTypePurchase && input.TransactionDate != nil {
		transactionDate = input.TransactionDate.UTC()
	}

	autoApprove := txnType == InventoryTransactionTypePurchase || actor.IsPrivileged()

	txn := InventoryTransaction{
		BusinessId:             businessId,
		TransactionType:        txnType,
		Status:                 InventoryTransactionStatusPending,
		TransactionDate:        transactionDate,
		VendorId:               input.VendorId,
		InvoiceNo:              input.InvoiceNo,
		ReferenceTransactionId: input.ReferenceTransactionId,
		Reason:                 input.Reason,
		Notes:                  input.Notes,
		Items:                  items,
		CreatedBy:              actor.UserId,
		CreatedByName:          actor.UserName,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if autoApprove {
		if err := AcquireInventoryPostingLock(tx, businessId); err != nil {
			tx.Rollback()
			return nil, utils.NewDependencyFailure("inventory posting is busy", err)
		}
		defer ReleaseInventoryPostingLock(tx, businessId)
	}

	if txnType.RequiresReference() {
		if apiErr := ValidateReturnAgainstPurchase(tx, businessId, *input.ReferenceTransactionId, requestedQty, 0); apiErr != nil {
			tx.Rollback()
			return nil, apiErr
		}
	}

	seqNo, err := utils.GetSequence[InventoryTransaction](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	txn.SequenceNo = decimal.NewFromInt(seqNo)
	txn.TransactionNumber = inventoryNumberPrefixes[txnType] + fmt.Sprint(seqNo)

	if autoApprove {
		txn.Status = InventoryTransactionStatusApproved
		txn.ApprovedBy = &actor.UserId
		txn.ApprovedByName = actor.UserName
		txn.ApprovedAt = &now
		if err := applyTransactionStock(tx, &txn); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Create(&txn).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "inventoryTransaction.go", "CreateInventoryTransaction", "Create", input, err)
		return nil, err
	}
	if err := PublishRetailEvent(ctx, tx, businessId, now, txn.ID, EventReferenceTypeInventoryTransaction, &txn, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	txn.RequiresApproval = txn.Status == InventoryTransactionStatusPending
	return &txn, nil
}

// applyTransactionStock posts each item's signed quantity against on-hand
// stock and stamps the before/after snapshot. Caller owns the transaction;
// any failure must roll the whole posting back.
func applyTransactionStock(tx *gorm.DB, txn *InventoryTransaction) error {
	for i := range txn.Items {
		item := &txn.Items[i]
		adjust, err := AdjustVariantStock(tx, txn.BusinessId, item.VariantId, item.Quantity)
		if err != nil {
			return err
		}
		item.StockBefore = &adjust.StockBefore
		item.StockAfter = &adjust.StockAfter
	}
	return nil
}

// reverseTransactionStock undoes an approved posting symmetrically, for
// voiding.
func reverseTransactionStock(tx *gorm.DB, txn *InventoryTransaction) error {
	for _, item := range txn.Items {
		if _, err := AdjustVariantStock(tx, txn.BusinessId, item.VariantId, item.Quantity.Neg()); err != nil {
			return err
		}
	}
	return nil
}

func GetInventoryTransaction(ctx context.Context, id int) (*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	txn, err := utils.FetchModel[InventoryTransaction](ctx, businessId, id, "Items", "Vendor")
	if err != nil {
		return nil, err
	}
	txn.RequiresApproval = txn.Status == InventoryTransactionStatusPending
	return txn, nil
}
