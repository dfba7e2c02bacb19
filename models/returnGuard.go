package models

import (
	"fmt"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnViolation describes one variant whose requested return quantity
// cannot be honored against the reference purchase.
type ReturnViolation struct {
	VariantId          int             `json:"variant_id"`
	RequestedQty       decimal.Decimal `json:"requested_qty"`
	OriginalQty        decimal.Decimal `json:"original_qty"`
	AlreadyReturnedQty decimal.Decimal `json:"already_returned_qty"`
	MaxReturnable      decimal.Decimal `json:"max_returnable"`
	Reason             string          `json:"reason"`
}

// ValidateReturnAgainstPurchase checks requested return quantities against
// what the reference purchase still has returnable. It locks the reference
// transaction row FOR UPDATE so two concurrent returns against the same
// purchase serialize on the reference row and cannot both read a stale
// already-returned total. Must run inside the same transaction as the ledger
// write it protects.
//
// excludeTxnId is skipped when summing prior returns, so a transaction being
// approved does not count its own pending quantities against itself.
func ValidateReturnAgainstPurchase(tx *gorm.DB, businessId string, referenceTxnId int, requested map[int]decimal.Decimal, excludeTxnId int) *utils.ApiError {
	var reference InventoryTransaction
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND business_id = ?", referenceTxnId, businessId).
		Preload("Items").
		First(&reference).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.NewApiError(utils.ErrCodeNotFound,
				fmt.Sprintf("reference transaction %d not found", referenceTxnId))
		}
		return utils.NewDependencyFailure("failed to load reference transaction", err)
	}
	if reference.TransactionType != InventoryTransactionTypePurchase {
		return utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("reference transaction %d is %s; returns must reference a purchase", referenceTxnId, reference.TransactionType))
	}
	if reference.Status != InventoryTransactionStatusApproved {
		return utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("reference transaction %d is %s; returns must reference an approved purchase", referenceTxnId, reference.Status))
	}

	priorStatuses := []InventoryTransactionStatus{InventoryTransactionStatusApproved}
	if config.StrictPendingReturnReservation() {
		// Pending requests reserve quantity too, so two pending returns
		// cannot be individually valid but jointly over-return.
		priorStatuses = append(priorStatuses, InventoryTransactionStatusPending)
	}

	var priorItems []InventoryTransactionItem
	err = tx.
		Joins("JOIN inventory_transactions ON inventory_transactions.id = inventory_transaction_items.transaction_id").
		Where("inventory_transactions.business_id = ?", businessId).
		Where("inventory_transactions.transaction_type = ?", InventoryTransactionTypePurchaseReturn).
		Where("inventory_transactions.reference_transaction_id = ?", referenceTxnId).
		Where("inventory_transactions.status IN ?", priorStatuses).
		Where("inventory_transactions.id <> ?", excludeTxnId).
		Find(&priorItems).Error
	if err != nil {
		return utils.NewDependencyFailure("failed to load prior returns", err)
	}

	violations := computeReturnViolations(reference.Items, priorItems, requested)
	if len(violations) > 0 {
		apiErr := utils.NewApiError(utils.ErrCodeReturnQuantityExceeded, "return quantities exceed what the purchase has returnable")
		apiErr.Details = violations
		return apiErr
	}
	return nil
}

// computeReturnViolations is the arithmetic core of the guard, kept free of
// database access.
func computeReturnViolations(referenceItems []InventoryTransactionItem, priorReturnItems []InventoryTransactionItem, requested map[int]decimal.Decimal) []ReturnViolation {
	originalQty := map[int]decimal.Decimal{}
	for _, item := range referenceItems {
		originalQty[item.VariantId] = originalQty[item.VariantId].Add(item.Quantity.Abs())
	}
	alreadyReturned := map[int]decimal.Decimal{}
	for _, item := range priorReturnItems {
		alreadyReturned[item.VariantId] = alreadyReturned[item.VariantId].Add(item.Quantity.Abs())
	}

	var violations []ReturnViolation
	for variantId, requestedQty := range requested {
		original := originalQty[variantId]
		returned := alreadyReturned[variantId]
		if original.IsZero() {
			violations = append(violations, ReturnViolation{
				VariantId:          variantId,
				RequestedQty:       requestedQty,
				OriginalQty:        original,
				AlreadyReturnedQty: returned,
				MaxReturnable:      decimal.Zero,
				Reason:             "variant was not part of the original purchase",
			})
			continue
		}
		maxReturnable := original.Sub(returned)
		if requestedQty.GreaterThan(maxReturnable) {
			violations = append(violations, ReturnViolation{
				VariantId:          variantId,
				RequestedQty:       requestedQty,
				OriginalQty:        original,
				AlreadyReturnedQty: returned,
				MaxReturnable:      maxReturnable,
				Reason:             fmt.Sprintf("requested %s exceeds max returnable %s", requestedQty, maxReturnable),
			})
		}
	}
	return violations
}
