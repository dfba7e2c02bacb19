package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

const minRejectReasonLength = 5

// ApproveInventoryTransaction moves a pending ledger entry to approved and
// posts its stock effect, atomically. Returns are re-validated against the
// reference purchase at approval time since quantities may have been
// consumed by other returns while this one sat pending.
func ApproveInventoryTransaction(ctx context.Context, txnId int) (*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	actor := ActorFromContext(ctx)
	if !actor.IsPrivileged() {
		return nil, utils.NewAccessDenied("only managers and administrators may approve inventory transactions", "")
	}
	logger := config.GetLogger()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := AcquireInventoryPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, utils.NewDependencyFailure("inventory posting is busy", err)
	}
	defer ReleaseInventoryPostingLock(tx, businessId)

	var txn InventoryTransaction
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND business_id = ?", txnId, businessId).
		Preload("Items").
		First(&txn).Error
	if err != nil {
		tx.Rollback()
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("transaction %d not found", txnId))
	}
	if txn.Status != InventoryTransactionStatusPending {
		tx.Rollback()
		return nil, utils.NewConflict(
			fmt.Sprintf("transaction %d is %s; only pending transactions can be approved", txnId, txn.Status))
	}

	if txn.TransactionType.RequiresReference() && txn.ReferenceTransactionId != nil {
		requested := map[int]decimal.Decimal{}
		for _, item := range txn.Items {
			requested[item.VariantId] = requested[item.VariantId].Add(item.Quantity.Abs())
		}
		if apiErr := ValidateReturnAgainstPurchase(tx, businessId, *txn.ReferenceTransactionId, requested, txn.ID); apiErr != nil {
			tx.Rollback()
			return nil, apiErr
		}
	}

	if err := applyTransactionStock(tx, &txn); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now().UTC()

	// CAS on status keeps a racing approver from double-posting.
	result := tx.Model(&InventoryTransaction{}).
		Where("id = ? AND business_id = ? AND status = ?", txnId, businessId, InventoryTransactionStatusPending).
		Updates(map[string]interface{}{
			"status":           InventoryTransactionStatusApproved,
			"approved_by":      actor.UserId,
			"approved_by_name": actor.UserName,
			"approved_at":      now,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflict(fmt.Sprintf("transaction %d was modified concurrently", txnId))
	}

	for _, item := range txn.Items {
		err := tx.Model(&InventoryTransactionItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"stock_before": item.StockBefore,
				"stock_after":  item.StockAfter,
			}).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	txn.Status = InventoryTransactionStatusApproved
	txn.ApprovedBy = &actor.UserId
	txn.ApprovedByName = actor.UserName
	txn.ApprovedAt = &now

	if err := PublishRetailEvent(ctx, tx, businessId, now, txn.ID, EventReferenceTypeInventoryTransaction, &txn, InventoryTransactionStatusPending, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "inventoryApproval.go", "ApproveInventoryTransaction", "Commit", txnId, err)
		return nil, err
	}
	return &txn, nil
}

// RejectInventoryTransaction moves a pending entry to rejected. Stock is
// never touched; the entry stays in the ledger for audit.
func RejectInventoryTransaction(ctx context.Context, txnId int, reason string) (*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	actor := ActorFromContext(ctx)
	if !actor.IsPrivileged() {
		return nil, utils.NewAccessDenied("only managers and administrators may reject inventory transactions", "")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < minRejectReasonLength {
		return nil, utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("rejection reason must be at least %d characters", minRejectReasonLength))
	}

	db := config.GetDB()
	now := time.Now().UTC()

	txn, err := utils.FetchModel[InventoryTransaction](ctx, businessId, txnId, "Items")
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("transaction %d not found", txnId))
	}
	if txn.Status != InventoryTransactionStatusPending {
		return nil, utils.NewConflict(
			fmt.Sprintf("transaction %d is %s; only pending transactions can be rejected", txnId, txn.Status))
	}

	tx := db.WithContext(ctx).Begin()
	result := tx.Model(&InventoryTransaction{}).
		Where("id = ? AND business_id = ? AND status = ?", txnId, businessId, InventoryTransactionStatusPending).
		Updates(map[string]interface{}{
			"status":        InventoryTransactionStatusRejected,
			"rejected_by":   actor.UserId,
			"rejected_at":   now,
			"reject_reason": reason,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflict(fmt.Sprintf("transaction %d was modified concurrently", txnId))
	}

	txn.Status = InventoryTransactionStatusRejected
	txn.RejectedBy = &actor.UserId
	txn.RejectedAt = &now
	txn.RejectReason = reason

	if err := PublishRetailEvent(ctx, tx, businessId, now, txn.ID, EventReferenceTypeInventoryTransaction, txn, InventoryTransactionStatusPending, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// VoidInventoryTransaction annotates an approved entry as voided and
// reverses its stock posting symmetrically, so a voided purchase does not
// leave stock as if it were still valid.
func VoidInventoryTransaction(ctx context.Context, txnId int, reason string) (*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	actor := ActorFromContext(ctx)
	if !actor.IsPrivileged() {
		return nil, utils.NewAccessDenied("only managers and administrators may void inventory transactions", "")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < minRejectReasonLength {
		return nil, utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("void reason must be at least %d characters", minRejectReasonLength))
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := AcquireInventoryPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, utils.NewDependencyFailure("inventory posting is busy", err)
	}
	defer ReleaseInventoryPostingLock(tx, businessId)

	var txn InventoryTransaction
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND business_id = ?", txnId, businessId).
		Preload("Items").
		First(&txn).Error
	if err != nil {
		tx.Rollback()
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("transaction %d not found", txnId))
	}
	if txn.Status != InventoryTransactionStatusApproved {
		tx.Rollback()
		return nil, utils.NewConflict(
			fmt.Sprintf("transaction %d is %s; only approved transactions can be voided", txnId, txn.Status))
	}

	if err := reverseTransactionStock(tx, &txn); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now().UTC()
	result := tx.Model(&InventoryTransaction{}).
		Where("id = ? AND business_id = ? AND status = ?", txnId, businessId, InventoryTransactionStatusApproved).
		Updates(map[string]interface{}{
			"status":      InventoryTransactionStatusVoided,
			"voided_by":   actor.UserId,
			"voided_at":   now,
			"void_reason": reason,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflict(fmt.Sprintf("transaction %d was modified concurrently", txnId))
	}

	txn.Status = InventoryTransactionStatusVoided
	txn.VoidedBy = &actor.UserId
	txn.VoidedAt = &now
	txn.VoidReason = reason

	if err := PublishRetailEvent(ctx, tx, businessId, now, txn.ID, EventReferenceTypeInventoryTransaction, &txn, InventoryTransactionStatusApproved, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &txn, nil
}
