package models_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func staffContext(ctx context.Context) context.Context {
	ctx = utils.SetUserIdInContext(ctx, 7)
	ctx = utils.SetUserNameInContext(ctx, "Staff One")
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleStaff))
	return ctx
}

func seedPurchase(t *testing.T, ctx context.Context, variantId int, qty int64) *models.InventoryTransaction {
	t.Helper()
	txn, err := models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		InvoiceNo:       "INV-TEST",
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variantId, Quantity: decimal.NewFromInt(qty), UnitCost: decimal.NewFromInt(7000)},
		},
	})
	if err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	if txn.Status != models.InventoryTransactionStatusApproved {
		t.Fatalf("purchase status = %s, want approved", txn.Status)
	}
	return txn
}

func newReturn(ctx context.Context, purchaseId, variantId int, qty int64) (*models.InventoryTransaction, error) {
	return models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType:        string(models.InventoryTransactionTypePurchaseReturn),
		ReferenceTransactionId: &purchaseId,
		Reason:                 "damaged batch",
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variantId, Quantity: decimal.NewFromInt(qty)},
		},
	})
}

// Maker-checker on purchase returns: a staff submission stays pending with
// no stock effect, approval posts it, and the cumulative-quantity guard
// caps what later returns may claim against the same purchase.
func TestReturnGuard_ApprovalPipeline(t *testing.T) {
	ctx, _ := setupIntegration(t)
	staffCtx := staffContext(ctx)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "LNG-1", Name: "Longyi"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	purchase := seedPurchase(t, ctx, variant.ID, 100)

	ret, err := newReturn(staffCtx, purchase.ID, variant.ID, 60)
	if err != nil {
		t.Fatalf("staff return: %v", err)
	}
	if ret.Status != models.InventoryTransactionStatusPending {
		t.Fatalf("staff return status = %s, want pending", ret.Status)
	}
	if !ret.RequiresApproval {
		t.Error("staff return should flag requires_approval")
	}
	v := fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("stock after pending return = %s, want 100 (pending must not post)", v.CurrentStock)
	}

	// Staff cannot approve their own submission.
	if _, err := models.ApproveInventoryTransaction(staffCtx, ret.ID); !utils.IsErrorCode(err, utils.ErrCodeAccessDenied) {
		t.Fatalf("staff approval: want ACCESS_DENIED, got %v", err)
	}

	approved, err := models.ApproveInventoryTransaction(ctx, ret.ID)
	if err != nil {
		t.Fatalf("approve return: %v", err)
	}
	if approved.Status != models.InventoryTransactionStatusApproved {
		t.Fatalf("approved status = %s", approved.Status)
	}
	if len(approved.Items) == 0 || approved.Items[0].StockAfter == nil {
		t.Fatal("approval must stamp the stock snapshot on items")
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("stock after approved return = %s, want 40", v.CurrentStock)
	}

	// Double approval is a conflict, not a double posting.
	if _, err := models.ApproveInventoryTransaction(ctx, ret.ID); !utils.IsErrorCode(err, utils.ErrCodeConflict) {
		t.Fatalf("re-approval: want CONFLICT, got %v", err)
	}

	// 60 already returned; 50 more would exceed the purchase.
	_, err = newReturn(staffCtx, purchase.ID, variant.ID, 50)
	if !utils.IsErrorCode(err, utils.ErrCodeReturnQuantityExceeded) {
		t.Fatalf("over-return: want RETURN_QUANTITY_EXCEEDED, got %v", err)
	}
	apiErr, _ := utils.AsApiError(err)
	violations, ok := apiErr.Details.([]models.ReturnViolation)
	if !ok || len(violations) == 0 {
		t.Fatal("over-return error should carry per-variant details")
	}
	if !violations[0].MaxReturnable.Equal(decimal.NewFromInt(40)) {
		t.Errorf("max_returnable = %s, want 40", violations[0].MaxReturnable)
	}

	// A rejected return frees its quantity for resubmission.
	ret2, err := newReturn(staffCtx, purchase.ID, variant.ID, 40)
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if _, err := models.RejectInventoryTransaction(ctx, ret2.ID, "wrong"); !utils.IsErrorCode(err, utils.ErrCodeValidation) {
		t.Fatalf("short reject reason: want VALIDATION, got %v", err)
	}
	rejected, err := models.RejectInventoryTransaction(ctx, ret2.ID, "quantities do not match the delivery note")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.InventoryTransactionStatusRejected {
		t.Fatalf("rejected status = %s", rejected.Status)
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("stock after rejection = %s, want 40 (reject never posts)", v.CurrentStock)
	}

	ret3, err := newReturn(staffCtx, purchase.ID, variant.ID, 40)
	if err != nil {
		t.Fatalf("resubmit after rejection: %v", err)
	}
	if _, err := models.ApproveInventoryTransaction(ctx, ret3.ID); err != nil {
		t.Fatalf("approve resubmission: %v", err)
	}
	v = fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.IsZero() {
		t.Fatalf("stock after full return = %s, want 0", v.CurrentStock)
	}
}

// Voiding an approved transaction reverses its stock effect symmetrically.
func TestInventoryTransaction_Void(t *testing.T) {
	ctx, _ := setupIntegration(t)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "HTA-1", Name: "Htamein"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	purchase := seedPurchase(t, ctx, variant.ID, 20)

	if _, err := models.VoidInventoryTransaction(ctx, purchase.ID, "duplicate entry from supplier portal"); err != nil {
		t.Fatalf("void purchase: %v", err)
	}
	voided, err := models.GetInventoryTransaction(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if voided.Status != models.InventoryTransactionStatusVoided {
		t.Fatalf("status after void = %s", voided.Status)
	}
	v := fetchVariant(t, ctx, variant.ID)
	if !v.CurrentStock.IsZero() {
		t.Fatalf("stock after void = %s, want 0", v.CurrentStock)
	}

	// A voided transaction cannot be voided again.
	if _, err := models.VoidInventoryTransaction(ctx, purchase.ID, "duplicate entry from supplier portal"); !utils.IsErrorCode(err, utils.ErrCodeConflict) {
		t.Fatalf("re-void: want CONFLICT, got %v", err)
	}
}

// Two returns racing for the same remaining quantity: the posting lock and
// the row lock on the reference purchase serialize them, so exactly one
// lands.
func TestReturnGuard_ConcurrentReturns(t *testing.T) {
	ctx, _ := setupIntegration(t)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "SCF-1", Name: "Scarf"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	purchase := seedPurchase(t, ctx, variant.ID, 100)

	qtys := []int64{60, 50}
	errs := make([]error, len(qtys))
	var wg sync.WaitGroup
	for i, qty := range qtys {
		wg.Add(1)
		go func(i int, qty int64) {
			defer wg.Done()
			_, errs[i] = newReturn(ctx, purchase.ID, variant.ID, qty)
		}(i, qty)
	}
	wg.Wait()

	var succeeded, blocked int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case utils.IsErrorCode(err, utils.ErrCodeReturnQuantityExceeded):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || blocked != 1 {
		t.Fatalf("succeeded = %d, blocked = %d; want exactly one of each", succeeded, blocked)
	}

	v := fetchVariant(t, ctx, variant.ID)
	remaining := decimal.NewFromInt(100).Sub(v.CurrentStock)
	if remaining.GreaterThan(decimal.NewFromInt(100)) {
		t.Fatalf("returned more than purchased: %s", remaining)
	}
	if v.CurrentStock.Equal(decimal.NewFromInt(100)) {
		t.Fatal("neither return posted")
	}
}
