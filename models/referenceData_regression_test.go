package models_test

import (
	"testing"

	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

// Rider reads go through the redis model cache; updates must drop the
// cached copy so assignment checks never see a stale record.
func TestRiderDirectory_CacheLifecycle(t *testing.T) {
	ctx, businessID := setupIntegration(t)

	rider, err := models.CreateRider(ctx, &models.NewRider{Name: "Aung", Phone: "09790000004"})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}

	fetched, err := models.GetRider(ctx, rider.ID)
	if err != nil {
		t.Fatalf("GetRider: %v", err)
	}
	if fetched.Name != "Aung" {
		t.Fatalf("fetched name = %q", fetched.Name)
	}

	cached, err := utils.RetrieveRedis[models.Rider](rider.ID)
	if err != nil {
		t.Fatalf("RetrieveRedis: %v", err)
	}
	if cached == nil || cached.Name != "Aung" {
		t.Fatal("rider read should have primed the model cache")
	}

	updated, err := models.UpdateRider(ctx, rider.ID, &models.UpdateRiderInput{
		IsActive: utils.NewFalse(),
	})
	if err != nil {
		t.Fatalf("UpdateRider: %v", err)
	}
	if updated.IsActive == nil || *updated.IsActive {
		t.Fatal("rider should be inactive after update")
	}

	cached, err = utils.RetrieveRedis[models.Rider](rider.ID)
	if err != nil {
		t.Fatalf("RetrieveRedis after update: %v", err)
	}
	if cached != nil {
		t.Fatal("update must invalidate the cached rider")
	}

	// The assignment rule reads through the same cache and must see the
	// deactivation immediately.
	if apiErr := models.ValidateRiderAssignment(ctx, businessID, rider.ID); apiErr == nil {
		t.Fatal("inactive rider should fail assignment validation")
	}

	riders, err := models.ListRiders(ctx)
	if err != nil {
		t.Fatalf("ListRiders: %v", err)
	}
	if len(riders) != 1 {
		t.Fatalf("ListRiders returned %d riders, want 1", len(riders))
	}
}

// A ledger entry naming a vendor that does not exist in the business is
// rejected before anything is written.
func TestInventoryTransaction_UnknownVendor(t *testing.T) {
	ctx, _ := setupIntegration(t)

	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Sku: "BAG-1", Name: "Bag"})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}

	bogusVendor := 9999
	_, err = models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		VendorId:        &bogusVendor,
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variant.ID, Quantity: decimal.NewFromInt(5)},
		},
	})
	if !utils.IsErrorCode(err, utils.ErrCodeNotFound) {
		t.Fatalf("unknown vendor: want NOT_FOUND, got %v", err)
	}

	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Golden Supply Co"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	txn, err := models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		VendorId:        &vendor.ID,
		Items: []models.NewInventoryTransactionItem{
			{VariantId: variant.ID, Quantity: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("purchase with vendor: %v", err)
	}
	if txn.VendorId == nil || *txn.VendorId != vendor.ID {
		t.Fatalf("vendor id not persisted on the transaction")
	}
}
