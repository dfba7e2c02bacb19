package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func purchaseItems(qtys map[int]int64) []InventoryTransactionItem {
	items := make([]InventoryTransactionItem, 0, len(qtys))
	for variantId, qty := range qtys {
		items = append(items, InventoryTransactionItem{
			VariantId: variantId,
			Quantity:  decimal.NewFromInt(qty),
		})
	}
	return items
}

func returnItems(qtys map[int]int64) []InventoryTransactionItem {
	items := make([]InventoryTransactionItem, 0, len(qtys))
	for variantId, qty := range qtys {
		// Outbound entries store negative magnitudes.
		items = append(items, InventoryTransactionItem{
			VariantId: variantId,
			Quantity:  decimal.NewFromInt(qty).Neg(),
		})
	}
	return items
}

func requestedQty(qtys map[int]int64) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(qtys))
	for variantId, qty := range qtys {
		out[variantId] = decimal.NewFromInt(qty)
	}
	return out
}

func TestComputeReturnViolations_WithinLimit(t *testing.T) {
	violations := computeReturnViolations(
		purchaseItems(map[int]int64{1: 100}),
		nil,
		requestedQty(map[int]int64{1: 100}),
	)
	if len(violations) != 0 {
		t.Errorf("returning the full purchased quantity should pass, got %v", violations)
	}
}

func TestComputeReturnViolations_ExceedsAfterPriorReturn(t *testing.T) {
	// Purchase 100, 60 already returned, request 50: max returnable is 40.
	violations := computeReturnViolations(
		purchaseItems(map[int]int64{1: 100}),
		returnItems(map[int]int64{1: 60}),
		requestedQty(map[int]int64{1: 50}),
	)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	v := violations[0]
	if v.VariantId != 1 {
		t.Errorf("variant = %d, want 1", v.VariantId)
	}
	if !v.MaxReturnable.Equal(decimal.NewFromInt(40)) {
		t.Errorf("max_returnable = %s, want 40", v.MaxReturnable)
	}
	if !v.AlreadyReturnedQty.Equal(decimal.NewFromInt(60)) {
		t.Errorf("already_returned = %s, want 60", v.AlreadyReturnedQty)
	}
	if !v.OriginalQty.Equal(decimal.NewFromInt(100)) {
		t.Errorf("original = %s, want 100", v.OriginalQty)
	}
}

func TestComputeReturnViolations_VariantNotInPurchase(t *testing.T) {
	violations := computeReturnViolations(
		purchaseItems(map[int]int64{1: 100}),
		nil,
		requestedQty(map[int]int64{2: 5}),
	)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if !violations[0].MaxReturnable.IsZero() {
		t.Errorf("max_returnable = %s, want 0", violations[0].MaxReturnable)
	}
}

func TestComputeReturnViolations_MultiVariantMixed(t *testing.T) {
	violations := computeReturnViolations(
		purchaseItems(map[int]int64{1: 10, 2: 20}),
		returnItems(map[int]int64{2: 15}),
		requestedQty(map[int]int64{1: 10, 2: 6}),
	)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if violations[0].VariantId != 2 {
		t.Errorf("variant = %d, want 2", violations[0].VariantId)
	}
	if !violations[0].MaxReturnable.Equal(decimal.NewFromInt(5)) {
		t.Errorf("max_returnable = %s, want 5", violations[0].MaxReturnable)
	}
}

func TestNormalizeItemQuantity(t *testing.T) {
	tests := []struct {
		txnType InventoryTransactionType
		in      int64
		want    int64
		wantErr bool
	}{
		{InventoryTransactionTypePurchase, 10, 10, false},
		{InventoryTransactionTypePurchase, -10, 10, false},
		{InventoryTransactionTypePurchaseReturn, 6, -6, false},
		{InventoryTransactionTypePurchaseReturn, -6, -6, false},
		{InventoryTransactionTypeDamage, 3, -3, false},
		{InventoryTransactionTypeAdjustment, -4, -4, false},
		{InventoryTransactionTypeAdjustment, 4, 4, false},
		{InventoryTransactionTypeAdjustment, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := normalizeItemQuantity(tt.txnType, decimal.NewFromInt(tt.in))
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s %d: expected error", tt.txnType, tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %d: %v", tt.txnType, tt.in, err)
			continue
		}
		if !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("%s %d = %s, want %d", tt.txnType, tt.in, got, tt.want)
		}
	}
}
