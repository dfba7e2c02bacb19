package models

import "testing"

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderStatus
		wantErr bool
	}{
		{"packed", OrderStatusPacked, false},
		{"Packed", OrderStatusPacked, false},
		{"  out for delivery ", OrderStatusOutForDelivery, false},
		{"Out-For-Delivery", OrderStatusOutForDelivery, false},
		{"ofd", OrderStatusOutForDelivery, false},
		{"handover", OrderStatusHandoverToCourier, false},
		{"follow up", OrderStatusFollowUp, false},
		{"followup", OrderStatusFollowUp, false},
		{"deliver", OrderStatusDelivered, false},
		{"cancel", OrderStatusCancelled, false},
		{"canceled", OrderStatusCancelled, false},
		{"", "", true},
		{"teleported", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOrderStatus(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOrderStatus(%q): expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOrderStatus(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOrderStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseFulfillmentType(t *testing.T) {
	tests := []struct {
		in      string
		want    FulfillmentType
		wantErr bool
	}{
		{"self_delivery", FulfillmentTypeSelfDelivery, false},
		{"Self Delivery", FulfillmentTypeSelfDelivery, false},
		{"rider", FulfillmentTypeSelfDelivery, false},
		{"courier", FulfillmentTypeThirdPartyCourier, false},
		{"3pl", FulfillmentTypeThirdPartyCourier, false},
		{"shop", FulfillmentTypeStore, false},
		{"store", FulfillmentTypeStore, false},
		{"drone", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFulfillmentType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFulfillmentType(%q): expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFulfillmentType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFulfillmentType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInventoryTransactionTypeDirection(t *testing.T) {
	if !InventoryTransactionTypePurchase.IsInbound() {
		t.Error("purchase should be inbound")
	}
	for _, typ := range []InventoryTransactionType{InventoryTransactionTypePurchaseReturn, InventoryTransactionTypeDamage} {
		if !typ.IsOutbound() {
			t.Errorf("%s should be outbound", typ)
		}
	}
	if InventoryTransactionTypeAdjustment.IsInbound() || InventoryTransactionTypeAdjustment.IsOutbound() {
		t.Error("adjustment carries its own sign")
	}
	if !InventoryTransactionTypePurchaseReturn.RequiresReference() {
		t.Error("purchase_return requires a reference purchase")
	}
	if InventoryTransactionTypeDamage.RequiresReference() {
		t.Error("damage must not require a reference")
	}
}
