package models

import (
	"errors"
	"strings"
)

type OrderStatus string

const (
	OrderStatusIntake            OrderStatus = "intake"
	OrderStatusFollowUp          OrderStatus = "follow_up"
	OrderStatusConverted         OrderStatus = "converted"
	OrderStatusHold              OrderStatus = "hold"
	OrderStatusPacked            OrderStatus = "packed"
	OrderStatusAssigned          OrderStatus = "assigned"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusHandoverToCourier OrderStatus = "handover_to_courier"
	OrderStatusInTransit         OrderStatus = "in_transit"
	OrderStatusStoreSale         OrderStatus = "store_sale"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRejected          OrderStatus = "rejected"
	OrderStatusReturnInitiated   OrderStatus = "return_initiated"
	OrderStatusReturned          OrderStatus = "returned"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusIntake, OrderStatusFollowUp, OrderStatusConverted, OrderStatusHold,
		OrderStatusPacked, OrderStatusAssigned, OrderStatusOutForDelivery,
		OrderStatusHandoverToCourier, OrderStatusInTransit, OrderStatusStoreSale,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRejected,
		OrderStatusReturnInitiated, OrderStatusReturned:
		return true
	}
	return false
}

// Historical spellings observed from callers (mobile app, ops sheet imports).
// Normalization happens once at ingress; business logic only ever sees the
// canonical values.
var orderStatusAliases = map[string]OrderStatus{
	"followup":           OrderStatusFollowUp,
	"follow":             OrderStatusFollowUp,
	"convert":            OrderStatusConverted,
	"on_hold":            OrderStatusHold,
	"pack":               OrderStatusPacked,
	"assign":             OrderStatusAssigned,
	"ofd":                OrderStatusOutForDelivery,
	"out_of_delivery":    OrderStatusOutForDelivery,
	"handover":           OrderStatusHandoverToCourier,
	"handed_to_courier":  OrderStatusHandoverToCourier,
	"courier_handover":   OrderStatusHandoverToCourier,
	"intransit":          OrderStatusInTransit,
	"shop_sale":          OrderStatusStoreSale,
	"store_sell":         OrderStatusStoreSale,
	"deliver":            OrderStatusDelivered,
	"cancel":             OrderStatusCancelled,
	"canceled":           OrderStatusCancelled,
	"reject":             OrderStatusRejected,
	"return_initiate":    OrderStatusReturnInitiated,
	"initiate_return":    OrderStatusReturnInitiated,
	"return":             OrderStatusReturned,
}

// ParseOrderStatus normalizes a caller-supplied status string to the
// canonical enum: case-insensitive, spaces/hyphens folded to underscores,
// legacy aliases accepted.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	if s := OrderStatus(v); s.IsValid() {
		return s, nil
	}
	if s, ok := orderStatusAliases[v]; ok {
		return s, nil
	}
	return "", errors.New("invalid order status: " + raw)
}

type FulfillmentType string

const (
	FulfillmentTypeSelfDelivery      FulfillmentType = "self_delivery"
	FulfillmentTypeThirdPartyCourier FulfillmentType = "third_party_courier"
	FulfillmentTypeStore             FulfillmentType = "store"
)

func (f FulfillmentType) IsValid() bool {
	switch f {
	case FulfillmentTypeSelfDelivery, FulfillmentTypeThirdPartyCourier, FulfillmentTypeStore:
		return true
	}
	return false
}

var fulfillmentTypeAliases = map[string]FulfillmentType{
	"self":     FulfillmentTypeSelfDelivery,
	"own":      FulfillmentTypeSelfDelivery,
	"rider":    FulfillmentTypeSelfDelivery,
	"courier":  FulfillmentTypeThirdPartyCourier,
	"3pl":      FulfillmentTypeThirdPartyCourier,
	"in_store": FulfillmentTypeStore,
	"shop":     FulfillmentTypeStore,
}

func ParseFulfillmentType(raw string) (FulfillmentType, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	if f := FulfillmentType(v); f.IsValid() {
		return f, nil
	}
	if f, ok := fulfillmentTypeAliases[v]; ok {
		return f, nil
	}
	return "", errors.New("invalid fulfillment type: " + raw)
}

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleStaff   UserRole = "staff"
	UserRoleRider   UserRole = "rider"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleStaff, UserRoleRider:
		return true
	}
	return false
}

// IsPrivileged reports whether the role may approve ledger entries and
// bypass maker-checker gating.
func (r UserRole) IsPrivileged() bool {
	return r == UserRoleAdmin || r == UserRoleManager
}

type InventoryTransactionType string

const (
	InventoryTransactionTypePurchase       InventoryTransactionType = "purchase"
	InventoryTransactionTypePurchaseReturn InventoryTransactionType = "purchase_return"
	InventoryTransactionTypeDamage         InventoryTransactionType = "damage"
	InventoryTransactionTypeAdjustment     InventoryTransactionType = "adjustment"
)

func (t InventoryTransactionType) IsValid() bool {
	switch t {
	case InventoryTransactionTypePurchase, InventoryTransactionTypePurchaseReturn,
		InventoryTransactionTypeDamage, InventoryTransactionTypeAdjustment:
		return true
	}
	return false
}

// IsInbound reports whether the type adds stock. Adjustments carry their own
// sign and are neither strictly inbound nor outbound.
func (t InventoryTransactionType) IsInbound() bool {
	return t == InventoryTransactionTypePurchase
}

func (t InventoryTransactionType) IsOutbound() bool {
	return t == InventoryTransactionTypePurchaseReturn || t == InventoryTransactionTypeDamage
}

func (t InventoryTransactionType) RequiresReference() bool {
	return t == InventoryTransactionTypePurchaseReturn
}

func ParseInventoryTransactionType(raw string) (InventoryTransactionType, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	if t := InventoryTransactionType(v); t.IsValid() {
		return t, nil
	}
	return "", errors.New("invalid inventory transaction type: " + raw)
}

type InventoryTransactionStatus string

const (
	InventoryTransactionStatusPending  InventoryTransactionStatus = "pending"
	InventoryTransactionStatusApproved InventoryTransactionStatus = "approved"
	InventoryTransactionStatusRejected InventoryTransactionStatus = "rejected"
	InventoryTransactionStatusVoided   InventoryTransactionStatus = "voided"
)

// OrderStockState tracks which stock side-effect has been applied for the
// order, so the trigger executor can never double-apply a mutation.
type OrderStockState string

const (
	OrderStockStateNone      OrderStockState = "none"
	OrderStockStateReserved  OrderStockState = "reserved"
	OrderStockStateCommitted OrderStockState = "committed"
)

type EventReferenceType string

const (
	EventReferenceTypeOrder                EventReferenceType = "ORD"
	EventReferenceTypeInventoryTransaction EventReferenceType = "ITX"
)

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)
