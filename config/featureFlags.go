package config

import (
	"os"
	"strings"
)

// StrictPendingReturnReservation makes the return guard count still-pending
// purchase returns against the returnable maximum, not only approved ones.
// Two pending requests that are each individually valid can otherwise jointly
// exceed the original purchase once both get approved.
//
// Set via env:
// - STRICT_PENDING_RETURN_RESERVATION=false (default true)
func StrictPendingReturnReservation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_PENDING_RETURN_RESERVATION")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AllowFulfillmentTypeCorrection permits changing an order's fulfillment type
// while the order has not yet been packed. After packing the channel is locked.
//
// Set via env:
// - ALLOW_FULFILLMENT_TYPE_CORRECTION=false (default true)
func AllowFulfillmentTypeCorrection() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_FULFILLMENT_TYPE_CORRECTION")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
