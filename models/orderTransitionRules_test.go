package models

import (
	"testing"

	"github.com/mmdatafocus/retail_backend/utils"
)

func testOrder(ft FulfillmentType, status OrderStatus) *Order {
	return &Order{
		ID:              1,
		BusinessId:      "biz-1",
		FulfillmentType: ft,
		CurrentStatus:   status,
	}
}

func staffActor() Actor {
	return Actor{UserId: 10, UserName: "Staff", Role: UserRoleStaff}
}

func managerActor() Actor {
	return Actor{UserId: 11, UserName: "Manager", Role: UserRoleManager}
}

func riderActor(riderId int) Actor {
	return Actor{UserId: 20 + riderId, UserName: "Rider", Role: UserRoleRider, RiderId: riderId}
}

func TestTransitionGraph(t *testing.T) {
	tests := []struct {
		name    string
		ft      FulfillmentType
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"intake to follow_up", FulfillmentTypeSelfDelivery, OrderStatusIntake, OrderStatusFollowUp, true},
		{"intake to converted", FulfillmentTypeStore, OrderStatusIntake, OrderStatusConverted, true},
		{"intake straight to packed", FulfillmentTypeSelfDelivery, OrderStatusIntake, OrderStatusPacked, false},
		{"hold back to follow_up", FulfillmentTypeThirdPartyCourier, OrderStatusHold, OrderStatusFollowUp, true},
		{"converted to packed", FulfillmentTypeSelfDelivery, OrderStatusConverted, OrderStatusPacked, true},
		{"packed to assigned (self)", FulfillmentTypeSelfDelivery, OrderStatusPacked, OrderStatusAssigned, true},
		{"packed to handover (courier)", FulfillmentTypeThirdPartyCourier, OrderStatusPacked, OrderStatusHandoverToCourier, true},
		{"packed to store_sale (store)", FulfillmentTypeStore, OrderStatusPacked, OrderStatusStoreSale, true},
		{"packed to out_for_delivery (courier)", FulfillmentTypeThirdPartyCourier, OrderStatusPacked, OrderStatusOutForDelivery, false},
		{"packed to assigned (store)", FulfillmentTypeStore, OrderStatusPacked, OrderStatusAssigned, false},
		{"assigned to out_for_delivery", FulfillmentTypeSelfDelivery, OrderStatusAssigned, OrderStatusOutForDelivery, true},
		{"assigned back to packed", FulfillmentTypeSelfDelivery, OrderStatusAssigned, OrderStatusPacked, true},
		{"handover to in_transit", FulfillmentTypeThirdPartyCourier, OrderStatusHandoverToCourier, OrderStatusInTransit, true},
		{"in_transit to delivered", FulfillmentTypeThirdPartyCourier, OrderStatusInTransit, OrderStatusDelivered, true},
		{"delivered to return_initiated", FulfillmentTypeSelfDelivery, OrderStatusDelivered, OrderStatusReturnInitiated, true},
		{"return_initiated to returned", FulfillmentTypeStore, OrderStatusReturnInitiated, OrderStatusReturned, true},
		{"delivered back to packed", FulfillmentTypeSelfDelivery, OrderStatusDelivered, OrderStatusPacked, false},
		{"cancelled is terminal", FulfillmentTypeSelfDelivery, OrderStatusCancelled, OrderStatusIntake, false},
		{"returned is terminal", FulfillmentTypeStore, OrderStatusReturned, OrderStatusPacked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransitionAllowed(tt.ft, tt.from, tt.to)
			if got != tt.allowed {
				t.Errorf("TransitionAllowed(%s, %s, %s) = %v, want %v", tt.ft, tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestValidateOrderTransition_ChannelCompatibility(t *testing.T) {
	// A courier order must never enter the self-delivery dispatch statuses,
	// and the error must say the channel is the problem, not the edge.
	order := testOrder(FulfillmentTypeThirdPartyCourier, OrderStatusPacked)
	apiErr := ValidateOrderTransition(order, OrderStatusOutForDelivery, staffActor(), &OrderStatusChange{})
	if apiErr == nil {
		t.Fatal("expected error for out_for_delivery on courier order")
	}
	if apiErr.Code != utils.ErrCodeInvalidTransition {
		t.Errorf("code = %s, want %s", apiErr.Code, utils.ErrCodeInvalidTransition)
	}

	order = testOrder(FulfillmentTypeStore, OrderStatusPacked)
	if apiErr := ValidateOrderTransition(order, OrderStatusHandoverToCourier, staffActor(), &OrderStatusChange{}); apiErr == nil {
		t.Error("expected error for handover_to_courier on store order")
	}
}

func TestValidateOrderTransition_RiderLock(t *testing.T) {
	riderId := 1
	order := testOrder(FulfillmentTypeSelfDelivery, OrderStatusAssigned)
	order.AssignedRiderId = &riderId

	// Another rider cannot report the delivery outcome.
	apiErr := ValidateOrderTransition(order, OrderStatusDelivered, riderActor(2), &OrderStatusChange{})
	if apiErr == nil {
		t.Fatal("expected AccessDenied for rider 2 on rider 1's order")
	}
	if apiErr.Code != utils.ErrCodeAccessDenied {
		t.Errorf("code = %s, want %s", apiErr.Code, utils.ErrCodeAccessDenied)
	}
	if apiErr.LockedBy != "1" {
		t.Errorf("lockedBy = %q, want %q", apiErr.LockedBy, "1")
	}

	// The holding rider can.
	if apiErr := ValidateOrderTransition(order, OrderStatusDelivered, riderActor(1), &OrderStatusChange{}); apiErr != nil {
		t.Errorf("holding rider should be allowed: %v", apiErr)
	}

	// A manager can override.
	if apiErr := ValidateOrderTransition(order, OrderStatusDelivered, managerActor(), &OrderStatusChange{}); apiErr != nil {
		t.Errorf("manager override should be allowed: %v", apiErr)
	}

	// Plain staff cannot record delivery outcomes on self-delivery orders.
	apiErr = ValidateOrderTransition(order, OrderStatusDelivered, staffActor(), &OrderStatusChange{})
	if apiErr == nil || apiErr.Code != utils.ErrCodeAccessDenied {
		t.Errorf("staff should get AccessDenied, got %v", apiErr)
	}
}

func TestValidateOrderTransition_RiderCannotRunOfficeTransitions(t *testing.T) {
	riderId := 1
	order := testOrder(FulfillmentTypeSelfDelivery, OrderStatusConverted)
	order.AssignedRiderId = &riderId

	apiErr := ValidateOrderTransition(order, OrderStatusPacked, riderActor(1), &OrderStatusChange{})
	if apiErr == nil || apiErr.Code != utils.ErrCodeAccessDenied {
		t.Errorf("rider packing should be AccessDenied, got %v", apiErr)
	}
}

func TestValidateOrderTransition_DispatchLock(t *testing.T) {
	riderId := 1
	order := testOrder(FulfillmentTypeSelfDelivery, OrderStatusAssigned)
	order.AssignedRiderId = &riderId

	// The holding rider confirms pickup.
	if apiErr := ValidateOrderTransition(order, OrderStatusOutForDelivery, riderActor(1), &OrderStatusChange{}); apiErr != nil {
		t.Errorf("holding rider dispatch should be allowed: %v", apiErr)
	}
	// Another rider cannot.
	apiErr := ValidateOrderTransition(order, OrderStatusOutForDelivery, riderActor(2), &OrderStatusChange{})
	if apiErr == nil || apiErr.Code != utils.ErrCodeAccessDenied {
		t.Errorf("other rider dispatch should be AccessDenied, got %v", apiErr)
	}
	// Office staff dispatch on the rider's behalf.
	if apiErr := ValidateOrderTransition(order, OrderStatusOutForDelivery, staffActor(), &OrderStatusChange{}); apiErr != nil {
		t.Errorf("staff dispatch should be allowed: %v", apiErr)
	}
}

func TestValidateOrderTransition_RequiredFields(t *testing.T) {
	order := testOrder(FulfillmentTypeSelfDelivery, OrderStatusPacked)
	apiErr := ValidateOrderTransition(order, OrderStatusAssigned, staffActor(), &OrderStatusChange{})
	if apiErr == nil {
		t.Fatal("expected MissingRequiredField for assignment without rider_id")
	}
	if apiErr.Code != utils.ErrCodeMissingRequiredField {
		t.Errorf("code = %s, want %s", apiErr.Code, utils.ErrCodeMissingRequiredField)
	}
	if len(apiErr.Requires) != 1 || apiErr.Requires[0] != "rider_id" {
		t.Errorf("requires = %v, want [rider_id]", apiErr.Requires)
	}

	order = testOrder(FulfillmentTypeThirdPartyCourier, OrderStatusPacked)
	apiErr = ValidateOrderTransition(order, OrderStatusHandoverToCourier, staffActor(), &OrderStatusChange{CourierPartner: "Royal Express"})
	if apiErr == nil {
		t.Fatal("expected MissingRequiredField for handover without tracking id")
	}
	if len(apiErr.Requires) != 1 || apiErr.Requires[0] != "courier_tracking_id" {
		t.Errorf("requires = %v, want [courier_tracking_id]", apiErr.Requires)
	}

	apiErr = ValidateOrderTransition(order, OrderStatusHandoverToCourier, staffActor(),
		&OrderStatusChange{CourierPartner: "Royal Express", CourierTrackingId: "RE-99812"})
	if apiErr != nil {
		t.Errorf("handover with both fields should pass: %v", apiErr)
	}
}
