package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/retail_backend/utils"
)

// Transition graphs. The lead funnel (intake → converted) is shared by every
// fulfillment channel; from packed onward each channel has its own edges.
// These tables are the single authority on which edges exist; handlers must
// never re-implement transition checks ad hoc.

var commonOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusIntake:    {OrderStatusFollowUp, OrderStatusConverted, OrderStatusCancelled},
	OrderStatusFollowUp:  {OrderStatusConverted, OrderStatusHold, OrderStatusCancelled},
	OrderStatusHold:      {OrderStatusFollowUp, OrderStatusConverted, OrderStatusCancelled},
	OrderStatusConverted: {OrderStatusPacked, OrderStatusHold, OrderStatusCancelled},
	OrderStatusPacked:    {OrderStatusCancelled},
}

var selfDeliveryTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPacked:          {OrderStatusAssigned},
	OrderStatusAssigned:        {OrderStatusOutForDelivery, OrderStatusPacked, OrderStatusDelivered, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusOutForDelivery:  {OrderStatusDelivered, OrderStatusRejected},
	OrderStatusDelivered:       {OrderStatusReturnInitiated},
	OrderStatusReturnInitiated: {OrderStatusReturned},
}

var thirdPartyCourierTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPacked:            {OrderStatusHandoverToCourier},
	OrderStatusHandoverToCourier: {OrderStatusInTransit},
	OrderStatusInTransit:         {OrderStatusDelivered, OrderStatusRejected},
	OrderStatusDelivered:         {OrderStatusReturnInitiated},
	OrderStatusReturnInitiated:   {OrderStatusReturned},
}

var storeTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPacked:          {OrderStatusStoreSale},
	OrderStatusStoreSale:       {OrderStatusReturnInitiated},
	OrderStatusReturnInitiated: {OrderStatusReturned},
}

// Statuses that only exist on one delivery channel.
var channelOnlyStatuses = map[OrderStatus]FulfillmentType{
	OrderStatusAssigned:          FulfillmentTypeSelfDelivery,
	OrderStatusOutForDelivery:    FulfillmentTypeSelfDelivery,
	OrderStatusHandoverToCourier: FulfillmentTypeThirdPartyCourier,
	OrderStatusInTransit:         FulfillmentTypeThirdPartyCourier,
	OrderStatusStoreSale:         FulfillmentTypeStore,
}

func channelTransitions(fulfillmentType FulfillmentType) map[OrderStatus][]OrderStatus {
	switch fulfillmentType {
	case FulfillmentTypeSelfDelivery:
		return selfDeliveryTransitions
	case FulfillmentTypeThirdPartyCourier:
		return thirdPartyCourierTransitions
	case FulfillmentTypeStore:
		return storeTransitions
	}
	return nil
}

// TransitionAllowed reports whether (from → to) is a declared edge for the
// fulfillment channel.
func TransitionAllowed(fulfillmentType FulfillmentType, from, to OrderStatus) bool {
	if containsStatus(commonOrderTransitions[from], to) {
		return true
	}
	return containsStatus(channelTransitions(fulfillmentType)[from], to)
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateOrderTransition runs the pure transition rules, in order:
// 1. fulfillment compatibility, 2. graph membership, 3. role lock,
// 4. required fields. Rider eligibility/capacity (rule 5) needs the DB and
// lives in ValidateRiderAssignment.
func ValidateOrderTransition(order *Order, target OrderStatus, actor Actor, input *OrderStatusChange) *utils.ApiError {

	// 1. fulfillment compatibility
	if ch, ok := channelOnlyStatuses[target]; ok && ch != order.FulfillmentType {
		return utils.NewInvalidTransition(
			fmt.Sprintf("status %s is not available for fulfillment type %s", target, order.FulfillmentType))
	}

	// 2. graph membership
	if !TransitionAllowed(order.FulfillmentType, order.CurrentStatus, target) {
		return utils.NewInvalidTransition(
			fmt.Sprintf("no transition from %s to %s", order.CurrentStatus, target))
	}

	// 3. role lock
	if apiErr := validateTransitionRoleLock(order, target, actor); apiErr != nil {
		return apiErr
	}

	// 4. required fields
	var missing []string
	switch target {
	case OrderStatusAssigned:
		if input == nil || input.RiderId <= 0 {
			missing = append(missing, "rider_id")
		}
	case OrderStatusHandoverToCourier:
		if input == nil || input.CourierPartner == "" {
			missing = append(missing, "courier_partner")
		}
		if input == nil || input.CourierTrackingId == "" {
			missing = append(missing, "courier_tracking_id")
		}
	}
	if len(missing) > 0 {
		return utils.NewMissingRequiredField(
			fmt.Sprintf("transition to %s requires additional fields", target), missing)
	}

	return nil
}

func validateTransitionRoleLock(order *Order, target OrderStatus, actor Actor) *utils.ApiError {
	switch target {
	case OrderStatusDelivered, OrderStatusRejected:
		if order.FulfillmentType == FulfillmentTypeSelfDelivery {
			// Delivery outcomes are reserved for the rider holding the order
			// (or a manager overriding).
			if actor.IsPrivileged() {
				return nil
			}
			if !actor.IsRider() {
				return utils.NewAccessDenied(
					fmt.Sprintf("only the assigned rider or a manager may mark %s", target),
					lockedByRider(order))
			}
			if order.AssignedRiderId == nil {
				return utils.NewAccessDenied("order has no assigned rider", "")
			}
			if *order.AssignedRiderId != actor.RiderId {
				return utils.NewAccessDenied("order is held by another rider", lockedByRider(order))
			}
			return nil
		}
		// Courier/store outcomes are recorded by office roles, never riders.
		if actor.IsRider() {
			return utils.NewAccessDenied(fmt.Sprintf("riders may not mark %s on %s orders", target, order.FulfillmentType), "")
		}
	case OrderStatusAssigned, OrderStatusPacked, OrderStatusCancelled, OrderStatusHandoverToCourier,
		OrderStatusReturnInitiated, OrderStatusReturned, OrderStatusStoreSale:
		if actor.IsRider() {
			return utils.NewAccessDenied(fmt.Sprintf("riders may not move orders to %s", target), "")
		}
	case OrderStatusOutForDelivery:
		// Dispatch: the holding rider confirms pickup, or office staff dispatch on their behalf.
		if actor.IsRider() {
			if order.AssignedRiderId == nil || *order.AssignedRiderId != actor.RiderId {
				return utils.NewAccessDenied("order is held by another rider", lockedByRider(order))
			}
		}
	}
	return nil
}

func lockedByRider(order *Order) string {
	if order.AssignedRiderId == nil {
		return ""
	}
	return fmt.Sprint(*order.AssignedRiderId)
}

// ValidateRiderAssignment is rule 5: the rider must exist, be active, and
// have room under their daily active-order maximum.
func ValidateRiderAssignment(ctx context.Context, businessId string, riderId int) *utils.ApiError {
	rider, err := fetchCachedReference[Rider](ctx, businessId, riderId)
	if err != nil {
		return utils.NewApiError(utils.ErrCodeValidation, fmt.Sprintf("rider %d not found", riderId))
	}
	if rider.IsActive != nil && !*rider.IsActive {
		return utils.NewApiError(utils.ErrCodeValidation, fmt.Sprintf("rider %d is inactive", riderId))
	}
	count, err := ActiveOrderCount(ctx, businessId, riderId)
	if err != nil {
		return utils.NewDependencyFailure("count active orders", err)
	}
	if count >= int64(rider.DailyOrderLimit) {
		return utils.NewApiError(utils.ErrCodeValidation,
			fmt.Sprintf("rider %d has reached the daily limit of %d active orders", riderId, rider.DailyOrderLimit))
	}
	return nil
}
