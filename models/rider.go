package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

type Rider struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BusinessId      string    `gorm:"index;not null" json:"business_id"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone           string    `gorm:"size:20;not null" json:"phone" binding:"required"`
	DailyOrderLimit int       `gorm:"not null;default:20" json:"daily_order_limit"`
	IsActive        *bool     `gorm:"default:true;not null" json:"is_active"`
	CreatedBy       int       `json:"created_by"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy       int       `json:"updated_by"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r Rider) tenantOf() string { return r.BusinessId }

type NewRider struct {
	Name            string `json:"name" binding:"required"`
	Phone           string `json:"phone" binding:"required"`
	DailyOrderLimit int    `json:"daily_order_limit"`
}

// UpdateRiderInput carries partial updates; nil fields are left untouched.
type UpdateRiderInput struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	DailyOrderLimit *int    `json:"daily_order_limit"`
	IsActive        *bool   `json:"is_active"`
}

func CreateRider(ctx context.Context, input *NewRider) (*Rider, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidatePhoneNumber(input.Phone, "MM"); err != nil {
		return nil, utils.NewApiError(utils.ErrCodeValidation, "invalid phone number: "+input.Phone)
	}

	limit := input.DailyOrderLimit
	if limit <= 0 {
		limit = 20
	}

	db := config.GetDB()
	rider := Rider{
		BusinessId:      businessId,
		Name:            input.Name,
		Phone:           input.Phone,
		DailyOrderLimit: limit,
		IsActive:        utils.NewTrue(),
		CreatedBy:       userId,
	}
	if err := db.WithContext(ctx).Create(&rider).Error; err != nil {
		return nil, err
	}
	return &rider, nil
}

func GetRider(ctx context.Context, id int) (*Rider, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return fetchCachedReference[Rider](ctx, businessId, id)
}

// UpdateRider applies a partial update and drops the cached copy so the
// next read sees the new record.
func UpdateRider(ctx context.Context, id int, input *UpdateRiderInput) (*Rider, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	rider, err := utils.FetchModel[Rider](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("rider %d not found", id))
	}

	if input.Phone != nil {
		if err := utils.ValidatePhoneNumber(*input.Phone, "MM"); err != nil {
			return nil, utils.NewApiError(utils.ErrCodeValidation, "invalid phone number: "+*input.Phone)
		}
	}
	rider.Name = utils.DereferencePtr(input.Name, rider.Name)
	rider.Phone = utils.DereferencePtr(input.Phone, rider.Phone)
	if input.DailyOrderLimit != nil && *input.DailyOrderLimit > 0 {
		rider.DailyOrderLimit = *input.DailyOrderLimit
	}
	if input.IsActive != nil {
		rider.IsActive = input.IsActive
	}
	rider.UpdatedBy = userId

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(rider).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Rider](id)
	return rider, nil
}

func ListRiders(ctx context.Context) ([]*Rider, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Rider](ctx, businessId)
}

// ActiveOrderCount counts orders currently held by the rider. Orders already
// delivered, cancelled, rejected or returned no longer count against the
// rider's daily limit.
func ActiveOrderCount(ctx context.Context, businessId string, riderId int) (int64, error) {
	return utils.ResourceCountWhere[Order](ctx, businessId,
		"assigned_rider_id = ? AND current_status IN ?",
		riderId, []OrderStatus{OrderStatusAssigned, OrderStatusOutForDelivery})
}
