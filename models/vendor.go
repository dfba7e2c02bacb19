package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

type Vendor struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Email      string    `gorm:"size:255" json:"email"`
	Address    string    `gorm:"type:text" json:"address"`
	IsActive   *bool     `gorm:"default:true;not null" json:"is_active"`
	CreatedBy  int       `json:"created_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy  int       `json:"updated_by"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Vendor) tenantOf() string { return v.BusinessId }

type NewVendor struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, "MM"); err != nil {
			return nil, utils.NewApiError(utils.ErrCodeValidation, "invalid phone number: "+input.Phone)
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.NewApiError(utils.ErrCodeValidation, "invalid email: "+input.Email)
	}

	db := config.GetDB()
	vendor := Vendor{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		IsActive:   utils.NewTrue(),
		CreatedBy:  userId,
	}
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return fetchCachedReference[Vendor](ctx, businessId, id)
}

func ListVendors(ctx context.Context) ([]*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Vendor](ctx, businessId)
}
