package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductVariant holds the current stock snapshot the ledger produces.
// current_stock/reserved_stock are the hottest rows in the system; every
// mutation must go through AdjustVariantStock/AdjustVariantReservedStock,
// which take a row lock inside the caller's transaction.
type ProductVariant struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	Sku           string          `gorm:"size:100;index" json:"sku"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CurrentStock  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	ReservedStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved_stock"`
	IsActive      *bool           `gorm:"default:true;not null" json:"is_active"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy     int             `json:"updated_by"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductVariant struct {
	Sku       string          `json:"sku"`
	Name      string          `json:"name" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// StockAdjustResult reports the snapshot around a single atomic mutation.
type StockAdjustResult struct {
	StockBefore decimal.Decimal `json:"stock_before"`
	StockAfter  decimal.Decimal `json:"stock_after"`
}

func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if input.Sku != "" {
		if err := utils.ValidateUnique[ProductVariant](ctx, businessId, "sku", input.Sku, 0); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	variant := ProductVariant{
		BusinessId: businessId,
		Sku:        input.Sku,
		Name:       input.Name,
		UnitPrice:  input.UnitPrice,
		UnitCost:   input.UnitCost,
		IsActive:   utils.NewTrue(),
		CreatedBy:  userId,
	}
	if err := db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func GetProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	// Variants are never served from the model cache; current_stock moves
	// too often for a cached copy to be trustworthy.
	return utils.FetchModel[ProductVariant](ctx, businessId, id)
}

func ListProductVariants(ctx context.Context) ([]*ProductVariant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[ProductVariant](ctx, businessId)
}

// AdjustVariantStock applies a signed delta to current_stock under a row lock.
// A delta that would take current_stock below zero fails the whole operation;
// partial stock mutation is worse than a rejected request.
func AdjustVariantStock(tx *gorm.DB, businessId string, variantId int, delta decimal.Decimal) (*StockAdjustResult, error) {
	if tx == nil {
		return nil, errors.New("adjust stock: tx is nil")
	}

	var variant ProductVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, variantId).
		First(&variant).Error
	if err != nil {
		return nil, utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("variant %d not found", variantId))
	}

	stockBefore := variant.CurrentStock
	stockAfter := stockBefore.Add(delta)
	if stockAfter.IsNegative() {
		return nil, utils.NewDependencyFailure(
			fmt.Sprintf("insufficient stock for variant %d: have %s, need %s", variantId, stockBefore.String(), delta.Neg().String()), nil)
	}

	if err := tx.Model(&ProductVariant{}).
		Where("business_id = ? AND id = ?", businessId, variantId).
		Update("current_stock", stockAfter).Error; err != nil {
		return nil, utils.NewDependencyFailure("update current_stock", err)
	}

	return &StockAdjustResult{StockBefore: stockBefore, StockAfter: stockAfter}, nil
}

// AdjustVariantReservedStock applies a signed delta to reserved_stock under a
// row lock. Releasing more than is reserved clamps at zero and reports a
// warning instead of failing: the order status is already customer-facing,
// a reservation bookkeeping drift is recoverable by reconciliation.
func AdjustVariantReservedStock(tx *gorm.DB, businessId string, variantId int, delta decimal.Decimal) (warning string, err error) {
	if tx == nil {
		return "", errors.New("adjust reserved stock: tx is nil")
	}

	var variant ProductVariant
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, variantId).
		First(&variant).Error
	if err != nil {
		return "", utils.NewApiError(utils.ErrCodeNotFound, fmt.Sprintf("variant %d not found", variantId))
	}

	reservedAfter := variant.ReservedStock.Add(delta)
	if reservedAfter.IsNegative() {
		warning = fmt.Sprintf("variant %d: releasing %s exceeds reserved %s; clamped to 0",
			variantId, delta.Neg().String(), variant.ReservedStock.String())
		reservedAfter = decimal.Zero
	}

	if err := tx.Model(&ProductVariant{}).
		Where("business_id = ? AND id = ?", businessId, variantId).
		Update("reserved_stock", reservedAfter).Error; err != nil {
		return "", utils.NewDependencyFailure("update reserved_stock", err)
	}

	return warning, nil
}
