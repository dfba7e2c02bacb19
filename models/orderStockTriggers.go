package models

import (
	"fmt"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockTriggerResult reports non-fatal bookkeeping warnings from a stock
// trigger. Hard failures (unavailable stock) surface as errors instead and
// roll back the whole transition.
type StockTriggerResult struct {
	Warnings []string
}

// ApplyOrderStockForStatusTransition applies the stock side effect a status
// transition implies, inside the caller's transaction:
//
//	packed                                → reserve item quantities
//	delivered / store_sale                → commit: deduct on-hand, release reserve
//	cancelled / rejected (after packing)  → release reserve
//	returned                              → restore on-hand
//
// The order's stock_state column records which effect has been applied, and
// every mutation here is guarded by a compare-and-set on that column, so a
// replayed or racing transition applies each effect at most once.
func ApplyOrderStockForStatusTransition(tx *gorm.DB, logger *logrus.Logger, order *Order, oldStatus OrderStatus, newStatus OrderStatus) (*StockTriggerResult, error) {
	result := &StockTriggerResult{}

	switch newStatus {
	case OrderStatusPacked:
		// Re-packing after un-assign must not reserve twice.
		if order.StockState != OrderStockStateNone {
			return result, nil
		}
		return result, reserveOrderStock(tx, order)

	case OrderStatusDelivered, OrderStatusStoreSale:
		if order.StockState != OrderStockStateReserved {
			return result, nil
		}
		return commitOrderStock(tx, logger, order)

	case OrderStatusCancelled, OrderStatusRejected:
		if order.StockState != OrderStockStateReserved {
			// Cancelled before packing holds no stock.
			return result, nil
		}
		return releaseOrderStock(tx, logger, order)

	case OrderStatusReturned:
		if order.StockState != OrderStockStateCommitted {
			return result, nil
		}
		return result, restoreOrderStock(tx, order)
	}

	return result, nil
}

// setOrderStockState transitions the persisted stock_state with a
// compare-and-set; zero rows affected means another writer already moved it
// and this trigger must not apply its effect again.
func setOrderStockState(tx *gorm.DB, order *Order, from OrderStockState, to OrderStockState) (bool, error) {
	result := tx.Model(&Order{}).
		Where("id = ? AND business_id = ? AND stock_state = ?", order.ID, order.BusinessId, from).
		Update("stock_state", to)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	order.StockState = to
	return true, nil
}

func reserveOrderStock(tx *gorm.DB, order *Order) error {
	moved, err := setOrderStockState(tx, order, OrderStockStateNone, OrderStockStateReserved)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	for _, item := range order.Items {
		if _, err := AdjustVariantReservedStock(tx, order.BusinessId, item.VariantId, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

func commitOrderStock(tx *gorm.DB, logger *logrus.Logger, order *Order) (*StockTriggerResult, error) {
	result := &StockTriggerResult{}
	moved, err := setOrderStockState(tx, order, OrderStockStateReserved, OrderStockStateCommitted)
	if err != nil {
		return result, err
	}
	if !moved {
		return result, nil
	}
	for _, item := range order.Items {
		if _, err := AdjustVariantStock(tx, order.BusinessId, item.VariantId, item.Qty.Neg()); err != nil {
			return result, err
		}
		warning, err := AdjustVariantReservedStock(tx, order.BusinessId, item.VariantId, item.Qty.Neg())
		if err != nil {
			return result, err
		}
		if warning != "" {
			config.LogWarn(logger, "orderStockTriggers.go", "commitOrderStock", "AdjustVariantReservedStock", order.ID, fmt.Errorf("%s", warning))
			result.Warnings = append(result.Warnings, warning)
		}
	}
	return result, nil
}

func releaseOrderStock(tx *gorm.DB, logger *logrus.Logger, order *Order) (*StockTriggerResult, error) {
	result := &StockTriggerResult{}
	moved, err := setOrderStockState(tx, order, OrderStockStateReserved, OrderStockStateNone)
	if err != nil {
		return result, err
	}
	if !moved {
		return result, nil
	}
	for _, item := range order.Items {
		warning, err := AdjustVariantReservedStock(tx, order.BusinessId, item.VariantId, item.Qty.Neg())
		if err != nil {
			return result, err
		}
		if warning != "" {
			config.LogWarn(logger, "orderStockTriggers.go", "releaseOrderStock", "AdjustVariantReservedStock", order.ID, fmt.Errorf("%s", warning))
			result.Warnings = append(result.Warnings, warning)
		}
	}
	return result, nil
}

func restoreOrderStock(tx *gorm.DB, order *Order) error {
	moved, err := setOrderStockState(tx, order, OrderStockStateCommitted, OrderStockStateNone)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	for _, item := range order.Items {
		if _, err := AdjustVariantStock(tx, order.BusinessId, item.VariantId, item.Qty); err != nil {
			return err
		}
	}
	return nil
}
