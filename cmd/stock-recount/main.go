package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stock-recount recomputes each variant's on-hand and reserved stock from
// first principles (approved ledger entries plus order stock states) and
// reports drift against the stored snapshot. With --fix it repairs the
// snapshot under the per-business posting lock.
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	variantID := flag.Int("variant-id", 0, "Optional: limit to one variant")
	fix := flag.Bool("fix", false, "Write recomputed values back (default: report only)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var variants []models.ProductVariant
	q := db.Where("business_id = ?", *businessID)
	if *variantID > 0 {
		q = q.Where("id = ?", *variantID)
	}
	if err := q.Find(&variants).Error; err != nil {
		fmt.Fprintf(os.Stderr, "load variants: %v\n", err)
		os.Exit(1)
	}
	if len(variants) == 0 {
		fmt.Println("no variants found")
		return
	}

	drifted := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		if *fix {
			if err := models.AcquireInventoryPostingLock(tx, *businessID); err != nil {
				return err
			}
			defer models.ReleaseInventoryPostingLock(tx, *businessID)
		}

		for _, v := range variants {
			expectedStock, expectedReserved, err := recountVariant(tx, *businessID, v.ID)
			if err != nil {
				return fmt.Errorf("variant %d: %w", v.ID, err)
			}
			if v.CurrentStock.Equal(expectedStock) && v.ReservedStock.Equal(expectedReserved) {
				continue
			}
			drifted++
			fmt.Printf("variant %d (%s): stored stock=%s reserved=%s, recomputed stock=%s reserved=%s\n",
				v.ID, v.Sku, v.CurrentStock, v.ReservedStock, expectedStock, expectedReserved)
			if *fix {
				err := tx.Model(&models.ProductVariant{}).
					Where("id = ? AND business_id = ?", v.ID, *businessID).
					Updates(map[string]interface{}{
						"current_stock":  expectedStock,
						"reserved_stock": expectedReserved,
					}).Error
				if err != nil {
					return fmt.Errorf("variant %d: %w", v.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "recount failed: %v\n", err)
		os.Exit(1)
	}

	if drifted == 0 {
		fmt.Printf("checked %d variants, no drift\n", len(variants))
	} else if *fix {
		fmt.Printf("checked %d variants, repaired %d\n", len(variants), drifted)
	} else {
		fmt.Printf("checked %d variants, %d drifted (run with --fix to repair)\n", len(variants), drifted)
	}
}

// recountVariant derives stock from the ledger and order flow:
// on-hand = approved ledger quantities - quantities committed by delivered
// orders; reserved = quantities held by orders currently in reserved state.
func recountVariant(tx *gorm.DB, businessID string, variantID int) (stock, reserved decimal.Decimal, err error) {
	var ledgerSum decimal.NullDecimal
	err = tx.Model(&models.InventoryTransactionItem{}).
		Select("SUM(inventory_transaction_items.quantity)").
		Joins("JOIN inventory_transactions ON inventory_transactions.id = inventory_transaction_items.transaction_id").
		Where("inventory_transactions.business_id = ?", businessID).
		Where("inventory_transactions.status = ?", models.InventoryTransactionStatusApproved).
		Where("inventory_transaction_items.variant_id = ?", variantID).
		Scan(&ledgerSum).Error
	if err != nil {
		return
	}

	var committedSum decimal.NullDecimal
	err = tx.Model(&models.OrderItem{}).
		Select("SUM(order_items.qty)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.business_id = ?", businessID).
		Where("orders.stock_state = ?", models.OrderStockStateCommitted).
		Where("order_items.variant_id = ?", variantID).
		Scan(&committedSum).Error
	if err != nil {
		return
	}

	var reservedSum decimal.NullDecimal
	err = tx.Model(&models.OrderItem{}).
		Select("SUM(order_items.qty)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.business_id = ?", businessID).
		Where("orders.stock_state = ?", models.OrderStockStateReserved).
		Where("order_items.variant_id = ?", variantID).
		Scan(&reservedSum).Error
	if err != nil {
		return
	}

	stock = ledgerSum.Decimal.Sub(committedSum.Decimal)
	reserved = reservedSum.Decimal
	return
}
