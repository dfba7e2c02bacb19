package models

import (
	"log"

	"github.com/mmdatafocus/retail_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&ProductVariant{},
		&Rider{}, &Vendor{},
		&Order{}, &OrderItem{},
		&InventoryTransaction{}, &InventoryTransactionItem{},
		&PubSubMessageRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
