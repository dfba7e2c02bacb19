package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/retail_backend/appctx"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/shopspring/decimal"
)

// seed-dev provisions a development tenant with enough data to exercise the
// whole flow: variants with opening stock, riders, a vendor, and one order
// per fulfillment channel.
func main() {
	name := flag.String("name", "Dev Retail", "Business name")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = context.WithValue(ctx, appctx.ContextKeyUserId, 1)
	ctx = context.WithValue(ctx, appctx.ContextKeyUserName, "Seeder")
	ctx = context.WithValue(ctx, appctx.ContextKeyUserRole, string(models.UserRoleAdmin))
	ctx = context.WithValue(ctx, appctx.ContextKeyIsAdmin, true)

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: *name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create business: %v\n", err)
		os.Exit(1)
	}
	ctx = context.WithValue(ctx, appctx.ContextKeyBusinessId, business.ID.String())
	fmt.Printf("business %s (%s)\n", business.Name, business.ID)

	vendor, err := models.CreateVendor(ctx, &models.NewVendor{
		Name:  "Golden Supply Co",
		Phone: "09790000001",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create vendor: %v\n", err)
		os.Exit(1)
	}

	variantIds := make([]int, 0, 3)
	for i, spec := range []struct {
		sku   string
		name  string
		price string
	}{
		{"TSH-BLK-M", "T-Shirt Black M", "12000"},
		{"TSH-WHT-L", "T-Shirt White L", "12000"},
		{"CAP-RED", "Cap Red", "8000"},
	} {
		price, _ := decimal.NewFromString(spec.price)
		variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
			Sku:       spec.sku,
			Name:      spec.name,
			UnitPrice: price,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create variant %d: %v\n", i, err)
			os.Exit(1)
		}
		variantIds = append(variantIds, variant.ID)
	}

	// Opening stock via an approved purchase, so the ledger explains the
	// snapshot from day one.
	purchaseItems := make([]models.NewInventoryTransactionItem, 0, len(variantIds))
	for _, id := range variantIds {
		purchaseItems = append(purchaseItems, models.NewInventoryTransactionItem{
			VariantId: id,
			Quantity:  decimal.NewFromInt(100),
			UnitCost:  decimal.NewFromInt(7000),
		})
	}
	purchase, err := models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		TransactionType: string(models.InventoryTransactionTypePurchase),
		VendorId:        &vendor.ID,
		InvoiceNo:       "SEED-001",
		Items:           purchaseItems,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create opening purchase: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("opening purchase %s\n", purchase.TransactionNumber)

	for _, r := range []models.NewRider{
		{Name: "Kyaw Kyaw", Phone: "09790000002"},
		{Name: "Mg Mg", Phone: "09790000003"},
	} {
		if _, err := models.CreateRider(ctx, &r); err != nil {
			fmt.Fprintf(os.Stderr, "create rider: %v\n", err)
			os.Exit(1)
		}
	}

	for _, ft := range []models.FulfillmentType{
		models.FulfillmentTypeSelfDelivery,
		models.FulfillmentTypeThirdPartyCourier,
		models.FulfillmentTypeStore,
	} {
		order, err := models.CreateOrder(ctx, &models.NewOrder{
			CustomerName:    "Seed Customer " + strings.ToUpper(string(ft[0:1])),
			CustomerPhone:   "09790000010",
			ShippingAddress: "No. 12, Anawrahta Road, Yangon",
			FulfillmentType: string(ft),
			Items: []models.NewOrderItem{
				{VariantId: variantIds[0], Qty: decimal.NewFromInt(2)},
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create order (%s): %v\n", ft, err)
			os.Exit(1)
		}
		fmt.Printf("order %s (%s)\n", order.OrderNumber, ft)
	}

	fmt.Println("done")
}
