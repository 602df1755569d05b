package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/dlclinic/clinic_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: the running stock quantity must track the signed transaction
// ledger exactly, and a sale that would drive it negative must fail hard
// without leaving any partial movement behind.
func TestStockLedger_OversellFailsAtomically(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	medicine, err := models.CreateMedicine(ctx, &models.NewMedicine{
		Name:         "Paracetamol",
		MedicineType: models.MedicineTypeTablet,
		Strength:     "500mg",
		SellingPrice: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("CreateMedicine: %v", err)
	}

	// Creation provisions the zero stock row.
	stock, err := models.GetMedicineStock(ctx, medicine.ID)
	if err != nil {
		t.Fatalf("GetMedicineStock: %v", err)
	}
	if stock.CurrentQuantity != 0 {
		t.Fatalf("expected fresh stock 0; got %d", stock.CurrentQuantity)
	}

	purchase, err := models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypePurchase,
		Quantity:        10,
		UnitPrice:       decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("CreateStockTransaction(purchase): %v", err)
	}
	if purchase.Quantity != 10 {
		t.Fatalf("expected normalized purchase quantity 10; got %d", purchase.Quantity)
	}

	sale, err := models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypeSale,
		Quantity:        3,
	})
	if err != nil {
		t.Fatalf("CreateStockTransaction(sale): %v", err)
	}
	if sale.Quantity != -3 {
		t.Fatalf("expected normalized sale quantity -3; got %d", sale.Quantity)
	}

	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 7 {
		t.Fatalf("expected stock 7 after purchase+sale; got %d", stock.CurrentQuantity)
	}

	// Oversell: 9 > 7 on hand. Must fail and must not move the ledger.
	_, err = models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypeSale,
		Quantity:        9,
	})
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError; got %v", err)
	}
	if insufficient.Available != 7 || insufficient.Requested != 9 {
		t.Fatalf("expected available=7 requested=9; got %+v", insufficient)
	}

	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 7 {
		t.Fatalf("oversell must not move stock; got %d", stock.CurrentQuantity)
	}

	// Editing the sale applies only the difference.
	_, err = models.UpdateStockTransaction(ctx, sale.ID, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypeSale,
		Quantity:        5,
	})
	if err != nil {
		t.Fatalf("UpdateStockTransaction: %v", err)
	}
	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 5 {
		t.Fatalf("expected stock 5 after sale edit 3->5; got %d", stock.CurrentQuantity)
	}

	// Deleting the sale reverses its full effect.
	if err := models.DeleteStockTransaction(ctx, sale.ID); err != nil {
		t.Fatalf("DeleteStockTransaction: %v", err)
	}
	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 10 {
		t.Fatalf("expected stock 10 after sale deletion; got %d", stock.CurrentQuantity)
	}

	// Adjustments keep their supplied sign.
	if _, err := models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypeAdjustment,
		Quantity:        -2,
	}); err != nil {
		t.Fatalf("CreateStockTransaction(adjustment): %v", err)
	}
	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 8 {
		t.Fatalf("expected stock 8 after -2 adjustment; got %d", stock.CurrentQuantity)
	}

	// Invariant: rebuilding from the ledger lands on the same number.
	rebuilt, err := workflow.RebuildStockQuantity(ctx, medicine.ID)
	if err != nil {
		t.Fatalf("RebuildStockQuantity: %v", err)
	}
	if rebuilt != 8 {
		t.Fatalf("rebuild disagrees with running quantity: %d != 8", rebuilt)
	}
}

// Regression: moving a transaction between medicines reverts the old
// medicine fully and applies the full quantity on the new one.
func TestStockLedger_MedicineChangeOnEdit(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	first, err := models.CreateMedicine(ctx, &models.NewMedicine{
		Name:         "Amoxicillin",
		MedicineType: models.MedicineTypeCapsule,
	})
	if err != nil {
		t.Fatalf("CreateMedicine: %v", err)
	}
	second, err := models.CreateMedicine(ctx, &models.NewMedicine{
		Name:         "Ibuprofen",
		MedicineType: models.MedicineTypeTablet,
	})
	if err != nil {
		t.Fatalf("CreateMedicine: %v", err)
	}

	purchase, err := models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      first.ID,
		TransactionType: models.TransactionTypePurchase,
		Quantity:        6,
	})
	if err != nil {
		t.Fatalf("CreateStockTransaction: %v", err)
	}

	if _, err := models.UpdateStockTransaction(ctx, purchase.ID, &models.NewStockTransaction{
		MedicineId:      second.ID,
		TransactionType: models.TransactionTypePurchase,
		Quantity:        6,
	}); err != nil {
		t.Fatalf("UpdateStockTransaction: %v", err)
	}

	firstStock, _ := models.GetMedicineStock(ctx, first.ID)
	secondStock, _ := models.GetMedicineStock(ctx, second.ID)
	if firstStock.CurrentQuantity != 0 {
		t.Fatalf("expected old medicine back to 0; got %d", firstStock.CurrentQuantity)
	}
	if secondStock.CurrentQuantity != 6 {
		t.Fatalf("expected new medicine at 6; got %d", secondStock.CurrentQuantity)
	}
}
