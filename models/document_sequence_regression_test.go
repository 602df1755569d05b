package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/dlclinic/clinic_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: the very first document of a deployment (empty tables, fresh
// redis counters) gets sequence 1. Seeding counts rows by each document's
// own date column; bills have bill_date and expenses expense_date, so a seed
// query written against created_at would error out on the first issue.
func TestDocumentNumbers_FreshDeploymentStartsAtOne(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	year := time.Now().Year()

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Divya Nair",
		PhoneNumber: "+919876501234",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if want := models.FormatFileNumber(year, 1); patient.FileNumber != want {
		t.Fatalf("first file number = %q; want %q", patient.FileNumber, want)
	}

	consult, err := models.CreateService(ctx, &models.NewService{
		Name:         "Consultation",
		DefaultPrice: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	bill, err := workflow.CreateBillWorkflow(ctx, &workflow.CreateBillInput{
		Bill: models.NewBill{
			PatientId: patient.ID,
			BillType:  models.BillTypeService,
		},
		Items: []*models.NewBillItem{
			{ServiceId: consult.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateBillWorkflow: %v", err)
	}
	if want := models.FormatBillNumber(year, 1); bill.BillNumber != want {
		t.Fatalf("first bill number = %q; want %q", bill.BillNumber, want)
	}
}

// Regression: expense numbers take their year from expense_date, so a
// backdated expense numbers into its own year's sequence and the seed counts
// rows by expense_date too. The two must agree or counters drift.
func TestExpenseNumbers_YearFollowsExpenseDate(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	lastYear := time.Now().Year() - 1
	backdated := time.Date(lastYear, time.March, 14, 10, 0, 0, 0, time.UTC)

	first, err := models.CreateExpense(ctx, &models.NewExpense{
		Category:    models.ExpenseCategorySupplies,
		Description: "Gauze restock",
		Amount:      decimal.NewFromInt(1200),
		ExpenseDate: backdated,
	})
	if err != nil {
		t.Fatalf("CreateExpense(backdated): %v", err)
	}
	if want := models.FormatExpenseNumber(lastYear, 1); first.ExpenseNumber != want {
		t.Fatalf("backdated expense number = %q; want %q", first.ExpenseNumber, want)
	}

	second, err := models.CreateExpense(ctx, &models.NewExpense{
		Category:    models.ExpenseCategorySupplies,
		Description: "Spirit swabs",
		Amount:      decimal.NewFromInt(300),
		ExpenseDate: backdated.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("CreateExpense(backdated second): %v", err)
	}
	if want := models.FormatExpenseNumber(lastYear, 2); second.ExpenseNumber != want {
		t.Fatalf("second backdated expense number = %q; want %q", second.ExpenseNumber, want)
	}

	// The current year runs its own counter, unaffected by the backdated rows.
	current, err := models.CreateExpense(ctx, &models.NewExpense{
		Category:    models.ExpenseCategoryUtilities,
		Description: "Electricity",
		Amount:      decimal.NewFromInt(8000),
	})
	if err != nil {
		t.Fatalf("CreateExpense(current year): %v", err)
	}
	if want := models.FormatExpenseNumber(time.Now().Year(), 1); current.ExpenseNumber != want {
		t.Fatalf("current-year expense number = %q; want %q", current.ExpenseNumber, want)
	}
}
