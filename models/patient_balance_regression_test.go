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

func mustDecimal(t *testing.T, got decimal.Decimal, want int64, what string) {
	t.Helper()
	if got.Cmp(decimal.NewFromInt(want)) != 0 {
		t.Fatalf("%s = %s; want %d", what, got.String(), want)
	}
}

// Regression: the patient's running balance follows the bill and payment
// ledger through creation, edit, and settlement.
// Expected march: 0 -> 1000 (bill) -> 1050 (added line) -> 650 (payment 400).
func TestPatientBalance_BillEditAndPayment(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Asha Rao",
		Age:         34,
		PhoneNumber: "+919876543210",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	mustDecimal(t, patient.Balance, 0, "fresh balance")

	consult, err := models.CreateService(ctx, &models.NewService{
		Name:         "Consultation",
		DefaultPrice: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	dressing, err := models.CreateService(ctx, &models.NewService{
		Name:         "Dressing",
		DefaultPrice: decimal.NewFromInt(50),
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
	mustDecimal(t, bill.TotalAmount, 1000, "bill total")

	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, 1000, "balance after bill")

	// Edit: keep the consultation, add a dressing, pay 400.
	persisted, err := models.GetBill(ctx, bill.ID)
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if len(persisted.Items) != 1 {
		t.Fatalf("expected 1 item; got %d", len(persisted.Items))
	}

	updated, err := workflow.UpdateBillWorkflow(ctx, bill.ID, &workflow.UpdateBillInput{
		Items: []*models.NewBillItem{
			{Id: persisted.Items[0].ID, ServiceId: consult.ID, Quantity: 1},
			{ServiceId: dressing.ID, Quantity: 1},
		},
		PaymentAmount: decimal.NewFromInt(400),
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("UpdateBillWorkflow: %v", err)
	}
	mustDecimal(t, updated.TotalAmount, 1050, "bill total after edit")
	mustDecimal(t, updated.PaidAmount, 400, "paid amount after edit")

	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, 650, "balance after edit+payment")

	// Re-edit with the same lines and a different payment: the old payment
	// is voided, not stacked.
	persisted, _ = models.GetBill(ctx, bill.ID)
	items := make([]*models.NewBillItem, 0, len(persisted.Items))
	for i := range persisted.Items {
		it := persisted.Items[i]
		items = append(items, &models.NewBillItem{
			Id:         it.ID,
			ServiceId:  it.ServiceId,
			MedicineId: it.MedicineId,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		})
	}
	updated, err = workflow.UpdateBillWorkflow(ctx, bill.ID, &workflow.UpdateBillInput{
		Items:         items,
		PaymentAmount: decimal.NewFromInt(1050),
		PaymentMethod: models.PaymentMethodUpi,
	})
	if err != nil {
		t.Fatalf("UpdateBillWorkflow(settle): %v", err)
	}
	mustDecimal(t, updated.TotalAmount, 1050, "bill total after re-edit")

	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, 0, "balance fully settled")

	payments, err := models.ListPaymentsByPatient(ctx, patient.ID)
	if err != nil {
		t.Fatalf("ListPaymentsByPatient: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected exactly 1 live payment after re-edit; got %d", len(payments))
	}

	// Invariant: rebuilding from bills and payments lands on the same number.
	rebuilt, err := workflow.RebuildPatientBalance(ctx, patient.ID)
	if err != nil {
		t.Fatalf("RebuildPatientBalance: %v", err)
	}
	mustDecimal(t, rebuilt, 0, "rebuilt balance")
}

// Regression: standalone payments (advances) and their edits and deletions
// post symmetric deltas onto the balance.
func TestPatientBalance_PaymentDeltaSymmetry(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Binod Kumar",
		PhoneNumber: "+919812345678",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		PatientId: patient.ID,
		Amount:    decimal.NewFromInt(400),
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, -400, "balance after advance")

	if _, err := models.UpdatePayment(ctx, payment.ID, &models.NewPayment{
		PatientId: patient.ID,
		Amount:    decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, -500, "balance after payment edit")

	if err := models.DeletePayment(ctx, payment.ID); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	patient, _ = models.GetPatient(ctx, patient.ID)
	mustDecimal(t, patient.Balance, 0, "balance after payment deletion")
}

// Regression: registry edits write registry fields only. A balance delta
// committed between the edit's read and its write must survive the edit.
func TestPatientBalance_RegistryEditPreservesBalance(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Chitra Devi",
		PhoneNumber: "+919876512345",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	// Hold a row lock with an uncommitted delta so the edit reads the
	// pre-delta balance and queues behind the lock on its own UPDATE.
	db := config.GetDB()
	tx := db.Begin()
	if err := models.ApplyBalanceDelta(tx, patient.ID, decimal.NewFromInt(1000)); err != nil {
		tx.Rollback()
		t.Fatalf("ApplyBalanceDelta: %v", err)
	}

	editDone := make(chan error, 1)
	go func() {
		_, err := models.UpdatePatient(ctx, patient.ID, &models.NewPatient{
			Name:        "Chitra Devi Iyer",
			PhoneNumber: "+919876512345",
		})
		editDone <- err
	}()

	time.Sleep(500 * time.Millisecond)
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit delta: %v", err)
	}
	if err := <-editDone; err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}

	patient, _ = models.GetPatient(ctx, patient.ID)
	if patient.Name != "Chitra Devi Iyer" {
		t.Fatalf("name = %q; want edited name", patient.Name)
	}
	mustDecimal(t, patient.Balance, 1000, "balance after concurrent registry edit")
}
