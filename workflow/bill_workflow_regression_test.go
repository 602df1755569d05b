package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/dlclinic/clinic_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: a pharmacy bill moves stock inside the same transaction as
// the bill itself. An oversold line must take the whole bill down: no bill
// row, no items, no stock movement, no balance change.
func TestCreateBillWorkflow_PharmacyStockAtomicity(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Deepak Singh",
		PhoneNumber: "+919811223344",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	medicine, err := models.CreateMedicine(ctx, &models.NewMedicine{
		Name:         "Cough Syrup",
		MedicineType: models.MedicineTypeSyrup,
		SellingPrice: decimal.NewFromInt(120),
	})
	if err != nil {
		t.Fatalf("CreateMedicine: %v", err)
	}
	if _, err := models.CreateStockTransaction(ctx, &models.NewStockTransaction{
		MedicineId:      medicine.ID,
		TransactionType: models.TransactionTypePurchase,
		Quantity:        5,
	}); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	// Oversell: 8 > 5 on hand.
	_, err = workflow.CreateBillWorkflow(ctx, &workflow.CreateBillInput{
		Bill: models.NewBill{
			PatientId: patient.ID,
			BillType:  models.BillTypePharmacy,
		},
		Items: []*models.NewBillItem{
			{MedicineId: medicine.ID, Quantity: 8},
		},
	})
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError; got %v", err)
	}

	stock, _ := models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 5 {
		t.Fatalf("failed bill must not move stock; got %d", stock.CurrentQuantity)
	}
	patient, _ = models.GetPatient(ctx, patient.ID)
	if !patient.Balance.IsZero() {
		t.Fatalf("failed bill must not touch balance; got %s", patient.Balance.String())
	}
	db := config.GetDB()
	var billCount int64
	if err := db.Model(&models.Bill{}).Where("patient_id = ?", patient.ID).Count(&billCount).Error; err != nil {
		t.Fatalf("count bills: %v", err)
	}
	if billCount != 0 {
		t.Fatalf("failed workflow left %d bill rows behind", billCount)
	}

	// Sane quantity goes through: stock, total, balance, payment all settle.
	bill, err := workflow.CreateBillWorkflow(ctx, &workflow.CreateBillInput{
		Bill: models.NewBill{
			PatientId: patient.ID,
			BillType:  models.BillTypePharmacy,
		},
		Items: []*models.NewBillItem{
			{MedicineId: medicine.ID, Quantity: 2},
		},
		PaymentAmount: decimal.NewFromInt(240),
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("CreateBillWorkflow: %v", err)
	}
	if bill.TotalAmount.Cmp(decimal.NewFromInt(240)) != 0 {
		t.Fatalf("expected total 240 from catalog price; got %s", bill.TotalAmount.String())
	}
	if !strings.HasPrefix(bill.BillNumber, "INV") {
		t.Fatalf("unexpected bill number %q", bill.BillNumber)
	}

	stock, _ = models.GetMedicineStock(ctx, medicine.ID)
	if stock.CurrentQuantity != 3 {
		t.Fatalf("expected stock 3 after sale of 2; got %d", stock.CurrentQuantity)
	}
	patient, _ = models.GetPatient(ctx, patient.ID)
	if !patient.Balance.IsZero() {
		t.Fatalf("fully paid bill should leave balance 0; got %s", patient.Balance.String())
	}

	// The sale is traceable back to the bill in the stock ledger.
	txns, err := models.ListStockTransactions(ctx, medicine.ID)
	if err != nil {
		t.Fatalf("ListStockTransactions: %v", err)
	}
	found := false
	for _, txn := range txns {
		if txn.ReferenceNumber == bill.BillNumber && txn.TransactionType == models.TransactionTypeSale {
			found = true
			if txn.PatientId != patient.ID {
				t.Fatalf("sale entry not linked to patient: %+v", txn)
			}
		}
	}
	if !found {
		t.Fatalf("no sale ledger entry referencing %s", bill.BillNumber)
	}
}

// Regression: tax and discount enter the total exactly once, through the
// finalize recomputation.
func TestCreateBillWorkflow_TaxAndDiscount(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Esha Patel",
		PhoneNumber: "+919822334455",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	xray, err := models.CreateService(ctx, &models.NewService{
		Name:         "X-Ray",
		DefaultPrice: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	bill, err := workflow.CreateBillWorkflow(ctx, &workflow.CreateBillInput{
		Bill: models.NewBill{
			PatientId:      patient.ID,
			BillType:       models.BillTypeService,
			TaxAmount:      decimal.NewFromInt(90),
			DiscountAmount: decimal.NewFromInt(50),
		},
		Items: []*models.NewBillItem{
			{ServiceId: xray.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateBillWorkflow: %v", err)
	}

	// 2 x 500 + 90 - 50 = 1040
	if bill.TotalAmount.Cmp(decimal.NewFromInt(1040)) != 0 {
		t.Fatalf("expected total 1040; got %s", bill.TotalAmount.String())
	}
	patient, _ = models.GetPatient(ctx, patient.ID)
	if patient.Balance.Cmp(decimal.NewFromInt(1040)) != 0 {
		t.Fatalf("expected balance 1040; got %s", patient.Balance.String())
	}
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
}

func setupIntegrationEnv(t *testing.T) {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "clinic_test")
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clinic-wf-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clinic-wf-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=clinic_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
