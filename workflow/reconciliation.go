package workflow

import (
	"context"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/shopspring/decimal"
)

// RebuildPatientBalance recomputes one patient's balance from first
// principles: sum of bill totals minus sum of payments. Used by the
// repair command when the running aggregate is suspected to have drifted.
// Returns the rebuilt balance.
func RebuildPatientBalance(ctx context.Context, patientId int) (decimal.Decimal, error) {
	db := config.GetDB()
	tx := db.Begin()

	var billed decimal.Decimal
	row := tx.Raw("SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE patient_id = ?", patientId).Row()
	if err := row.Scan(&billed); err != nil {
		tx.Rollback()
		return decimal.Zero, err
	}

	var paid decimal.Decimal
	row = tx.Raw("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE patient_id = ?", patientId).Row()
	if err := row.Scan(&paid); err != nil {
		tx.Rollback()
		return decimal.Zero, err
	}

	balance := billed.Sub(paid)
	result := tx.Exec("UPDATE patients SET balance = ? WHERE id = ?", balance, patientId)
	if result.Error != nil {
		tx.Rollback()
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return decimal.Zero, models.NewIntegrityNotFound("patient", patientId, nil)
	}

	if err := tx.Commit().Error; err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// RebuildStockQuantity recomputes one medicine's running quantity as the
// sum of its signed ledger entries. Returns the rebuilt quantity.
func RebuildStockQuantity(ctx context.Context, medicineId int) (int, error) {
	db := config.GetDB()
	tx := db.Begin()

	stock, err := models.LockMedicineStock(tx, medicineId)
	if err != nil {
		return 0, err
	}

	var total int
	row := tx.Raw("SELECT COALESCE(SUM(quantity), 0) FROM stock_transactions WHERE medicine_id = ?", medicineId).Row()
	if err := row.Scan(&total); err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Exec("UPDATE medicine_stocks SET current_quantity = ? WHERE id = ?", total, stock.ID).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return total, nil
}

// RebuildAllPatientBalances walks every patient. Drift on one patient does
// not stop the sweep; the first error is reported after the pass.
func RebuildAllPatientBalances(ctx context.Context) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var ids []int
	if err := db.WithContext(ctx).Model(&models.Patient{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	rebuilt := 0
	var firstErr error
	for _, id := range ids {
		if _, err := RebuildPatientBalance(ctx, id); err != nil {
			config.LogError(logger, "workflow", "RebuildAllPatientBalances", "rebuilding balance", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rebuilt++
	}
	return rebuilt, firstErr
}

// RebuildAllStockQuantities walks every medicine with a stock row.
func RebuildAllStockQuantities(ctx context.Context) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var ids []int
	if err := db.WithContext(ctx).Model(&models.MedicineStock{}).Pluck("medicine_id", &ids).Error; err != nil {
		return 0, err
	}

	rebuilt := 0
	var firstErr error
	for _, id := range ids {
		if _, err := RebuildStockQuantity(ctx, id); err != nil {
			config.LogError(logger, "workflow", "RebuildAllStockQuantities", "rebuilding stock", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rebuilt++
	}
	return rebuilt, firstErr
}
