package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeSale       TransactionType = "sale"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeExpired    TransactionType = "expired"
	TransactionTypeDamaged    TransactionType = "damaged"
	TransactionTypeReturn     TransactionType = "return"
)

// StockTransaction is a signed ledger entry; the stored quantity sign is
// forced by the transaction type so downstream delta math never re-derives
// direction.
type StockTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	MedicineId      int             `gorm:"index;not null" json:"medicine_id"`
	TransactionType TransactionType `gorm:"type:enum('purchase','sale','adjustment','expired','damaged','return');not null" json:"transaction_type"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"unit_price"`
	BatchNumber     string          `gorm:"size:50" json:"batch_number"`
	ExpiryDate      *time.Time      `gorm:"default:null" json:"expiry_date"`
	Supplier        string          `gorm:"size:200" json:"supplier"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	PatientId       int             `gorm:"index;default:null" json:"patient_id"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById     int             `gorm:"default:null" json:"created_by_id"`
}

type NewStockTransaction struct {
	MedicineId      int             `json:"medicine_id" validate:"required"`
	TransactionType TransactionType `json:"transaction_type" validate:"required"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	BatchNumber     string          `json:"batch_number"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	Supplier        string          `json:"supplier"`
	ReferenceNumber string          `json:"reference_number"`
	PatientId       int             `json:"patient_id"`
	Notes           string          `json:"notes"`
}

// NormalizeQuantity forces the quantity sign implied by the transaction
// type: inbound positive, outbound negative, adjustment as supplied.
func NormalizeQuantity(transactionType TransactionType, quantity int) int {
	switch transactionType {
	case TransactionTypePurchase, TransactionTypeReturn:
		return utils.AbsInt(quantity)
	case TransactionTypeSale, TransactionTypeExpired, TransactionTypeDamaged:
		return -utils.AbsInt(quantity)
	default:
		return quantity
	}
}

func (input *NewStockTransaction) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	switch input.TransactionType {
	case TransactionTypePurchase, TransactionTypeReturn,
		TransactionTypeSale, TransactionTypeExpired, TransactionTypeDamaged:
		if input.Quantity == 0 {
			return newValidationError(ValidationNonPositiveQuantity, "quantity must be > 0")
		}
	case TransactionTypeAdjustment:
		if input.Quantity == 0 {
			return newValidationError(ValidationNonPositiveQuantity, "adjustment quantity must be non-zero")
		}
	default:
		return newValidationError(ValidationMismatchedKind, "unknown transaction type")
	}
	if err := utils.ValidateResourceId[Medicine](ctx, input.MedicineId); err != nil {
		return newValidationError(ValidationMissingReference, "medicine not found")
	}
	if input.PatientId > 0 {
		if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
			return newValidationError(ValidationMissingReference, "patient not found")
		}
	}
	return nil
}

func (input *NewStockTransaction) toTransaction(ctx context.Context) *StockTransaction {
	createdBy, _ := utils.GetUserIdFromContext(ctx)
	return &StockTransaction{
		MedicineId:      input.MedicineId,
		TransactionType: input.TransactionType,
		Quantity:        NormalizeQuantity(input.TransactionType, input.Quantity),
		UnitPrice:       input.UnitPrice,
		BatchNumber:     input.BatchNumber,
		ExpiryDate:      input.ExpiryDate,
		Supplier:        input.Supplier,
		ReferenceNumber: input.ReferenceNumber,
		PatientId:       input.PatientId,
		Notes:           input.Notes,
		CreatedById:     createdBy,
	}
}

// SaveStockTransaction persists the entry and keeps the stock row in sync:
//   - create: apply the full signed quantity;
//   - update, same medicine: apply (new - old);
//   - update, medicine changed: revert the old quantity on the old medicine,
//     then apply the full new quantity on the new one.
//
// Runs inside the caller's transaction; any failure rolls it back.
func SaveStockTransaction(tx *gorm.DB, ctx context.Context, txn *StockTransaction) error {
	oldQty := 0
	oldMedicine := 0
	if txn.ID > 0 {
		var old StockTransaction
		if err := tx.First(&old, txn.ID).Error; err != nil {
			tx.Rollback()
			return newConcurrentModification("stock transaction", txn.ID, err)
		}
		oldQty = old.Quantity
		oldMedicine = old.MedicineId
	}

	if err := tx.WithContext(ctx).Save(txn).Error; err != nil {
		tx.Rollback()
		return err
	}

	if oldMedicine > 0 && oldMedicine != txn.MedicineId {
		if _, err := ApplyStockDelta(tx, oldMedicine, -oldQty); err != nil {
			return err
		}
		if _, err := ApplyStockDelta(tx, txn.MedicineId, txn.Quantity); err != nil {
			return err
		}
		return nil
	}

	delta := txn.Quantity - oldQty
	if delta != 0 {
		if _, err := ApplyStockDelta(tx, txn.MedicineId, delta); err != nil {
			return err
		}
	}
	return nil
}

// RemoveStockTransaction deletes the entry and reverses its full effect.
func RemoveStockTransaction(tx *gorm.DB, txn *StockTransaction) error {
	if txn.Quantity != 0 {
		if _, err := ApplyStockDelta(tx, txn.MedicineId, -txn.Quantity); err != nil {
			return err
		}
	}
	if err := tx.Delete(&StockTransaction{}, txn.ID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

func CreateStockTransaction(ctx context.Context, input *NewStockTransaction) (*StockTransaction, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	txn := input.toTransaction(ctx)

	db := config.GetDB()
	tx := db.Begin()
	if err := SaveStockTransaction(tx, ctx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func UpdateStockTransaction(ctx context.Context, id int, input *NewStockTransaction) (*StockTransaction, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	existing, err := utils.FetchSingleModel[StockTransaction](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("stock transaction", id, err)
	}

	txn := input.toTransaction(ctx)
	txn.ID = existing.ID
	txn.CreatedAt = existing.CreatedAt
	if txn.CreatedById == 0 {
		txn.CreatedById = existing.CreatedById
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := SaveStockTransaction(tx, ctx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func DeleteStockTransaction(ctx context.Context, id int) error {
	existing, err := utils.FetchSingleModel[StockTransaction](ctx, id)
	if err != nil {
		return newConcurrentModification("stock transaction", id, err)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := RemoveStockTransaction(tx, existing); err != nil {
		return err
	}
	return tx.Commit().Error
}

// ListStockTransactions returns a medicine's ledger, newest first.
func ListStockTransactions(ctx context.Context, medicineId int) ([]*StockTransaction, error) {
	db := config.GetDB()
	var txns []*StockTransaction
	err := db.WithContext(ctx).
		Where("medicine_id = ?", medicineId).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
