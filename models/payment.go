package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodUpi    PaymentMethod = "upi"
	PaymentMethodCheque PaymentMethod = "cheque"
)

// Payment credits the patient's running balance. A payment may stand alone
// (advance) or reference the bill it settles.
type Payment struct {
	ID           int             `gorm:"primary_key" json:"id"`
	PatientId    int             `gorm:"index;not null" json:"patient_id"`
	BillId       int             `gorm:"index;default:null" json:"bill_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method       PaymentMethod   `gorm:"type:enum('cash','card','upi','cheque');not null;default:cash" json:"method"`
	Reference    string          `gorm:"size:100" json:"reference"`
	Notes        string          `gorm:"type:text" json:"notes"`
	PaymentDate  time.Time       `gorm:"autoCreateTime" json:"payment_date"`
	ReceivedById int             `gorm:"default:null" json:"received_by_id"`
}

type NewPayment struct {
	PatientId int             `json:"patient_id" validate:"required"`
	BillId    int             `json:"bill_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method" validate:"omitempty,oneof=cash card upi cheque"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

func (input *NewPayment) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return newValidationError(ValidationNonPositiveQuantity, "payment amount must be > 0")
	}
	if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
		return newValidationError(ValidationMissingReference, "patient not found")
	}
	if input.BillId > 0 {
		bill, err := utils.FetchSingleModel[Bill](ctx, input.BillId)
		if err != nil {
			return newValidationError(ValidationMissingReference, "bill not found")
		}
		if bill.PatientId != input.PatientId {
			return newValidationError(ValidationMismatchedKind, "bill belongs to a different patient")
		}
	}
	return nil
}

func (input *NewPayment) toPayment(ctx context.Context) *Payment {
	receivedBy, _ := utils.GetUserIdFromContext(ctx)
	method := input.Method
	if method == "" {
		method = PaymentMethodCash
	}
	return &Payment{
		PatientId:    input.PatientId,
		BillId:       input.BillId,
		Amount:       input.Amount,
		Method:       method,
		Reference:    input.Reference,
		Notes:        input.Notes,
		ReceivedById: receivedBy,
	}
}

// SavePayment persists the payment and credits the patient's balance by
// (new amount - old amount), so edits never double-count. Runs inside the
// caller's transaction.
func SavePayment(tx *gorm.DB, ctx context.Context, payment *Payment) error {
	oldAmount := decimal.Zero
	if payment.ID > 0 {
		var old Payment
		if err := tx.First(&old, payment.ID).Error; err != nil {
			tx.Rollback()
			return newConcurrentModification("payment", payment.ID, err)
		}
		oldAmount = old.Amount
	}

	if err := tx.WithContext(ctx).Save(payment).Error; err != nil {
		tx.Rollback()
		return err
	}

	delta := payment.Amount.Sub(oldAmount)
	if err := ApplyBalanceDelta(tx, payment.PatientId, delta.Neg()); err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

// RemovePayment voids the payment: the persisted amount goes back onto the
// patient's balance, then the row is deleted.
func RemovePayment(tx *gorm.DB, payment *Payment) error {
	var persisted Payment
	if err := tx.First(&persisted, payment.ID).Error; err != nil {
		tx.Rollback()
		return newConcurrentModification("payment", payment.ID, err)
	}

	if err := ApplyBalanceDelta(tx, persisted.PatientId, persisted.Amount); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&Payment{}, persisted.ID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	payment := input.toPayment(ctx)

	db := config.GetDB()
	tx := db.Begin()
	if err := SavePayment(tx, ctx, payment); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func UpdatePayment(ctx context.Context, id int, input *NewPayment) (*Payment, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	existing, err := utils.FetchSingleModel[Payment](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("payment", id, err)
	}
	if existing.PatientId != input.PatientId {
		return nil, newValidationError(ValidationMismatchedKind, "payment cannot move between patients")
	}

	payment := input.toPayment(ctx)
	payment.ID = existing.ID
	payment.PaymentDate = existing.PaymentDate
	if payment.ReceivedById == 0 {
		payment.ReceivedById = existing.ReceivedById
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := SavePayment(tx, ctx, payment); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func DeletePayment(ctx context.Context, id int) error {
	existing, err := utils.FetchSingleModel[Payment](ctx, id)
	if err != nil {
		return newConcurrentModification("payment", id, err)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := RemovePayment(tx, existing); err != nil {
		return err
	}
	return tx.Commit().Error
}

// ListPaymentsByPatient returns a patient's payments, newest first.
func ListPaymentsByPatient(ctx context.Context, patientId int) ([]*Payment, error) {
	db := config.GetDB()
	var payments []*Payment
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientId).
		Order("payment_date DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
