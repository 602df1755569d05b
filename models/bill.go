package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillType string

const (
	BillTypeService  BillType = "service"
	BillTypePharmacy BillType = "pharmacy"
)

// Bill aggregates its line items. TotalAmount is a running aggregate:
// item saves and deletes push deltas into it, and FinalizeBill recomputes
// it from scratch before the bill leaves a workflow.
type Bill struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BillNumber     string          `gorm:"size:20;uniqueIndex;not null" json:"bill_number"`
	PatientId      int             `gorm:"index;not null" json:"patient_id"`
	Patient        *Patient        `json:"patient,omitempty"`
	BillType       BillType        `gorm:"type:enum('service','pharmacy');not null" json:"bill_type"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"paid_amount"`
	Remark         string          `gorm:"type:text" json:"remark"`
	BillDate       time.Time       `gorm:"autoCreateTime" json:"bill_date"`
	CreatedById    int             `gorm:"default:null" json:"created_by_id"`
	Items          []BillItem      `gorm:"foreignKey:BillId" json:"items,omitempty"`
}

type NewBill struct {
	PatientId      int             `json:"patient_id" validate:"required"`
	BillType       BillType        `json:"bill_type" validate:"required,oneof=service pharmacy"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Remark         string          `json:"remark"`
}

// FormatBillNumber renders the yearly invoice number, e.g. INV2026000001.
func FormatBillNumber(year int, seq int64) string {
	return fmt.Sprintf("INV%d%06d", year, seq)
}

func (input *NewBill) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
		return newValidationError(ValidationMissingReference, "patient not found")
	}
	return nil
}

// CreateBill issues the invoice number and inserts the bill header inside
// the caller's transaction. Items, totals and balance posting are the
// workflow's business.
func CreateBill(tx *gorm.DB, ctx context.Context, input *NewBill) (*Bill, error) {
	if err := input.validate(ctx); err != nil {
		tx.Rollback()
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	year := time.Now().Year()
	seqNo, err := utils.NextYearlySequence[Bill](ctx, "bill_date", year)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	bill := Bill{
		BillNumber:     FormatBillNumber(year, seqNo),
		PatientId:      input.PatientId,
		BillType:       input.BillType,
		TaxAmount:      input.TaxAmount,
		DiscountAmount: input.DiscountAmount,
		Remark:         input.Remark,
		CreatedById:    createdBy,
	}

	if err := tx.WithContext(ctx).Create(&bill).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &bill, nil
}

// ApplyBillTotalDelta pushes a signed amount onto the bill's running total
// as a single atomic UPDATE.
func ApplyBillTotalDelta(tx *gorm.DB, billId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	result := tx.Exec("UPDATE bills SET total_amount = total_amount + ? WHERE id = ?", delta, billId)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return newConcurrentModification("bill", billId, gorm.ErrRecordNotFound)
	}
	return nil
}

// FinalizeBill recomputes the bill total from its persisted items:
// sum(total_price) + tax - discount. Idempotent; calling it twice in the
// same transaction yields the same total.
func FinalizeBill(tx *gorm.DB, bill *Bill) error {
	var subtotal decimal.Decimal
	row := tx.Raw("SELECT COALESCE(SUM(total_price), 0) FROM bill_items WHERE bill_id = ?", bill.ID).Row()
	if err := row.Scan(&subtotal); err != nil {
		tx.Rollback()
		return err
	}

	bill.TotalAmount = subtotal.Add(bill.TaxAmount).Sub(bill.DiscountAmount)
	if err := tx.Model(&Bill{}).Where("id = ?", bill.ID).
		Update("total_amount", bill.TotalAmount).Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

func GetBill(ctx context.Context, id int) (*Bill, error) {
	bill, err := utils.FetchSingleModel[Bill](ctx, id, "Items", "Patient")
	if err != nil {
		return nil, newConcurrentModification("bill", id, err)
	}
	return bill, nil
}

// ListBillsByPatient returns a patient's bills, newest first.
func ListBillsByPatient(ctx context.Context, patientId int) ([]*Bill, error) {
	db := config.GetDB()
	var bills []*Bill
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientId).
		Order("bill_date DESC").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}
