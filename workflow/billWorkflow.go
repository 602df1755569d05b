package workflow

import (
	"context"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateBillInput carries the bill header, its lines, and the amount paid
// at the counter in one request.
type CreateBillInput struct {
	Bill          models.NewBill        `json:"bill"`
	Items         []*models.NewBillItem `json:"items" validate:"required,min=1"`
	PaymentAmount decimal.Decimal       `json:"payment_amount"`
	PaymentMethod models.PaymentMethod  `json:"payment_method"`
}

// UpdateBillInput replaces a bill's line items and its payment. Items with
// an id update the existing line; items without one are new; persisted
// lines missing from the list are removed.
type UpdateBillInput struct {
	TaxAmount      decimal.Decimal       `json:"tax_amount"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	Remark         string                `json:"remark"`
	Items          []*models.NewBillItem `json:"items" validate:"required,min=1"`
	PaymentAmount  decimal.Decimal       `json:"payment_amount"`
	PaymentMethod  models.PaymentMethod  `json:"payment_method"`
}

// postPharmacySale records the stock movement for one pharmacy line. The
// sale entry drives the stock row down; if the medicine cannot cover the
// quantity the whole bill transaction dies with it.
func postPharmacySale(tx *gorm.DB, ctx context.Context, bill *models.Bill, item *models.BillItem) error {
	createdBy, _ := utils.GetUserIdFromContext(ctx)
	txn := models.StockTransaction{
		MedicineId:      item.MedicineId,
		TransactionType: models.TransactionTypeSale,
		Quantity:        models.NormalizeQuantity(models.TransactionTypeSale, item.Quantity),
		UnitPrice:       item.UnitPrice,
		PatientId:       bill.PatientId,
		ReferenceNumber: bill.BillNumber,
		CreatedById:     createdBy,
	}
	return models.SaveStockTransaction(tx, ctx, &txn)
}

// CreateBillWorkflow runs the whole counter flow in one transaction: the
// bill header, every line, the stock movements behind pharmacy lines, the
// recomputed total, the patient's balance debit, and the optional payment.
// Any failure, including insufficient stock, leaves nothing behind.
func CreateBillWorkflow(ctx context.Context, input *CreateBillInput) (*models.Bill, error) {
	logger := config.GetLogger()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	bill, err := models.CreateBill(tx, ctx, &input.Bill)
	if err != nil {
		return nil, err
	}

	for _, itemInput := range input.Items {
		itemInput.Id = 0
		item, err := itemInput.ToBillItem(ctx, bill.ID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.SaveBillItem(tx, ctx, item); err != nil {
			return nil, err
		}
		if item.Kind == models.BillItemKindPharmacy {
			if err := postPharmacySale(tx, ctx, bill, item); err != nil {
				config.LogError(logger, "workflow", "CreateBillWorkflow", "posting pharmacy sale", item, err)
				return nil, err
			}
		}
	}

	if err := models.FinalizeBill(tx, bill); err != nil {
		return nil, err
	}

	if err := models.ApplyBalanceDelta(tx, bill.PatientId, bill.TotalAmount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.PaymentAmount.IsPositive() {
		receivedBy, _ := utils.GetUserIdFromContext(ctx)
		method := input.PaymentMethod
		if method == "" {
			method = models.PaymentMethodCash
		}
		payment := models.Payment{
			PatientId:    bill.PatientId,
			BillId:       bill.ID,
			Amount:       input.PaymentAmount,
			Method:       method,
			ReceivedById: receivedBy,
		}
		if err := models.SavePayment(tx, ctx, &payment); err != nil {
			return nil, err
		}

		bill.PaidAmount = input.PaymentAmount
		if err := tx.Model(&models.Bill{}).Where("id = ?", bill.ID).
			Update("paid_amount", bill.PaidAmount).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return bill, nil
}

// UpdateBillWorkflow re-edits a bill as a whole: the line items are
// replaced against the submitted list, the total is recomputed, the
// patient's balance takes the difference between the new and old totals,
// and every prior payment is voided before the new payment is recorded.
// Stock movements posted at creation time are left untouched.
func UpdateBillWorkflow(ctx context.Context, billId int, input *UpdateBillInput) (*models.Bill, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	var bill models.Bill
	if err := tx.Preload("Items").First(&bill, billId).Error; err != nil {
		tx.Rollback()
		return nil, models.NewIntegrityNotFound("bill", billId, err)
	}
	oldTotal := bill.TotalAmount

	bill.TaxAmount = input.TaxAmount
	bill.DiscountAmount = input.DiscountAmount
	bill.Remark = input.Remark
	if err := tx.Model(&models.Bill{}).Where("id = ?", bill.ID).
		Updates(map[string]interface{}{
			"tax_amount":      bill.TaxAmount,
			"discount_amount": bill.DiscountAmount,
			"remark":          bill.Remark,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Reconcile the line set against what is persisted.
	existing := make(map[int]*models.BillItem, len(bill.Items))
	for i := range bill.Items {
		existing[bill.Items[i].ID] = &bill.Items[i]
	}

	for _, itemInput := range input.Items {
		if itemInput.Id > 0 {
			if _, ok := existing[itemInput.Id]; !ok {
				tx.Rollback()
				return nil, models.NewIntegrityNotFound("bill item", itemInput.Id, gorm.ErrRecordNotFound)
			}
			delete(existing, itemInput.Id)
		}
		item, err := itemInput.ToBillItem(ctx, bill.ID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.SaveBillItem(tx, ctx, item); err != nil {
			return nil, err
		}
	}

	for _, leftover := range existing {
		if err := models.RemoveBillItem(tx, leftover); err != nil {
			return nil, err
		}
	}

	if err := models.FinalizeBill(tx, &bill); err != nil {
		return nil, err
	}

	if err := models.ApplyBalanceDelta(tx, bill.PatientId, bill.TotalAmount.Sub(oldTotal)); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Void every prior payment, then record the submitted one fresh.
	var payments []models.Payment
	if err := tx.Where("bill_id = ?", bill.ID).Find(&payments).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range payments {
		if err := models.RemovePayment(tx, &payments[i]); err != nil {
			return nil, err
		}
	}

	bill.PaidAmount = decimal.Zero
	if input.PaymentAmount.IsPositive() {
		receivedBy, _ := utils.GetUserIdFromContext(ctx)
		method := input.PaymentMethod
		if method == "" {
			method = models.PaymentMethodCash
		}
		payment := models.Payment{
			PatientId:    bill.PatientId,
			BillId:       bill.ID,
			Amount:       input.PaymentAmount,
			Method:       method,
			ReceivedById: receivedBy,
		}
		if err := models.SavePayment(tx, ctx, &payment); err != nil {
			return nil, err
		}
		bill.PaidAmount = input.PaymentAmount
	}

	if err := tx.Model(&models.Bill{}).Where("id = ?", bill.ID).
		Update("paid_amount", bill.PaidAmount).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &bill, nil
}
