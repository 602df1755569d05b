package models

import (
	"context"
	"fmt"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillItemKind string

const (
	BillItemKindService  BillItemKind = "service"
	BillItemKindPharmacy BillItemKind = "pharmacy"
)

// BillItem is one line of a bill. TotalPrice is always unit price times
// quantity; it is recomputed on every save, never trusted from input.
type BillItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BillId      int             `gorm:"index;not null" json:"bill_id"`
	Kind        BillItemKind    `gorm:"type:enum('service','pharmacy');not null" json:"kind"`
	ServiceId   int             `gorm:"index;default:null" json:"service_id"`
	MedicineId  int             `gorm:"index;default:null" json:"medicine_id"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
}

type NewBillItem struct {
	Id          int             `json:"id"`
	ServiceId   int             `json:"service_id"`
	MedicineId  int             `json:"medicine_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is the one place line amounts are computed.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ToBillItem validates the input and resolves the catalog reference: the
// kind is inferred from whichever of service/medicine is set, the unit
// price is snapshotted from the catalog when absent, and the description
// defaults from the catalog name.
func (input *NewBillItem) ToBillItem(ctx context.Context, billId int) (*BillItem, error) {
	if input.ServiceId > 0 && input.MedicineId > 0 {
		return nil, newValidationError(ValidationMismatchedKind, "bill item cannot reference both a service and a medicine")
	}
	if input.ServiceId == 0 && input.MedicineId == 0 {
		return nil, newValidationError(ValidationMissingReference, "bill item must reference a service or a medicine")
	}
	if input.Quantity <= 0 {
		return nil, newValidationError(ValidationNonPositiveQuantity, "quantity must be > 0")
	}

	item := BillItem{
		ID:          input.Id,
		BillId:      billId,
		ServiceId:   input.ServiceId,
		MedicineId:  input.MedicineId,
		Description: input.Description,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
	}

	if input.ServiceId > 0 {
		item.Kind = BillItemKindService
		service, err := utils.FetchSingleModel[Service](ctx, input.ServiceId)
		if err != nil {
			return nil, newValidationError(ValidationMissingReference, "service not found")
		}
		if item.UnitPrice.IsZero() {
			item.UnitPrice = service.DefaultPrice
		}
		if item.Description == "" {
			item.Description = service.Name
		}
	} else {
		item.Kind = BillItemKindPharmacy
		medicine, err := utils.FetchSingleModel[Medicine](ctx, input.MedicineId)
		if err != nil {
			return nil, newValidationError(ValidationMissingReference, "medicine not found")
		}
		if item.UnitPrice.IsZero() {
			item.UnitPrice = medicine.SellingPrice
		}
		if item.Description == "" {
			item.Description = medicine.Name
			if medicine.Strength != "" {
				item.Description = fmt.Sprintf("%s %s", medicine.Name, medicine.Strength)
			}
		}
	}

	item.TotalPrice = LineTotal(item.UnitPrice, item.Quantity)
	return &item, nil
}

// SaveBillItem persists the line and pushes (new - old) line total into the
// bill's running total. Runs inside the caller's transaction.
func SaveBillItem(tx *gorm.DB, ctx context.Context, item *BillItem) error {
	oldTotal := decimal.Zero
	if item.ID > 0 {
		var old BillItem
		if err := tx.First(&old, item.ID).Error; err != nil {
			tx.Rollback()
			return newConcurrentModification("bill item", item.ID, err)
		}
		oldTotal = old.TotalPrice
	}

	item.TotalPrice = LineTotal(item.UnitPrice, item.Quantity)

	if err := tx.WithContext(ctx).Save(item).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := ApplyBillTotalDelta(tx, item.BillId, item.TotalPrice.Sub(oldTotal)); err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

// RemoveBillItem deletes the line and pulls its total back out of the bill.
func RemoveBillItem(tx *gorm.DB, item *BillItem) error {
	if err := ApplyBillTotalDelta(tx, item.BillId, item.TotalPrice.Neg()); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&BillItem{}, item.ID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

func CreateBillItem(ctx context.Context, billId int, input *NewBillItem) (*BillItem, error) {
	if err := utils.ValidateResourceId[Bill](ctx, billId); err != nil {
		return nil, newValidationError(ValidationMissingReference, "bill not found")
	}

	input.Id = 0
	item, err := input.ToBillItem(ctx, billId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := SaveBillItem(tx, ctx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return item, nil
}

func UpdateBillItem(ctx context.Context, id int, input *NewBillItem) (*BillItem, error) {
	existing, err := utils.FetchSingleModel[BillItem](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("bill item", id, err)
	}

	input.Id = existing.ID
	item, err := input.ToBillItem(ctx, existing.BillId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := SaveBillItem(tx, ctx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return item, nil
}

func DeleteBillItem(ctx context.Context, id int) error {
	existing, err := utils.FetchSingleModel[BillItem](ctx, id)
	if err != nil {
		return newConcurrentModification("bill item", id, err)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := RemoveBillItem(tx, existing); err != nil {
		return err
	}
	return tx.Commit().Error
}
