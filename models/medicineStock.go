package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MedicineStock is the running-quantity row for one medicine. It is only
// ever written through ApplyStockDelta, which holds an exclusive row lock
// for the duration of the enclosing transaction.
type MedicineStock struct {
	ID               int       `gorm:"primary_key" json:"id"`
	MedicineId       int       `gorm:"uniqueIndex;not null" json:"medicine_id"`
	CurrentQuantity  int       `gorm:"default:0" json:"current_quantity"`
	ReservedQuantity int       `gorm:"default:0" json:"reserved_quantity"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	UpdatedById      int       `gorm:"default:null" json:"updated_by_id"`
}

func (s *MedicineStock) AvailableQuantity() int {
	return s.CurrentQuantity - s.ReservedQuantity
}

func (s *MedicineStock) IsLowStock(minimumLevel int) bool {
	return s.CurrentQuantity <= minimumLevel
}

// LockMedicineStock takes SELECT ... FOR UPDATE on the medicine's stock row,
// creating it at zero if missing. The lock is held until the enclosing
// transaction commits or rolls back.
func LockMedicineStock(tx *gorm.DB, medicineId int) (*MedicineStock, error) {
	stock := MedicineStock{
		MedicineId: medicineId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("medicine_id = ?", medicineId).
		FirstOrCreate(&stock)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	return &stock, nil
}

// ApplyStockDelta posts a signed quantity onto the medicine's running stock.
// The sign must already be normalized (see NormalizeQuantity). A delta that
// would drive the quantity negative fails hard; the caller's transaction
// must roll back so no partial movement survives.
func ApplyStockDelta(tx *gorm.DB, medicineId int, delta int) (int, error) {
	stock, err := LockMedicineStock(tx, medicineId)
	if err != nil {
		return 0, err
	}

	newQty := stock.CurrentQuantity + delta
	if newQty < 0 {
		tx.Rollback()
		return 0, &InsufficientStockError{
			MedicineId: medicineId,
			Available:  stock.CurrentQuantity,
			Requested:  -delta,
		}
	}

	if err := tx.Exec("UPDATE medicine_stocks SET current_quantity = ? WHERE id = ?", newQty, stock.ID).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	return newQty, nil
}

func GetMedicineStock(ctx context.Context, medicineId int) (*MedicineStock, error) {
	db := config.GetDB()
	var stock MedicineStock
	if err := db.WithContext(ctx).Where("medicine_id = ?", medicineId).First(&stock).Error; err != nil {
		return nil, newConcurrentModification("medicine stock", medicineId, err)
	}
	return &stock, nil
}

// ListLowStock returns stock rows at or below their medicine's minimum level.
func ListLowStock(ctx context.Context) ([]*MedicineStock, error) {
	db := config.GetDB()
	var stocks []*MedicineStock
	err := db.WithContext(ctx).
		Joins("JOIN medicines ON medicines.id = medicine_stocks.medicine_id").
		Where("medicine_stocks.current_quantity <= medicines.minimum_stock_level").
		Order("medicine_stocks.current_quantity").
		Find(&stocks).Error
	if err != nil {
		return nil, err
	}
	return stocks, nil
}
