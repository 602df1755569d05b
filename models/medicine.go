package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
)

type MedicineType string

const (
	MedicineTypeTablet    MedicineType = "tablet"
	MedicineTypeCapsule   MedicineType = "capsule"
	MedicineTypeSyrup     MedicineType = "syrup"
	MedicineTypeInjection MedicineType = "injection"
	MedicineTypeTopical   MedicineType = "topical"
	MedicineTypeSolution  MedicineType = "solution"
	MedicineTypeOther     MedicineType = "other"
)

type MedicineCategory struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Medicine struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	Name                string          `gorm:"size:200;not null" json:"name"`
	GenericName         string          `gorm:"size:200" json:"generic_name"`
	CategoryId          int             `gorm:"index;default:null" json:"category_id"`
	MedicineType        MedicineType    `gorm:"type:enum('tablet','capsule','syrup','injection','topical','solution','other');not null" json:"medicine_type"`
	Strength            string          `gorm:"size:50" json:"strength"`
	Manufacturer        string          `gorm:"size:200" json:"manufacturer"`
	PurchasePrice       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"purchase_price"`
	SellingPrice        decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"selling_price"`
	MinimumStockLevel   int             `gorm:"default:10" json:"minimum_stock_level"`
	UnitOfMeasurement   string          `gorm:"size:20;default:pieces" json:"unit_of_measurement"`
	Description         string          `gorm:"type:text" json:"description"`
	SideEffects         string          `gorm:"type:text" json:"side_effects"`
	Contraindications   string          `gorm:"type:text" json:"contraindications"`
	StorageInstructions string          `gorm:"type:text" json:"storage_instructions"`
	IsActive            *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById         int             `gorm:"default:null" json:"created_by_id"`
}

type NewMedicine struct {
	Name                string          `json:"name" validate:"required"`
	GenericName         string          `json:"generic_name"`
	CategoryId          int             `json:"category_id"`
	MedicineType        MedicineType    `json:"medicine_type" validate:"required"`
	Strength            string          `json:"strength"`
	Manufacturer        string          `json:"manufacturer"`
	PurchasePrice       decimal.Decimal `json:"purchase_price"`
	SellingPrice        decimal.Decimal `json:"selling_price"`
	MinimumStockLevel   int             `json:"minimum_stock_level"`
	UnitOfMeasurement   string          `json:"unit_of_measurement"`
	Description         string          `json:"description"`
	SideEffects         string          `json:"side_effects"`
	Contraindications   string          `json:"contraindications"`
	StorageInstructions string          `json:"storage_instructions"`
}

func (input *NewMedicine) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[MedicineCategory](ctx, input.CategoryId); err != nil {
			return err
		}
	}
	return nil
}

// CreateMedicine also provisions the zero-quantity stock row; a medicine
// cannot exist without its ledger counterpart.
func CreateMedicine(ctx context.Context, input *NewMedicine) (*Medicine, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	minLevel := input.MinimumStockLevel
	if minLevel == 0 {
		minLevel = 10
	}
	unit := input.UnitOfMeasurement
	if unit == "" {
		unit = "pieces"
	}

	medicine := Medicine{
		Name:                input.Name,
		GenericName:         input.GenericName,
		CategoryId:          input.CategoryId,
		MedicineType:        input.MedicineType,
		Strength:            input.Strength,
		Manufacturer:        input.Manufacturer,
		PurchasePrice:       input.PurchasePrice,
		SellingPrice:        input.SellingPrice,
		MinimumStockLevel:   minLevel,
		UnitOfMeasurement:   unit,
		Description:         input.Description,
		SideEffects:         input.SideEffects,
		Contraindications:   input.Contraindications,
		StorageInstructions: input.StorageInstructions,
		IsActive:            utils.NewTrue(),
		CreatedById:         createdBy,
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Create(&medicine).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	stock := MedicineStock{
		MedicineId:      medicine.ID,
		CurrentQuantity: 0,
	}
	if err := tx.WithContext(ctx).Create(&stock).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &medicine, nil
}

func UpdateMedicine(ctx context.Context, id int, input *NewMedicine) (*Medicine, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	medicine, err := utils.FetchSingleModel[Medicine](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("medicine", id, err)
	}

	medicine.Name = input.Name
	medicine.GenericName = input.GenericName
	medicine.CategoryId = input.CategoryId
	medicine.MedicineType = input.MedicineType
	medicine.Strength = input.Strength
	medicine.Manufacturer = input.Manufacturer
	medicine.PurchasePrice = input.PurchasePrice
	medicine.SellingPrice = input.SellingPrice
	if input.MinimumStockLevel > 0 {
		medicine.MinimumStockLevel = input.MinimumStockLevel
	}
	if input.UnitOfMeasurement != "" {
		medicine.UnitOfMeasurement = input.UnitOfMeasurement
	}
	medicine.Description = input.Description
	medicine.SideEffects = input.SideEffects
	medicine.Contraindications = input.Contraindications
	medicine.StorageInstructions = input.StorageInstructions

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(medicine).Error; err != nil {
		return nil, err
	}
	return medicine, nil
}

func GetMedicine(ctx context.Context, id int) (*Medicine, error) {
	medicine, err := utils.FetchSingleModel[Medicine](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("medicine", id, err)
	}
	return medicine, nil
}

func CreateMedicineCategory(ctx context.Context, name string, description string) (*MedicineCategory, error) {
	if err := utils.ValidateUnique[MedicineCategory](ctx, "name", name, 0); err != nil {
		return nil, err
	}
	category := MedicineCategory{Name: name, Description: description}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
