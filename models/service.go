package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
)

// Service is a catalog entry for billable procedures. DefaultPrice is the
// snapshot source for bill items that come in without a price.
type Service struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Code         string          `gorm:"size:30;uniqueIndex;not null" json:"code"`
	Name         string          `gorm:"size:200;uniqueIndex;not null" json:"name"`
	DefaultPrice decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"default_price"`
	Description  string          `gorm:"type:text" json:"description"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewService struct {
	Name         string          `json:"name" validate:"required"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	Description  string          `json:"description"`
}

// FormatServiceCode renders catalog codes, e.g. SRV0001.
func FormatServiceCode(seq int64) string {
	return fmt.Sprintf("SRV%04d", seq)
}

func CreateService(ctx context.Context, input *NewService) (*Service, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Service](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	service := Service{
		Name:         input.Name,
		DefaultPrice: input.DefaultPrice,
		Description:  input.Description,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()

	seqNo, err := utils.NextSequence[Service](ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	service.Code = FormatServiceCode(seqNo)

	if err := tx.WithContext(ctx).Create(&service).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &service, nil
}

func UpdateService(ctx context.Context, id int, input *NewService) (*Service, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	service, err := utils.FetchSingleModel[Service](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("service", id, err)
	}
	if err := utils.ValidateUnique[Service](ctx, "name", input.Name, id); err != nil {
		return nil, err
	}

	service.Name = input.Name
	service.DefaultPrice = input.DefaultPrice
	service.Description = input.Description

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(service).Error; err != nil {
		return nil, err
	}
	return service, nil
}

func GetService(ctx context.Context, id int) (*Service, error) {
	service, err := utils.FetchSingleModel[Service](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("service", id, err)
	}
	return service, nil
}
