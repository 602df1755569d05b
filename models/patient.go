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

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOthers Gender = "others"
)

// Patient carries a persistent running balance:
// > 0 = due, < 0 = advance. The balance is only ever written through
// ApplyBalanceDelta; every other field is plain registry data.
type Patient struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	FileNumber            string          `gorm:"size:20;uniqueIndex;not null" json:"file_number"`
	Name                  string          `gorm:"size:200;not null" json:"name"`
	Age                   int             `gorm:"default:0" json:"age"`
	DateOfBirth           time.Time       `json:"date_of_birth"`
	Gender                Gender          `gorm:"type:enum('male','female','others');default:null" json:"gender"`
	PhoneNumber           string          `gorm:"size:17" json:"phone_number"`
	Email                 string          `gorm:"size:255" json:"email"`
	Address               string          `gorm:"type:text" json:"address"`
	City                  string          `gorm:"size:100" json:"city"`
	District              string          `gorm:"size:100" json:"district"`
	Pincode               string          `gorm:"size:10" json:"pincode"`
	Occupation            string          `gorm:"size:100" json:"occupation"`
	ReferredBy            string          `gorm:"size:200" json:"referred_by"`
	ReferralSource        string          `gorm:"size:200" json:"referral_source"`
	EmergencyContactName  string          `gorm:"size:200" json:"emergency_contact_name"`
	EmergencyContactPhone string          `gorm:"size:17" json:"emergency_contact_phone"`
	Balance               decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"balance"`
	RegisteredById        int             `gorm:"default:null" json:"registered_by_id"`
	IsActive              *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPatient struct {
	Name                  string    `json:"name" validate:"required"`
	Age                   int       `json:"age" validate:"gte=0"`
	DateOfBirth           time.Time `json:"date_of_birth"`
	Gender                Gender    `json:"gender"`
	PhoneNumber           string    `json:"phone_number" validate:"required"`
	Email                 string    `json:"email" validate:"omitempty,email"`
	Address               string    `json:"address"`
	City                  string    `json:"city"`
	District              string    `json:"district"`
	Pincode               string    `json:"pincode"`
	Occupation            string    `json:"occupation"`
	ReferredBy            string    `json:"referred_by"`
	ReferralSource        string    `json:"referral_source"`
	EmergencyContactName  string    `json:"emergency_contact_name"`
	EmergencyContactPhone string    `json:"emergency_contact_phone"`
}

// FormatFileNumber renders the yearly patient file number, e.g. DLP202600001.
func FormatFileNumber(year int, seq int64) string {
	return fmt.Sprintf("DLP%d%05d", year, seq)
}

func (input *NewPatient) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidatePhoneNumber(input.PhoneNumber); err != nil {
		return err
	}
	return utils.ValidatePhoneNumber(input.EmergencyContactPhone)
}

func CreatePatient(ctx context.Context, input *NewPatient) (*Patient, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	registeredBy, _ := utils.GetUserIdFromContext(ctx)

	patient := Patient{
		Name:                  input.Name,
		Age:                   input.Age,
		DateOfBirth:           input.DateOfBirth,
		Gender:                input.Gender,
		PhoneNumber:           input.PhoneNumber,
		Email:                 input.Email,
		Address:               input.Address,
		City:                  input.City,
		District:              input.District,
		Pincode:               input.Pincode,
		Occupation:            input.Occupation,
		ReferredBy:            input.ReferredBy,
		ReferralSource:        input.ReferralSource,
		EmergencyContactName:  input.EmergencyContactName,
		EmergencyContactPhone: input.EmergencyContactPhone,
		Balance:               decimal.Zero,
		RegisteredById:        registeredBy,
		IsActive:              utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()

	year := time.Now().Year()
	seqNo, err := utils.NextYearlySequence[Patient](ctx, "created_at", year)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	patient.FileNumber = FormatFileNumber(year, seqNo)

	if err := tx.WithContext(ctx).Create(&patient).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &patient, nil
}

func UpdatePatient(ctx context.Context, id int, input *NewPatient) (*Patient, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	patient, err := utils.FetchSingleModel[Patient](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("patient", id, err)
	}

	patient.Name = input.Name
	patient.Age = input.Age
	patient.DateOfBirth = input.DateOfBirth
	patient.Gender = input.Gender
	patient.PhoneNumber = input.PhoneNumber
	patient.Email = input.Email
	patient.Address = input.Address
	patient.City = input.City
	patient.District = input.District
	patient.Pincode = input.Pincode
	patient.Occupation = input.Occupation
	patient.ReferredBy = input.ReferredBy
	patient.ReferralSource = input.ReferralSource
	patient.EmergencyContactName = input.EmergencyContactName
	patient.EmergencyContactPhone = input.EmergencyContactPhone

	// Registry edits must not write the running balance: the in-memory value
	// can be stale against concurrent ApplyBalanceDelta posts.
	db := config.GetDB()
	if err := db.WithContext(ctx).Omit("balance").Save(patient).Error; err != nil {
		return nil, err
	}
	return patient, nil
}

func GetPatient(ctx context.Context, id int) (*Patient, error) {
	patient, err := utils.FetchSingleModel[Patient](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("patient", id, err)
	}
	return patient, nil
}

// ApplyBalanceDelta posts a signed amount onto the patient's running
// balance as a single atomic UPDATE, so concurrent deltas from different
// requests compose without locking the row.
func ApplyBalanceDelta(tx *gorm.DB, patientId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	result := tx.Exec("UPDATE patients SET balance = balance + ? WHERE id = ?", delta, patientId)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return newConcurrentModification("patient", patientId, gorm.ErrRecordNotFound)
	}
	return nil
}
