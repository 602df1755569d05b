package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
)

type LeadSource string

const (
	LeadSourceWalkIn   LeadSource = "walk_in"
	LeadSourcePhone    LeadSource = "phone"
	LeadSourceWebsite  LeadSource = "website"
	LeadSourceReferral LeadSource = "referral"
	LeadSourceSocial   LeadSource = "social_media"
	LeadSourceCampaign LeadSource = "campaign"
	LeadSourceOther    LeadSource = "other"
)

type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusContacted  LeadStatus = "contacted"
	LeadStatusInterested LeadStatus = "interested"
	LeadStatusConverted  LeadStatus = "converted"
	LeadStatusLost       LeadStatus = "lost"
)

// Lead is a prospective patient. Once converted it stays linked to the
// patient it produced; converting again is a no-op returning the same
// patient.
type Lead struct {
	ID                 int        `gorm:"primary_key" json:"id"`
	Name               string     `gorm:"size:200;not null" json:"name"`
	PhoneNumber        string     `gorm:"size:17;not null" json:"phone_number"`
	Email              string     `gorm:"size:255" json:"email"`
	Age                int        `gorm:"default:0" json:"age"`
	City               string     `gorm:"size:100" json:"city"`
	Source             LeadSource `gorm:"type:enum('walk_in','phone','website','referral','social_media','campaign','other');default:other" json:"source"`
	Status             LeadStatus `gorm:"type:enum('new','contacted','interested','converted','lost');default:new" json:"status"`
	Notes              string     `gorm:"type:text" json:"notes"`
	ConvertedPatientId int        `gorm:"default:null" json:"converted_patient_id"`
	ConversionDate     *time.Time `gorm:"default:null" json:"conversion_date"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CreatedById        int        `gorm:"default:null" json:"created_by_id"`
}

type NewLead struct {
	Name        string     `json:"name" validate:"required"`
	PhoneNumber string     `json:"phone_number" validate:"required"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Age         int        `json:"age" validate:"gte=0"`
	City        string     `json:"city"`
	Source      LeadSource `json:"source"`
	Notes       string     `json:"notes"`
}

func (input *NewLead) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	return utils.ValidatePhoneNumber(input.PhoneNumber)
}

func CreateLead(ctx context.Context, input *NewLead) (*Lead, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	source := input.Source
	if source == "" {
		source = LeadSourceOther
	}

	lead := Lead{
		Name:        input.Name,
		PhoneNumber: input.PhoneNumber,
		Email:       input.Email,
		Age:         input.Age,
		City:        input.City,
		Source:      source,
		Status:      LeadStatusNew,
		Notes:       input.Notes,
		CreatedById: createdBy,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func UpdateLeadStatus(ctx context.Context, id int, status LeadStatus) (*Lead, error) {
	lead, err := utils.FetchSingleModel[Lead](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("lead", id, err)
	}
	if lead.Status == LeadStatusConverted {
		return nil, newValidationError(ValidationMismatchedKind, "converted leads are read-only")
	}
	if status == LeadStatusConverted {
		return nil, newValidationError(ValidationMismatchedKind, "use conversion to mark a lead converted")
	}

	lead.Status = status
	db := config.GetDB()
	if err := db.WithContext(ctx).Save(lead).Error; err != nil {
		return nil, err
	}
	return lead, nil
}

// dateOfBirthFromAge back-computes an approximate date of birth: same
// month and day as today, birth year = current year minus age.
func dateOfBirthFromAge(age int, now time.Time) time.Time {
	if age <= 0 {
		return now
	}
	return now.AddDate(-age, 0, 0)
}

// ConvertLead registers a patient from the lead's details and marks the
// lead converted, all in one transaction. Idempotent: a lead that is
// already converted returns its existing patient without side effects.
func ConvertLead(ctx context.Context, leadId int) (*Patient, error) {
	lead, err := utils.FetchSingleModel[Lead](ctx, leadId)
	if err != nil {
		return nil, newConcurrentModification("lead", leadId, err)
	}

	if lead.ConvertedPatientId > 0 {
		return GetPatient(ctx, lead.ConvertedPatientId)
	}

	registeredBy, _ := utils.GetUserIdFromContext(ctx)
	now := time.Now()

	patient := Patient{
		Name:           lead.Name,
		Age:            lead.Age,
		DateOfBirth:    dateOfBirthFromAge(lead.Age, now),
		PhoneNumber:    lead.PhoneNumber,
		Email:          lead.Email,
		City:           lead.City,
		ReferralSource: string(lead.Source),
		RegisteredById: registeredBy,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()

	year := now.Year()
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

	result := tx.Model(&Lead{}).
		Where("id = ? AND converted_patient_id IS NULL", lead.ID).
		Updates(map[string]interface{}{
			"status":               LeadStatusConverted,
			"converted_patient_id": patient.ID,
			"conversion_date":      now,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Another request converted the lead first; keep theirs.
		tx.Rollback()
		fresh, err := utils.FetchSingleModel[Lead](ctx, leadId)
		if err != nil {
			return nil, newConcurrentModification("lead", leadId, err)
		}
		return GetPatient(ctx, fresh.ConvertedPatientId)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &patient, nil
}
