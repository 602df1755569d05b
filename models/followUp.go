package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
)

// FollowUp records a post-treatment review: response and satisfaction scores
// plus the doctor's recommendations. Optionally tied to a treatment plan.
type FollowUp struct {
	ID                        int        `gorm:"primary_key" json:"id"`
	PatientId                 int        `gorm:"index;not null" json:"patient_id"`
	TreatmentPlanId           int        `gorm:"default:null" json:"treatment_plan_id"`
	FollowupDate              time.Time  `gorm:"not null" json:"followup_date"`
	OverallResponsePercentage int        `gorm:"not null" json:"overall_response_percentage"`
	PatientSatisfaction       int        `gorm:"not null" json:"patient_satisfaction"`
	FutureRecommendations     string     `gorm:"type:text;not null" json:"future_recommendations"`
	MaintenancePlan           string     `gorm:"type:text" json:"maintenance_plan"`
	DoctorRemarks             string     `gorm:"type:text" json:"doctor_remarks"`
	NextFollowupDate          *time.Time `gorm:"default:null" json:"next_followup_date"`
	CreatedById               int        `gorm:"default:null" json:"created_by_id"`
	CreatedAt                 time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewFollowUp struct {
	PatientId                 int        `json:"patient_id" validate:"required"`
	TreatmentPlanId           int        `json:"treatment_plan_id"`
	FollowupDate              time.Time  `json:"followup_date"`
	OverallResponsePercentage int        `json:"overall_response_percentage" validate:"gte=0,lte=100"`
	PatientSatisfaction       int        `json:"patient_satisfaction" validate:"gte=0,lte=10"`
	FutureRecommendations     string     `json:"future_recommendations" validate:"required"`
	MaintenancePlan           string     `json:"maintenance_plan"`
	DoctorRemarks             string     `json:"doctor_remarks"`
	NextFollowupDate          *time.Time `json:"next_followup_date"`
}

func (input *NewFollowUp) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
		return newValidationError(ValidationMissingReference, "patient not found")
	}
	if input.TreatmentPlanId != 0 {
		if err := utils.ValidateResourceId[TreatmentPlan](ctx, input.TreatmentPlanId); err != nil {
			return newValidationError(ValidationMissingReference, "treatment plan not found")
		}
	}
	return nil
}

func CreateFollowUp(ctx context.Context, input *NewFollowUp) (*FollowUp, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	followupDate := input.FollowupDate
	if followupDate.IsZero() {
		followupDate = time.Now()
	}

	followUp := FollowUp{
		PatientId:                 input.PatientId,
		TreatmentPlanId:           input.TreatmentPlanId,
		FollowupDate:              followupDate,
		OverallResponsePercentage: input.OverallResponsePercentage,
		PatientSatisfaction:       input.PatientSatisfaction,
		FutureRecommendations:     input.FutureRecommendations,
		MaintenancePlan:           input.MaintenancePlan,
		DoctorRemarks:             input.DoctorRemarks,
		NextFollowupDate:          input.NextFollowupDate,
		CreatedById:               createdBy,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&followUp).Error; err != nil {
		return nil, err
	}
	return &followUp, nil
}

// ListFollowUpsByPatient returns a patient's follow-ups, newest first.
func ListFollowUpsByPatient(ctx context.Context, patientId int) ([]*FollowUp, error) {
	db := config.GetDB()
	var followUps []*FollowUp
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientId).
		Order("followup_date DESC").
		Find(&followUps).Error
	if err != nil {
		return nil, err
	}
	return followUps, nil
}
