package models

import (
	"context"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
)

type ScalpCondition string

const (
	ScalpConditionNormal       ScalpCondition = "normal"
	ScalpConditionOily         ScalpCondition = "oily"
	ScalpConditionDry          ScalpCondition = "dry"
	ScalpConditionDandruff     ScalpCondition = "dandruff"
	ScalpConditionInflammation ScalpCondition = "inflammation"
)

type PullTestResult string

const (
	PullTestPositive PullTestResult = "positive"
	PullTestNegative PullTestResult = "negative"
)

// HairConsultation records one examination visit: the chief complaint as the
// patient tells it and the findings as the doctor sees them.
type HairConsultation struct {
	ID                   int            `gorm:"primary_key" json:"id"`
	PatientId            int            `gorm:"index;not null" json:"patient_id"`
	Patient              *Patient       `json:"patient,omitempty"`
	DoctorId             int            `gorm:"default:null" json:"doctor_id"`
	ConsultationDate     time.Time      `gorm:"autoCreateTime" json:"consultation_date"`
	HairLossOnset        string         `gorm:"size:200" json:"hair_loss_onset"`
	HairLossDuration     string         `gorm:"size:100" json:"hair_loss_duration"`
	AffectedArea         string         `gorm:"type:text" json:"affected_area"`
	AssociatedSymptoms   string         `gorm:"type:text" json:"associated_symptoms"`
	PreviousTreatments   string         `gorm:"type:text" json:"previous_treatments"`
	ScalpCondition       ScalpCondition `gorm:"type:enum('normal','oily','dry','dandruff','inflammation');default:null" json:"scalp_condition"`
	HairDensity          string         `gorm:"size:100" json:"hair_density"`
	MiniaturizationGrade string         `gorm:"size:100" json:"miniaturization_grade"`
	PullTest             PullTestResult `gorm:"type:enum('positive','negative');default:null" json:"pull_test"`
	DermoscopyFindings   string         `gorm:"type:text" json:"dermoscopy_findings"`
	ExaminationRemarks   string         `gorm:"type:text" json:"examination_remarks"`
}

type NewHairConsultation struct {
	PatientId            int            `json:"patient_id" validate:"required"`
	HairLossOnset        string         `json:"hair_loss_onset"`
	HairLossDuration     string         `json:"hair_loss_duration"`
	AffectedArea         string         `json:"affected_area"`
	AssociatedSymptoms   string         `json:"associated_symptoms"`
	PreviousTreatments   string         `json:"previous_treatments"`
	ScalpCondition       ScalpCondition `json:"scalp_condition" validate:"omitempty,oneof=normal oily dry dandruff inflammation"`
	HairDensity          string         `json:"hair_density"`
	MiniaturizationGrade string         `json:"miniaturization_grade"`
	PullTest             PullTestResult `json:"pull_test" validate:"omitempty,oneof=positive negative"`
	DermoscopyFindings   string         `json:"dermoscopy_findings"`
	ExaminationRemarks   string         `json:"examination_remarks"`
}

func (input *NewHairConsultation) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
		return newValidationError(ValidationMissingReference, "patient not found")
	}
	return nil
}

func CreateHairConsultation(ctx context.Context, input *NewHairConsultation) (*HairConsultation, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	doctorId, _ := utils.GetUserIdFromContext(ctx)

	consultation := HairConsultation{
		PatientId:            input.PatientId,
		DoctorId:             doctorId,
		HairLossOnset:        input.HairLossOnset,
		HairLossDuration:     input.HairLossDuration,
		AffectedArea:         input.AffectedArea,
		AssociatedSymptoms:   input.AssociatedSymptoms,
		PreviousTreatments:   input.PreviousTreatments,
		ScalpCondition:       input.ScalpCondition,
		HairDensity:          input.HairDensity,
		MiniaturizationGrade: input.MiniaturizationGrade,
		PullTest:             input.PullTest,
		DermoscopyFindings:   input.DermoscopyFindings,
		ExaminationRemarks:   input.ExaminationRemarks,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&consultation).Error; err != nil {
		return nil, err
	}
	return &consultation, nil
}

func GetHairConsultation(ctx context.Context, id int) (*HairConsultation, error) {
	consultation, err := utils.FetchSingleModel[HairConsultation](ctx, id, "Patient")
	if err != nil {
		return nil, newConcurrentModification("consultation", id, err)
	}
	return consultation, nil
}

// ListConsultationsByPatient returns a patient's consultations, newest first.
func ListConsultationsByPatient(ctx context.Context, patientId int) ([]*HairConsultation, error) {
	db := config.GetDB()
	var consultations []*HairConsultation
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientId).
		Order("consultation_date DESC").
		Find(&consultations).Error
	if err != nil {
		return nil, err
	}
	return consultations, nil
}
