package models

import (
	"context"
	"errors"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"gorm.io/gorm"
)

// PatientMedicalHistory is a one-per-patient intake sheet: condition flags
// (own and family) plus free-text details.
type PatientMedicalHistory struct {
	ID                      int       `gorm:"primary_key" json:"id"`
	PatientId               int       `gorm:"uniqueIndex;not null" json:"patient_id"`
	Hypertension            bool      `gorm:"default:false" json:"hypertension"`
	HypertensionFamily      bool      `gorm:"default:false" json:"hypertension_family"`
	Diabetes                bool      `gorm:"default:false" json:"diabetes"`
	DiabetesFamily          bool      `gorm:"default:false" json:"diabetes_family"`
	ThyroidDisorder         bool      `gorm:"default:false" json:"thyroid_disorder"`
	ThyroidDisorderFamily   bool      `gorm:"default:false" json:"thyroid_disorder_family"`
	AutoimmuneDisease       bool      `gorm:"default:false" json:"autoimmune_disease"`
	AutoimmuneDiseaseFamily bool      `gorm:"default:false" json:"autoimmune_disease_family"`
	Allergies               bool      `gorm:"default:false" json:"allergies"`
	AllergiesFamily         bool      `gorm:"default:false" json:"allergies_family"`
	AllergyDetails          string    `gorm:"type:text" json:"allergy_details"`
	CurrentMedications      string    `gorm:"type:text" json:"current_medications"`
	SurgicalHistory         string    `gorm:"type:text" json:"surgical_history"`
	OtherConditions         string    `gorm:"type:text" json:"other_conditions"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPatientMedicalHistory struct {
	Hypertension            bool   `json:"hypertension"`
	HypertensionFamily      bool   `json:"hypertension_family"`
	Diabetes                bool   `json:"diabetes"`
	DiabetesFamily          bool   `json:"diabetes_family"`
	ThyroidDisorder         bool   `json:"thyroid_disorder"`
	ThyroidDisorderFamily   bool   `json:"thyroid_disorder_family"`
	AutoimmuneDisease       bool   `json:"autoimmune_disease"`
	AutoimmuneDiseaseFamily bool   `json:"autoimmune_disease_family"`
	Allergies               bool   `json:"allergies"`
	AllergiesFamily         bool   `json:"allergies_family"`
	AllergyDetails          string `json:"allergy_details"`
	CurrentMedications      string `json:"current_medications"`
	SurgicalHistory         string `json:"surgical_history"`
	OtherConditions         string `json:"other_conditions"`
}

func (input *NewPatientMedicalHistory) apply(history *PatientMedicalHistory) {
	history.Hypertension = input.Hypertension
	history.HypertensionFamily = input.HypertensionFamily
	history.Diabetes = input.Diabetes
	history.DiabetesFamily = input.DiabetesFamily
	history.ThyroidDisorder = input.ThyroidDisorder
	history.ThyroidDisorderFamily = input.ThyroidDisorderFamily
	history.AutoimmuneDisease = input.AutoimmuneDisease
	history.AutoimmuneDiseaseFamily = input.AutoimmuneDiseaseFamily
	history.Allergies = input.Allergies
	history.AllergiesFamily = input.AllergiesFamily
	history.AllergyDetails = input.AllergyDetails
	history.CurrentMedications = input.CurrentMedications
	history.SurgicalHistory = input.SurgicalHistory
	history.OtherConditions = input.OtherConditions
}

// SavePatientMedicalHistory upserts the patient's single history sheet.
func SavePatientMedicalHistory(ctx context.Context, patientId int, input *NewPatientMedicalHistory) (*PatientMedicalHistory, error) {
	if err := utils.ValidateResourceId[Patient](ctx, patientId); err != nil {
		return nil, newValidationError(ValidationMissingReference, "patient not found")
	}

	db := config.GetDB()
	var history PatientMedicalHistory
	err := db.WithContext(ctx).Where("patient_id = ?", patientId).First(&history).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	history.PatientId = patientId
	input.apply(&history)

	if err := db.WithContext(ctx).Save(&history).Error; err != nil {
		return nil, err
	}
	return &history, nil
}

func GetPatientMedicalHistory(ctx context.Context, patientId int) (*PatientMedicalHistory, error) {
	db := config.GetDB()
	var history PatientMedicalHistory
	err := db.WithContext(ctx).Where("patient_id = ?", patientId).First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}
