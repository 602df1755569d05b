package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
)

// Regression: the consultation -> plan -> session -> follow-up chain persists
// with derived plan pricing, bounded session numbers and a one-per-patient
// history sheet.
func TestClinicalRecords_ConsultationToFollowUp(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		Name:        "Eshan Gupta",
		PhoneNumber: "+919812398123",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	history, err := models.SavePatientMedicalHistory(ctx, patient.ID, &models.NewPatientMedicalHistory{
		Diabetes:       true,
		AllergyDetails: "penicillin",
	})
	if err != nil {
		t.Fatalf("SavePatientMedicalHistory: %v", err)
	}
	// Saving again updates the single sheet instead of adding a second one.
	again, err := models.SavePatientMedicalHistory(ctx, patient.ID, &models.NewPatientMedicalHistory{
		Diabetes:        true,
		ThyroidDisorder: true,
		AllergyDetails:  "penicillin",
	})
	if err != nil {
		t.Fatalf("SavePatientMedicalHistory(update): %v", err)
	}
	if again.ID != history.ID {
		t.Fatalf("history sheet duplicated: ids %d and %d", history.ID, again.ID)
	}
	if !again.ThyroidDisorder {
		t.Fatalf("history update lost the thyroid flag")
	}

	consultation, err := models.CreateHairConsultation(ctx, &models.NewHairConsultation{
		PatientId:      patient.ID,
		HairLossOnset:  "gradual, 2 years",
		ScalpCondition: models.ScalpConditionOily,
		PullTest:       models.PullTestNegative,
	})
	if err != nil {
		t.Fatalf("CreateHairConsultation: %v", err)
	}

	prp, err := models.CreateService(ctx, &models.NewService{
		Name:         "PRP Therapy",
		DefaultPrice: decimal.NewFromInt(4500),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	plan, err := models.CreateTreatmentPlan(ctx, &models.NewTreatmentPlan{
		ConsultationId:   consultation.ID,
		PrimaryDiagnosis: "androgenetic alopecia, grade III",
		ProcedureId:      prp.ID,
		SessionFrequency: "every 4 weeks",
		TotalSessions:    6,
		ConsentObtained:  true,
		CostPerSession:   decimal.NewFromInt(4500),
	})
	if err != nil {
		t.Fatalf("CreateTreatmentPlan: %v", err)
	}
	mustDecimal(t, plan.TotalCost, 27000, "derived plan total")

	session, err := models.CreateTreatmentSession(ctx, plan.ID, &models.NewTreatmentSession{
		SessionNumber:      1,
		ProcedurePerformed: "PRP scalp injection",
		ClinicianInitials:  "RK",
	})
	if err != nil {
		t.Fatalf("CreateTreatmentSession: %v", err)
	}
	if session.SessionNumber != 1 {
		t.Fatalf("session number = %d; want 1", session.SessionNumber)
	}

	// Session numbers past the planned count are rejected outright.
	var ve *models.ValidationError
	_, err = models.CreateTreatmentSession(ctx, plan.ID, &models.NewTreatmentSession{
		SessionNumber:      7,
		ProcedurePerformed: "PRP scalp injection",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for session 7 of 6; got %v", err)
	}

	// Repeating a session number trips the unique (plan, number) index.
	if _, err := models.CreateTreatmentSession(ctx, plan.ID, &models.NewTreatmentSession{
		SessionNumber:      1,
		ProcedurePerformed: "PRP scalp injection",
	}); err == nil {
		t.Fatalf("expected duplicate session number to fail")
	}

	followUp, err := models.CreateFollowUp(ctx, &models.NewFollowUp{
		PatientId:                 patient.ID,
		TreatmentPlanId:           plan.ID,
		OverallResponsePercentage: 40,
		PatientSatisfaction:       8,
		FutureRecommendations:     "continue minoxidil, review in 3 months",
	})
	if err != nil {
		t.Fatalf("CreateFollowUp: %v", err)
	}
	if followUp.PatientId != patient.ID {
		t.Fatalf("follow-up patient = %d; want %d", followUp.PatientId, patient.ID)
	}

	followUps, err := models.ListFollowUpsByPatient(ctx, patient.ID)
	if err != nil {
		t.Fatalf("ListFollowUpsByPatient: %v", err)
	}
	if len(followUps) != 1 {
		t.Fatalf("expected 1 follow-up; got %d", len(followUps))
	}
}
