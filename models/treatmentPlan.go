package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
)

// TreatmentPlan is the one plan a consultation produces: diagnosis, the
// catalog procedure, session count and pricing. TotalCost is derived from
// cost-per-session and session count on every save, never taken from input.
type TreatmentPlan struct {
	ID                        int                `gorm:"primary_key" json:"id"`
	ConsultationId            int                `gorm:"uniqueIndex;not null" json:"consultation_id"`
	Consultation              *HairConsultation  `json:"consultation,omitempty"`
	PrimaryDiagnosis          string             `gorm:"type:text;not null" json:"primary_diagnosis"`
	DifferentialFactors       string             `gorm:"type:text" json:"differential_factors"`
	ProcedureId               int                `gorm:"index;not null" json:"procedure_id"`
	Procedure                 *Service           `gorm:"foreignKey:ProcedureId" json:"procedure,omitempty"`
	SessionFrequency          string             `gorm:"size:100" json:"session_frequency"`
	TotalSessions             int                `gorm:"not null" json:"total_sessions"`
	AdjunctiveTreatments      string             `gorm:"type:text" json:"adjunctive_treatments"`
	ExpectedOutcomesExplained bool               `gorm:"default:false" json:"expected_outcomes_explained"`
	ConsentObtained           bool               `gorm:"default:false" json:"consent_obtained"`
	CostPerSession            decimal.Decimal    `gorm:"type:decimal(12,2);default:0" json:"cost_per_session"`
	TotalCost                 decimal.Decimal    `gorm:"type:decimal(12,2);default:0" json:"total_cost"`
	CreatedAt                 time.Time          `gorm:"autoCreateTime" json:"created_at"`
	CreatedById               int                `gorm:"default:null" json:"created_by_id"`
	Sessions                  []TreatmentSession `gorm:"foreignKey:TreatmentPlanId" json:"sessions,omitempty"`
}

type NewTreatmentPlan struct {
	ConsultationId            int             `json:"consultation_id" validate:"required"`
	PrimaryDiagnosis          string          `json:"primary_diagnosis" validate:"required"`
	DifferentialFactors       string          `json:"differential_factors"`
	ProcedureId               int             `json:"procedure_id" validate:"required"`
	SessionFrequency          string          `json:"session_frequency"`
	TotalSessions             int             `json:"total_sessions"`
	AdjunctiveTreatments      string          `json:"adjunctive_treatments"`
	ExpectedOutcomesExplained bool            `json:"expected_outcomes_explained"`
	ConsentObtained           bool            `json:"consent_obtained"`
	CostPerSession            decimal.Decimal `json:"cost_per_session"`
}

// PlanTotalCost derives the plan price: cost per session times session count.
func PlanTotalCost(costPerSession decimal.Decimal, totalSessions int) decimal.Decimal {
	return costPerSession.Mul(decimal.NewFromInt(int64(totalSessions)))
}

func (input *NewTreatmentPlan) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.TotalSessions <= 0 {
		return newValidationError(ValidationNonPositiveQuantity, "total sessions must be > 0")
	}
	if input.CostPerSession.IsNegative() {
		return newValidationError(ValidationNonPositiveQuantity, "cost per session must be >= 0")
	}
	if err := utils.ValidateResourceId[HairConsultation](ctx, input.ConsultationId); err != nil {
		return newValidationError(ValidationMissingReference, "consultation not found")
	}
	if err := utils.ValidateResourceId[Service](ctx, input.ProcedureId); err != nil {
		return newValidationError(ValidationMissingReference, "procedure not found")
	}
	return nil
}

func CreateTreatmentPlan(ctx context.Context, input *NewTreatmentPlan) (*TreatmentPlan, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	plan := TreatmentPlan{
		ConsultationId:            input.ConsultationId,
		PrimaryDiagnosis:          input.PrimaryDiagnosis,
		DifferentialFactors:       input.DifferentialFactors,
		ProcedureId:               input.ProcedureId,
		SessionFrequency:          input.SessionFrequency,
		TotalSessions:             input.TotalSessions,
		AdjunctiveTreatments:      input.AdjunctiveTreatments,
		ExpectedOutcomesExplained: input.ExpectedOutcomesExplained,
		ConsentObtained:           input.ConsentObtained,
		CostPerSession:            input.CostPerSession,
		TotalCost:                 PlanTotalCost(input.CostPerSession, input.TotalSessions),
		CreatedById:               createdBy,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func GetTreatmentPlan(ctx context.Context, id int) (*TreatmentPlan, error) {
	plan, err := utils.FetchSingleModel[TreatmentPlan](ctx, id, "Procedure", "Sessions")
	if err != nil {
		return nil, newConcurrentModification("treatment plan", id, err)
	}
	return plan, nil
}

// TreatmentSession is one performed sitting under a plan. Session numbers are
// unique per plan and bounded by the plan's session count.
type TreatmentSession struct {
	ID                          int        `gorm:"primary_key" json:"id"`
	TreatmentPlanId             int        `gorm:"not null;uniqueIndex:idx_plan_session_no" json:"treatment_plan_id"`
	SessionNumber               int        `gorm:"not null;uniqueIndex:idx_plan_session_no" json:"session_number"`
	AppointmentId               int        `gorm:"default:null" json:"appointment_id"`
	ProcedurePerformed          string     `gorm:"size:200;not null" json:"procedure_performed"`
	ParametersDosage            string     `gorm:"type:text" json:"parameters_dosage"`
	ScalpPrepAnesthesia         string     `gorm:"type:text" json:"scalp_prep_anesthesia"`
	ObservationsDuringProcedure string     `gorm:"type:text" json:"observations_during_procedure"`
	ImmediatePostCare           string     `gorm:"type:text" json:"immediate_post_care"`
	AdverseEvents               bool       `gorm:"default:false" json:"adverse_events"`
	AdverseEventDetails         string     `gorm:"type:text" json:"adverse_event_details"`
	MedicationsPrescribed       string     `gorm:"type:text" json:"medications_prescribed"`
	NextAppointmentDate         *time.Time `gorm:"default:null" json:"next_appointment_date"`
	PerformedById               int        `gorm:"default:null" json:"performed_by_id"`
	ClinicianInitials           string     `gorm:"size:10" json:"clinician_initials"`
	SessionRemarks              string     `gorm:"type:text" json:"session_remarks"`
	CreatedAt                   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewTreatmentSession struct {
	SessionNumber               int        `json:"session_number"`
	AppointmentId               int        `json:"appointment_id"`
	ProcedurePerformed          string     `json:"procedure_performed" validate:"required"`
	ParametersDosage            string     `json:"parameters_dosage"`
	ScalpPrepAnesthesia         string     `json:"scalp_prep_anesthesia"`
	ObservationsDuringProcedure string     `json:"observations_during_procedure"`
	ImmediatePostCare           string     `json:"immediate_post_care"`
	AdverseEvents               bool       `json:"adverse_events"`
	AdverseEventDetails         string     `json:"adverse_event_details"`
	MedicationsPrescribed       string     `json:"medications_prescribed"`
	NextAppointmentDate         *time.Time `json:"next_appointment_date"`
	ClinicianInitials           string     `json:"clinician_initials"`
	SessionRemarks              string     `json:"session_remarks"`
}

func validateSessionNumber(sessionNumber, totalSessions int) error {
	if sessionNumber <= 0 {
		return newValidationError(ValidationNonPositiveQuantity, "session number must be > 0")
	}
	if sessionNumber > totalSessions {
		return newValidationError(ValidationMismatchedKind,
			fmt.Sprintf("session %d exceeds the plan's %d sessions", sessionNumber, totalSessions))
	}
	return nil
}

func CreateTreatmentSession(ctx context.Context, planId int, input *NewTreatmentSession) (*TreatmentSession, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	plan, err := utils.FetchSingleModel[TreatmentPlan](ctx, planId)
	if err != nil {
		return nil, newConcurrentModification("treatment plan", planId, err)
	}
	if err := validateSessionNumber(input.SessionNumber, plan.TotalSessions); err != nil {
		return nil, err
	}
	if input.AppointmentId != 0 {
		if err := utils.ValidateResourceId[Appointment](ctx, input.AppointmentId); err != nil {
			return nil, newValidationError(ValidationMissingReference, "appointment not found")
		}
	}

	performedBy, _ := utils.GetUserIdFromContext(ctx)

	session := TreatmentSession{
		TreatmentPlanId:             planId,
		SessionNumber:               input.SessionNumber,
		AppointmentId:               input.AppointmentId,
		ProcedurePerformed:          input.ProcedurePerformed,
		ParametersDosage:            input.ParametersDosage,
		ScalpPrepAnesthesia:         input.ScalpPrepAnesthesia,
		ObservationsDuringProcedure: input.ObservationsDuringProcedure,
		ImmediatePostCare:           input.ImmediatePostCare,
		AdverseEvents:               input.AdverseEvents,
		AdverseEventDetails:         input.AdverseEventDetails,
		MedicationsPrescribed:       input.MedicationsPrescribed,
		NextAppointmentDate:         input.NextAppointmentDate,
		PerformedById:               performedBy,
		ClinicianInitials:           input.ClinicianInitials,
		SessionRemarks:              input.SessionRemarks,
	}

	// The unique (plan, session number) index makes a rerun of the same
	// sitting a hard error instead of a silent duplicate.
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessionsByPlan returns a plan's sittings in session order.
func ListSessionsByPlan(ctx context.Context, planId int) ([]*TreatmentSession, error) {
	db := config.GetDB()
	var sessions []*TreatmentSession
	err := db.WithContext(ctx).
		Where("treatment_plan_id = ?", planId).
		Order("session_number ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
