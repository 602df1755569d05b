package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

// appointmentTransitions lists the legal status moves. Rescheduled feeds
// back into scheduled when the new slot is booked.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled:   {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRescheduled},
	AppointmentStatusRescheduled: {AppointmentStatusScheduled, AppointmentStatusCancelled},
}

// CanTransitionAppointment reports whether an appointment may move from
// one status to another.
func CanTransitionAppointment(from, to AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID           int               `gorm:"primary_key" json:"id"`
	PatientId    int               `gorm:"index;not null" json:"patient_id"`
	ServiceId    int               `gorm:"index;default:null" json:"service_id"`
	ScheduledAt  time.Time         `gorm:"not null" json:"scheduled_at"`
	DurationMins int               `gorm:"default:30" json:"duration_mins"`
	Status       AppointmentStatus `gorm:"type:enum('scheduled','completed','cancelled','rescheduled');default:scheduled" json:"status"`
	Notes        string            `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	CreatedById  int               `gorm:"default:null" json:"created_by_id"`
}

// AppointmentLog records every status move for the audit trail.
type AppointmentLog struct {
	ID            int               `gorm:"primary_key" json:"id"`
	AppointmentId int               `gorm:"index;not null" json:"appointment_id"`
	FromStatus    AppointmentStatus `gorm:"size:20;not null" json:"from_status"`
	ToStatus      AppointmentStatus `gorm:"size:20;not null" json:"to_status"`
	Remark        string            `gorm:"size:255" json:"remark"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	ChangedById   int               `gorm:"default:null" json:"changed_by_id"`
}

type NewAppointment struct {
	PatientId    int       `json:"patient_id" validate:"required"`
	ServiceId    int       `json:"service_id"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	DurationMins int       `json:"duration_mins"`
	Notes        string    `json:"notes"`
}

func (input *NewAppointment) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Patient](ctx, input.PatientId); err != nil {
		return newValidationError(ValidationMissingReference, "patient not found")
	}
	if input.ServiceId > 0 {
		if err := utils.ValidateResourceId[Service](ctx, input.ServiceId); err != nil {
			return newValidationError(ValidationMissingReference, "service not found")
		}
	}
	return nil
}

func CreateAppointment(ctx context.Context, input *NewAppointment) (*Appointment, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	duration := input.DurationMins
	if duration == 0 {
		duration = 30
	}

	appointment := Appointment{
		PatientId:    input.PatientId,
		ServiceId:    input.ServiceId,
		ScheduledAt:  input.ScheduledAt,
		DurationMins: duration,
		Status:       AppointmentStatusScheduled,
		Notes:        input.Notes,
		CreatedById:  createdBy,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&appointment).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// TransitionAppointment moves the appointment through its state machine
// and appends an audit log entry in the same transaction.
func TransitionAppointment(ctx context.Context, id int, to AppointmentStatus, remark string) (*Appointment, error) {
	appointment, err := utils.FetchSingleModel[Appointment](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("appointment", id, err)
	}
	if !CanTransitionAppointment(appointment.Status, to) {
		return nil, newValidationError(ValidationMismatchedKind,
			fmt.Sprintf("cannot move appointment from %s to %s", appointment.Status, to))
	}

	changedBy, _ := utils.GetUserIdFromContext(ctx)
	from := appointment.Status
	appointment.Status = to

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Save(appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	log := AppointmentLog{
		AppointmentId: appointment.ID,
		FromStatus:    from,
		ToStatus:      to,
		Remark:        remark,
		ChangedById:   changedBy,
	}
	if err := tx.WithContext(ctx).Create(&log).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

// RescheduleAppointment moves a scheduled appointment to a new slot: the
// status cycles through rescheduled back to scheduled, with both moves
// logged.
func RescheduleAppointment(ctx context.Context, id int, newTime time.Time, remark string) (*Appointment, error) {
	appointment, err := utils.FetchSingleModel[Appointment](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("appointment", id, err)
	}
	if !CanTransitionAppointment(appointment.Status, AppointmentStatusRescheduled) {
		return nil, newValidationError(ValidationMismatchedKind,
			fmt.Sprintf("cannot reschedule appointment from %s", appointment.Status))
	}

	changedBy, _ := utils.GetUserIdFromContext(ctx)
	from := appointment.Status
	appointment.Status = AppointmentStatusScheduled
	appointment.ScheduledAt = newTime

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Save(appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	logs := []AppointmentLog{
		{AppointmentId: appointment.ID, FromStatus: from, ToStatus: AppointmentStatusRescheduled, Remark: remark, ChangedById: changedBy},
		{AppointmentId: appointment.ID, FromStatus: AppointmentStatusRescheduled, ToStatus: AppointmentStatusScheduled, Remark: remark, ChangedById: changedBy},
	}
	if err := tx.WithContext(ctx).Create(&logs).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

func GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	appointment, err := utils.FetchSingleModel[Appointment](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("appointment", id, err)
	}
	return appointment, nil
}
