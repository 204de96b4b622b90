package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// Appointment is the aggregate root for a doctor consultation.
type Appointment struct {
	id          uuid.UUID
	reference   string
	patientID   uuid.UUID
	doctorID    uuid.UUID
	bookingID   *uuid.UUID
	status      AppointmentStatus
	scheduledAt *time.Time
	notes       string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewAppointment creates an appointment in status=requested. Whether
// bookingID exists is checked by the caller.
func NewAppointment(
	patientID uuid.UUID,
	doctorID uuid.UUID,
	bookingID *uuid.UUID,
	scheduledAt *time.Time,
	notes string,
	now time.Time,
) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, domain.NewValidationError("patient ID is required")
	}
	if doctorID == uuid.Nil {
		return nil, domain.NewValidationError("doctor ID is required")
	}
	if bookingID != nil && *bookingID == uuid.Nil {
		bookingID = nil
	}

	reference, err := lifecycle.GenerateReference("AP")
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Appointment{
		id:          uuid.New(),
		reference:   reference,
		patientID:   patientID,
		doctorID:    doctorID,
		bookingID:   bookingID,
		status:      StatusRequested,
		scheduledAt: scheduledAt,
		notes:       notes,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructAppointment rebuilds an Appointment from persistence data (no validation).
func ReconstructAppointment(
	id uuid.UUID,
	reference string,
	patientID uuid.UUID,
	doctorID uuid.UUID,
	bookingID *uuid.UUID,
	status AppointmentStatus,
	scheduledAt *time.Time,
	notes string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Appointment {
	return &Appointment{
		id:          id,
		reference:   reference,
		patientID:   patientID,
		doctorID:    doctorID,
		bookingID:   bookingID,
		status:      status,
		scheduledAt: scheduledAt,
		notes:       notes,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (a *Appointment) ID() uuid.UUID             { return a.id }
func (a *Appointment) Reference() string         { return a.reference }
func (a *Appointment) PatientID() uuid.UUID      { return a.patientID }
func (a *Appointment) DoctorID() uuid.UUID       { return a.doctorID }
func (a *Appointment) BookingID() *uuid.UUID     { return a.bookingID }
func (a *Appointment) Status() AppointmentStatus { return a.status }
func (a *Appointment) ScheduledAt() *time.Time   { return a.scheduledAt }
func (a *Appointment) Notes() string             { return a.notes }
func (a *Appointment) Version() int64            { return a.version }
func (a *Appointment) CreatedAt() time.Time      { return a.createdAt }
func (a *Appointment) UpdatedAt() time.Time      { return a.updatedAt }

// TransitionTo moves the appointment to target and bumps the version.
func (a *Appointment) TransitionTo(target AppointmentStatus, at time.Time) error {
	if err := transitions.Check(a.status, target); err != nil {
		return err
	}
	a.status = target
	a.version++
	a.updatedAt = at.UTC()
	return nil
}
