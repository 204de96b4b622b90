package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/domain/history"
)

// AppointmentRepository defines the persistence contract for appointments.
type AppointmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindByReference(ctx context.Context, reference string) (*Appointment, error)

	// FindByPatientID and FindByDoctorID page through a participant's appointments.
	FindByPatientID(ctx context.Context, patientID uuid.UUID, page, limit int) ([]*Appointment, int64, error)
	FindByDoctorID(ctx context.Context, doctorID uuid.UUID, page, limit int) ([]*Appointment, int64, error)

	// ListAll pages through every appointment, optionally filtered by status.
	ListAll(ctx context.Context, status AppointmentStatus, page, limit int) ([]*Appointment, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new appointment together with its creation entry.
	Save(ctx context.Context, appointment *Appointment, created *history.Entry) error

	// ApplyTransition persists a status change guarded by Version()-1 and
	// appends entry in the same transaction.
	ApplyTransition(ctx context.Context, appointment *Appointment, entry *history.Entry) error
}
