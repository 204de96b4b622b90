package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// Booking is the aggregate root for a patient's treatment trip.
type Booking struct {
	id            uuid.UUID
	reference     string
	patientID     uuid.UUID
	hospitalID    *uuid.UUID
	treatmentID   *uuid.UUID
	packageID     *uuid.UUID
	coordinatorID *uuid.UUID
	status        BookingStatus
	notes         string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a new Booking aggregate with status=requested.
func NewBooking(
	patientID uuid.UUID,
	hospitalID *uuid.UUID,
	treatmentID *uuid.UUID,
	packageID *uuid.UUID,
	coordinatorID *uuid.UUID,
	notes string,
	now time.Time,
) (*Booking, error) {
	if patientID == uuid.Nil {
		return nil, domain.NewValidationError("patient ID is required")
	}

	reference, err := lifecycle.GenerateReference("MT")
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Booking{
		id:            uuid.New(),
		reference:     reference,
		patientID:     patientID,
		hospitalID:    nonNil(hospitalID),
		treatmentID:   nonNil(treatmentID),
		packageID:     nonNil(packageID),
		coordinatorID: nonNil(coordinatorID),
		status:        StatusRequested,
		notes:         notes,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	reference string,
	patientID uuid.UUID,
	hospitalID *uuid.UUID,
	treatmentID *uuid.UUID,
	packageID *uuid.UUID,
	coordinatorID *uuid.UUID,
	status BookingStatus,
	notes string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		reference:     reference,
		patientID:     patientID,
		hospitalID:    hospitalID,
		treatmentID:   treatmentID,
		packageID:     packageID,
		coordinatorID: coordinatorID,
		status:        status,
		notes:         notes,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func nonNil(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// Reference returns the human-readable booking reference.
func (b *Booking) Reference() string { return b.reference }

// PatientID returns the patient's user ID.
func (b *Booking) PatientID() uuid.UUID { return b.patientID }

// HospitalID returns the linked hospital, if any.
func (b *Booking) HospitalID() *uuid.UUID { return b.hospitalID }

// TreatmentID returns the linked treatment, if any.
func (b *Booking) TreatmentID() *uuid.UUID { return b.treatmentID }

// PackageID returns the linked package, if any.
func (b *Booking) PackageID() *uuid.UUID { return b.packageID }

// CoordinatorID returns the staff coordinator handling the booking, if any.
func (b *Booking) CoordinatorID() *uuid.UUID { return b.coordinatorID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Notes returns any additional notes for the booking.
func (b *Booking) Notes() string { return b.notes }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// TransitionTo moves the booking to target if the transition table allows it
// and bumps the version. On error the booking is unchanged.
func (b *Booking) TransitionTo(target BookingStatus, at time.Time) error {
	if err := transitions.Check(b.status, target); err != nil {
		return err
	}
	b.status = target
	b.version++
	b.updatedAt = at.UTC()
	return nil
}
