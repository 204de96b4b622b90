package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/domain/history"
)

// BookingRepository defines the persistence contract for booking aggregates.
// Writes always carry the history entry that documents them, and both land
// in one transaction.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByReference retrieves a booking by its human-readable reference.
	FindByReference(ctx context.Context, reference string) (*Booking, error)

	// FindByPatientID retrieves bookings belonging to a patient with pagination.
	FindByPatientID(ctx context.Context, patientID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves bookings with pagination, optionally filtered by status (admin).
	ListAll(ctx context.Context, status BookingStatus, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking together with its creation entry.
	Save(ctx context.Context, booking *Booking, created *history.Entry) error

	// ApplyTransition persists a status change with optimistic locking on
	// Version()-1 and appends entry. A stale version is a concurrency error.
	ApplyTransition(ctx context.Context, booking *Booking, entry *history.Entry) error
}
