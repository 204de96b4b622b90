package lifecycle

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// EntityType names the kind of entity a status history entry belongs to.
type EntityType string

const (
	EntityBooking     EntityType = "booking"
	EntityAppointment EntityType = "appointment"
)

// IsValid reports whether t is a known entity type.
func (t EntityType) IsValid() bool {
	return t == EntityBooking || t == EntityAppointment
}

// String returns the wire form.
func (t EntityType) String() string { return string(t) }

// ParseEntityType validates an entity type token.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("unknown entity type: %q", s))
	}
	return t, nil
}

// LockKey is the mutual-exclusion key guarding transitions of one entity.
func LockKey(t EntityType, id uuid.UUID) string {
	return fmt.Sprintf("lifecycle:%s:%s", t, id)
}
