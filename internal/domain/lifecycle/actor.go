package lifecycle

import (
	"fmt"
	"strings"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// ActorRole is the capacity in which an actor requests a transition.
type ActorRole string

const (
	RolePatient     ActorRole = "patient"
	RoleStaff       ActorRole = "staff"
	RoleCoordinator ActorRole = "coordinator"
	RoleDoctor      ActorRole = "doctor"
	RoleAdmin       ActorRole = "admin"
	RoleSystem      ActorRole = "system"
)

// IsValid reports whether r is a known role.
func (r ActorRole) IsValid() bool {
	switch r {
	case RolePatient, RoleStaff, RoleCoordinator, RoleDoctor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor identifies who requested a transition. System actors use a service
// name as ID rather than a user id.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// SystemActor returns the actor used for automated transitions.
func SystemActor(service string) Actor {
	return Actor{ID: service, Role: RoleSystem}
}

// Validate rejects actors without an id or with an unknown role.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return domain.NewValidationError("actor id is required")
	}
	if !a.Role.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("unknown actor role: %q", a.Role))
	}
	return nil
}
