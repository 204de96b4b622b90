// Package history models the append-only ledger of status transitions.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// Entry records one status change of one entity. An empty previous status
// marks the creation entry. Entries have no mutators.
type Entry struct {
	id                    uuid.UUID
	entityType            lifecycle.EntityType
	entityID              uuid.UUID
	previousStatus        string
	newStatus             string
	actor                 lifecycle.Actor
	reason                string
	sequence              int64
	notificationRequested bool
	metadata              map[string]string
	occurredAt            time.Time
}

// NewEntry creates an entry for a transition that is about to be persisted.
// sequence is the entity version the transition produces.
func NewEntry(
	entityType lifecycle.EntityType,
	entityID uuid.UUID,
	previousStatus string,
	newStatus string,
	actor lifecycle.Actor,
	reason string,
	sequence int64,
	notificationRequested bool,
	metadata map[string]string,
	occurredAt time.Time,
) (*Entry, error) {
	if !entityType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown entity type: %q", entityType))
	}
	if entityID == uuid.Nil {
		return nil, domain.NewValidationError("entity id is required")
	}
	if newStatus == "" {
		return nil, domain.NewValidationError("new status is required")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if sequence < 1 {
		return nil, domain.NewValidationError("sequence must be positive")
	}

	return &Entry{
		id:                    uuid.New(),
		entityType:            entityType,
		entityID:              entityID,
		previousStatus:        previousStatus,
		newStatus:             newStatus,
		actor:                 actor,
		reason:                reason,
		sequence:              sequence,
		notificationRequested: notificationRequested,
		metadata:              copyMetadata(metadata),
		occurredAt:            occurredAt.UTC(),
	}, nil
}

// Reconstruct rebuilds an Entry from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	entityType lifecycle.EntityType,
	entityID uuid.UUID,
	previousStatus string,
	newStatus string,
	actor lifecycle.Actor,
	reason string,
	sequence int64,
	notificationRequested bool,
	metadata map[string]string,
	occurredAt time.Time,
) *Entry {
	return &Entry{
		id:                    id,
		entityType:            entityType,
		entityID:              entityID,
		previousStatus:        previousStatus,
		newStatus:             newStatus,
		actor:                 actor,
		reason:                reason,
		sequence:              sequence,
		notificationRequested: notificationRequested,
		metadata:              copyMetadata(metadata),
		occurredAt:            occurredAt,
	}
}

func (e *Entry) ID() uuid.UUID                    { return e.id }
func (e *Entry) EntityType() lifecycle.EntityType { return e.entityType }
func (e *Entry) EntityID() uuid.UUID              { return e.entityID }
func (e *Entry) PreviousStatus() string           { return e.previousStatus }
func (e *Entry) NewStatus() string                { return e.newStatus }
func (e *Entry) Actor() lifecycle.Actor           { return e.actor }
func (e *Entry) Reason() string                   { return e.reason }
func (e *Entry) Sequence() int64                  { return e.sequence }
func (e *Entry) NotificationRequested() bool      { return e.notificationRequested }
func (e *Entry) OccurredAt() time.Time            { return e.occurredAt }

// IsCreation reports whether the entry documents the entity's creation.
func (e *Entry) IsCreation() bool { return e.previousStatus == "" }

// Metadata returns a copy of the optional attachment.
func (e *Entry) Metadata() map[string]string { return copyMetadata(e.metadata) }

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Reader reads the ledger. Entries come back ordered oldest first.
type Reader interface {
	ForEntity(ctx context.Context, entityType lifecycle.EntityType, entityID uuid.UUID) ([]*Entry, error)
}
