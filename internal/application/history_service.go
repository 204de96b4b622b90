package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
)

// HistoryEntryDTO is the response representation of one history entry.
type HistoryEntryDTO struct {
	ID                    uuid.UUID         `json:"id"`
	EntityType            string            `json:"entity_type"`
	EntityID              uuid.UUID         `json:"entity_id"`
	PreviousStatus        *string           `json:"previous_status"`
	NewStatus             string            `json:"new_status"`
	ActorID               string            `json:"actor_id"`
	ActorRole             string            `json:"actor_role"`
	Reason                string            `json:"reason,omitempty"`
	Sequence              int64             `json:"sequence"`
	NotificationRequested bool              `json:"notification_requested"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	OccurredAt            time.Time         `json:"occurred_at"`
}

// HistoryAuditDTO is the status history plus the result of checking that the
// entries form an unbroken chain ending at the current status.
type HistoryAuditDTO struct {
	EntityType    string            `json:"entity_type"`
	EntityID      uuid.UUID         `json:"entity_id"`
	CurrentStatus string            `json:"current_status"`
	ChainIntact   bool              `json:"chain_intact"`
	Problem       string            `json:"problem,omitempty"`
	Entries       []HistoryEntryDTO `json:"entries"`
}

// HistoryService serves the status history of bookings and appointments.
type HistoryService struct {
	reader       history.Reader
	bookings     bookingDomain.BookingRepository
	appointments appointmentDomain.AppointmentRepository
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(
	reader history.Reader,
	bookings bookingDomain.BookingRepository,
	appointments appointmentDomain.AppointmentRepository,
) *HistoryService {
	return &HistoryService{reader: reader, bookings: bookings, appointments: appointments}
}

// GetStatusHistory returns every entry for the entity, oldest first. An
// unknown entity type is a validation error and a missing entity is not found.
func (s *HistoryService) GetStatusHistory(ctx context.Context, entityType string, id uuid.UUID) ([]HistoryEntryDTO, error) {
	et, _, err := s.resolve(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.reader.ForEntity(ctx, et, id)
	if err != nil {
		return nil, err
	}
	return toHistoryDTOs(entries), nil
}

// AuditStatusHistory returns the history together with a chain check.
func (s *HistoryService) AuditStatusHistory(ctx context.Context, entityType string, id uuid.UUID) (*HistoryAuditDTO, error) {
	et, current, err := s.resolve(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.reader.ForEntity(ctx, et, id)
	if err != nil {
		return nil, err
	}

	audit := &HistoryAuditDTO{
		EntityType:    string(et),
		EntityID:      id,
		CurrentStatus: current,
		ChainIntact:   true,
		Entries:       toHistoryDTOs(entries),
	}
	if err := history.VerifyChain(entries); err != nil {
		audit.ChainIntact = false
		audit.Problem = err.Error()
	} else if len(entries) > 0 && entries[len(entries)-1].NewStatus() != current {
		audit.ChainIntact = false
		audit.Problem = "last entry does not match current status"
	}
	return audit, nil
}

// resolve checks the entity exists and returns its current status.
func (s *HistoryService) resolve(ctx context.Context, entityType string, id uuid.UUID) (lifecycle.EntityType, string, error) {
	et, err := lifecycle.ParseEntityType(entityType)
	if err != nil {
		return "", "", err
	}

	switch et {
	case lifecycle.EntityAppointment:
		ap, err := s.appointments.FindByID(ctx, id)
		if err != nil {
			return "", "", err
		}
		return et, string(ap.Status()), nil
	default:
		bk, err := s.bookings.FindByID(ctx, id)
		if err != nil {
			return "", "", err
		}
		return et, string(bk.Status()), nil
	}
}

func toHistoryDTOs(entries []*history.Entry) []HistoryEntryDTO {
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dto := HistoryEntryDTO{
			ID:                    e.ID(),
			EntityType:            string(e.EntityType()),
			EntityID:              e.EntityID(),
			NewStatus:             e.NewStatus(),
			ActorID:               e.Actor().ID,
			ActorRole:             string(e.Actor().Role),
			Reason:                e.Reason(),
			Sequence:              e.Sequence(),
			NotificationRequested: e.NotificationRequested(),
			Metadata:              e.Metadata(),
			OccurredAt:            e.OccurredAt(),
		}
		if !e.IsCreation() {
			prev := e.PreviousStatus()
			dto.PreviousStatus = &prev
		}
		dtos[i] = dto
	}
	return dtos
}
