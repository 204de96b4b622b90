package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// StatusHistoryModel is the GORM model for the status_history table. Rows are
// only ever inserted.
type StatusHistoryModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EntityType            string          `gorm:"not null;size:20;uniqueIndex:idx_status_history_entity_seq,priority:1"`
	EntityID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_status_history_entity_seq,priority:2"`
	Sequence              int64           `gorm:"not null;uniqueIndex:idx_status_history_entity_seq,priority:3"`
	PreviousStatus        *string         `gorm:"size:40"`
	NewStatus             string          `gorm:"not null;size:40"`
	ActorID               string          `gorm:"not null;size:100"`
	ActorRole             string          `gorm:"not null;size:20"`
	Reason                string          `gorm:"size:1000"`
	NotificationRequested bool            `gorm:"not null"`
	Metadata              json.RawMessage `gorm:"type:jsonb"`
	OccurredAt            time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (StatusHistoryModel) TableName() string {
	return "status_history"
}

// GormHistoryRepository writes and reads the status ledger.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Record inserts entry using tx, which must be the transaction that also
// carries the status update. A clash on (entity_type, entity_id, sequence)
// means another writer already produced this version.
func (r *GormHistoryRepository) Record(tx *gorm.DB, entry *history.Entry) error {
	model, err := toHistoryModel(entry)
	if err != nil {
		return err
	}
	if err := tx.Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConcurrencyError(fmt.Sprintf(
				"%s %s already has history sequence %d", entry.EntityType(), entry.EntityID(), entry.Sequence()))
		}
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

// ForEntity returns the entity's history ordered by sequence.
func (r *GormHistoryRepository) ForEntity(ctx context.Context, entityType lifecycle.EntityType, entityID uuid.UUID) ([]*history.Entry, error) {
	var models []StatusHistoryModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("sequence ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}

	entries := make([]*history.Entry, len(models))
	for i := range models {
		e, err := toDomainEntry(&models[i])
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// --- Conversion Helpers ---

func toHistoryModel(e *history.Entry) (*StatusHistoryModel, error) {
	var previous *string
	if !e.IsCreation() {
		p := e.PreviousStatus()
		previous = &p
	}

	var metadata json.RawMessage
	if m := e.Metadata(); m != nil {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history metadata: %w", err)
		}
		metadata = data
	}

	return &StatusHistoryModel{
		ID:                    e.ID(),
		EntityType:            string(e.EntityType()),
		EntityID:              e.EntityID(),
		Sequence:              e.Sequence(),
		PreviousStatus:        previous,
		NewStatus:             e.NewStatus(),
		ActorID:               e.Actor().ID,
		ActorRole:             string(e.Actor().Role),
		Reason:                e.Reason(),
		NotificationRequested: e.NotificationRequested(),
		Metadata:              metadata,
		OccurredAt:            e.OccurredAt(),
	}, nil
}

func toDomainEntry(m *StatusHistoryModel) (*history.Entry, error) {
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history metadata: %w", err)
		}
	}

	previous := ""
	if m.PreviousStatus != nil {
		previous = *m.PreviousStatus
	}

	return history.Reconstruct(
		m.ID,
		lifecycle.EntityType(m.EntityType),
		m.EntityID,
		previous,
		m.NewStatus,
		lifecycle.Actor{ID: m.ActorID, Role: lifecycle.ActorRole(m.ActorRole)},
		m.Reason,
		m.Sequence,
		m.NotificationRequested,
		metadata,
		m.OccurredAt.UTC(),
	), nil
}
