package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/events"
	"github.com/medtrip/service-lifecycle/pkg/kafka"
)

const eventSource = "service-lifecycle"

// TransitionNotice is what a Notifier receives after a transition commits.
// PreviousStatus is empty for creation.
type TransitionNotice struct {
	EntityType     lifecycle.EntityType
	EntityID       uuid.UUID
	Reference      string
	PatientID      uuid.UUID
	PreviousStatus string
	NewStatus      string
	Actor          lifecycle.Actor
	Reason         string
	HistoryEntryID uuid.UUID
	Version        int64
	OccurredAt     time.Time
}

func (n *TransitionNotice) fill(entry *history.Entry) {
	n.EntityType = entry.EntityType()
	n.EntityID = entry.EntityID()
	n.PreviousStatus = entry.PreviousStatus()
	n.NewStatus = entry.NewStatus()
	n.Actor = entry.Actor()
	n.Reason = entry.Reason()
	n.HistoryEntryID = entry.ID()
	n.Version = entry.Sequence()
	n.OccurredAt = entry.OccurredAt()
}

func (n TransitionNotice) toEvent() events.StatusChangedEvent {
	return events.StatusChangedEvent{
		EntityType:     string(n.EntityType),
		EntityID:       n.EntityID,
		Reference:      n.Reference,
		PatientID:      n.PatientID,
		PreviousStatus: n.PreviousStatus,
		NewStatus:      n.NewStatus,
		ActorID:        n.Actor.ID,
		ActorRole:      string(n.Actor.Role),
		Reason:         n.Reason,
		HistoryEntryID: n.HistoryEntryID,
		Version:        n.Version,
		OccurredAt:     n.OccurredAt,
	}
}

// Notifier dispatches user-facing notices. Delivery is best effort: an error
// is logged by the caller and never undoes the transition.
type Notifier interface {
	Notify(ctx context.Context, notice TransitionNotice) error
}

// EventPublisher is the subset of kafka.Producer the KafkaNotifier needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// KafkaNotifier publishes notices as CloudEvents on the entity's topic.
type KafkaNotifier struct {
	publisher EventPublisher
}

// NewKafkaNotifier creates a KafkaNotifier.
func NewKafkaNotifier(publisher EventPublisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

// Notify implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, notice TransitionNotice) error {
	topic, eventType := eventRouting(notice)

	ce, err := kafka.NewCloudEvent(eventSource, eventType, notice.toEvent())
	if err != nil {
		return err
	}
	ce.Subject = notice.EntityID.String()

	return n.publisher.PublishEvent(ctx, topic, ce)
}

func eventRouting(notice TransitionNotice) (topic, eventType string) {
	created := notice.PreviousStatus == ""
	switch notice.EntityType {
	case lifecycle.EntityAppointment:
		if created {
			return events.TopicAppointmentEvents, events.AppointmentCreated
		}
		return events.TopicAppointmentEvents, events.AppointmentStatusChanged
	default:
		if created {
			return events.TopicBookingEvents, events.BookingCreated
		}
		return events.TopicBookingEvents, events.BookingStatusChanged
	}
}

// JSONPublisher is the subset of mq.Publisher the RabbitNotifier needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// RabbitNotifier publishes notices to a topic exchange with routing key
// "<entity_type>.<new_status>", e.g. "booking.quotation_sent".
type RabbitNotifier struct {
	publisher JSONPublisher
}

// NewRabbitNotifier creates a RabbitNotifier.
func NewRabbitNotifier(publisher JSONPublisher) *RabbitNotifier {
	return &RabbitNotifier{publisher: publisher}
}

// Notify implements Notifier.
func (n *RabbitNotifier) Notify(ctx context.Context, notice TransitionNotice) error {
	key := fmt.Sprintf("%s.%s", notice.EntityType, notice.NewStatus)
	return n.publisher.PublishJSON(ctx, key, notice.toEvent())
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, notice TransitionNotice) error {
	n.logger.Info("status notification",
		zap.String("entity_type", string(notice.EntityType)),
		zap.String("entity_id", notice.EntityID.String()),
		zap.String("reference", notice.Reference),
		zap.String("previous_status", notice.PreviousStatus),
		zap.String("new_status", notice.NewStatus),
	)
	return nil
}
