package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/pkg/domain"
	"github.com/medtrip/service-lifecycle/pkg/lock"
)

// TransitionRequest asks for one status change. ExpectedStatus, when set,
// makes the request conditional: it fails with a concurrency error if the
// entity is no longer in that status by the time the lock is held.
type TransitionRequest struct {
	EntityID             uuid.UUID
	Status               string
	Actor                lifecycle.Actor
	Reason               string
	ExpectedStatus       string
	Metadata             map[string]string
	SuppressNotification bool
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	EntityType     lifecycle.EntityType `json:"entity_type"`
	EntityID       uuid.UUID            `json:"entity_id"`
	Status         string               `json:"status"`
	PreviousStatus string               `json:"previous_status"`
	HistoryEntryID uuid.UUID            `json:"history_entry_id"`
	Version        int64                `json:"version"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// Transitioner runs status transitions for every entity type: it serializes
// callers per entity, delegates validation to the aggregate, commits through
// the repository and notifies after the lock is released.
type Transitioner struct {
	locker        lock.Locker
	clock         lifecycle.Clock
	notifier      Notifier
	metrics       *metrics.Lifecycle
	tracer        trace.Tracer
	logger        *zap.Logger
	notifyTimeout time.Duration
}

// NewTransitioner creates a Transitioner.
func NewTransitioner(
	locker lock.Locker,
	clock lifecycle.Clock,
	notifier Notifier,
	m *metrics.Lifecycle,
	logger *zap.Logger,
	notifyTimeout time.Duration,
) *Transitioner {
	return &Transitioner{
		locker:        locker,
		clock:         clock,
		notifier:      notifier,
		metrics:       m,
		tracer:        otel.Tracer("github.com/medtrip/service-lifecycle/internal/application"),
		logger:        logger,
		notifyTimeout: notifyTimeout,
	}
}

// machine binds the generic transition flow to one aggregate type.
type machine[E any] struct {
	entityType lifecycle.EntityType
	parse      func(status string) error
	load       func(ctx context.Context, id uuid.UUID) (E, error)
	status     func(E) string
	transition func(e E, to string, at time.Time) error
	version    func(E) int64
	apply      func(ctx context.Context, e E, entry *history.Entry) error
	notice     func(E) TransitionNotice
}

func validateRequest(req TransitionRequest, parse func(string) error) error {
	if req.EntityID == uuid.Nil {
		return domain.NewValidationError("entity id is required")
	}
	if err := parse(req.Status); err != nil {
		return err
	}
	if req.ExpectedStatus != "" {
		if err := parse(req.ExpectedStatus); err != nil {
			return err
		}
	}
	return req.Actor.Validate()
}

func runTransition[E any](ctx context.Context, t *Transitioner, m machine[E], req TransitionRequest) (*TransitionResult, error) {
	started := time.Now()
	et := string(m.entityType)

	ctx, span := t.tracer.Start(ctx, "lifecycle.transition", trace.WithAttributes(
		attribute.String("entity.type", et),
		attribute.String("entity.id", req.EntityID.String()),
		attribute.String("status.requested", req.Status),
		attribute.String("actor.role", string(req.Actor.Role)),
	))
	defer span.End()

	result, notice, err := lockedTransition(ctx, t, m, req)
	statusLabel := req.Status
	if domain.IsValidation(err) {
		statusLabel = "invalid"
	}
	t.metrics.ObserveTransition(et, statusLabel, outcomeOf(err), time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logFailure(m.entityType, req, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("status.previous", result.PreviousStatus))
	t.logger.Info("status transition applied",
		zap.String("entity_type", et),
		zap.String("entity_id", req.EntityID.String()),
		zap.String("from", result.PreviousStatus),
		zap.String("to", result.Status),
		zap.Int64("version", result.Version),
		zap.String("actor_id", req.Actor.ID),
	)

	if notice != nil {
		t.notify(ctx, *notice)
	}
	return result, nil
}

// lockedTransition validates and commits under the entity lock. It never
// notifies; the notice is returned for dispatch once the lock is released.
func lockedTransition[E any](ctx context.Context, t *Transitioner, m machine[E], req TransitionRequest) (*TransitionResult, *TransitionNotice, error) {
	if err := validateRequest(req, m.parse); err != nil {
		return nil, nil, err
	}

	var (
		result *TransitionResult
		notice *TransitionNotice
	)
	waitStart := time.Now()
	err := t.locker.WithLock(ctx, lifecycle.LockKey(m.entityType, req.EntityID), func(ctx context.Context) error {
		t.metrics.ObserveLockWait(string(m.entityType), time.Since(waitStart))

		entity, err := m.load(ctx, req.EntityID)
		if err != nil {
			return err
		}

		current := m.status(entity)
		if req.ExpectedStatus != "" && req.ExpectedStatus != current {
			return domain.NewStaleStatusError(string(m.entityType), req.EntityID.String(), current, req.ExpectedStatus)
		}

		at := t.clock.Now().UTC()
		if err := m.transition(entity, req.Status, at); err != nil {
			return err
		}

		entry, err := history.NewEntry(
			m.entityType,
			req.EntityID,
			current,
			req.Status,
			req.Actor,
			req.Reason,
			m.version(entity),
			!req.SuppressNotification,
			req.Metadata,
			at,
		)
		if err != nil {
			return err
		}

		if err := m.apply(ctx, entity, entry); err != nil {
			return err
		}

		result = &TransitionResult{
			EntityType:     m.entityType,
			EntityID:       req.EntityID,
			Status:         req.Status,
			PreviousStatus: current,
			HistoryEntryID: entry.ID(),
			Version:        entry.Sequence(),
			OccurredAt:     at,
		}
		if entry.NotificationRequested() {
			n := m.notice(entity)
			n.fill(entry)
			notice = &n
		}
		return nil
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		return nil, nil, domain.NewConcurrencyError(fmt.Sprintf(
			"%s %s is busy, retry later", m.entityType, req.EntityID))
	}
	if err != nil {
		return nil, nil, err
	}
	return result, notice, nil
}

// notify dispatches a notice on a context detached from the caller, so a
// finished HTTP request does not cancel it. Failures are logged and counted.
func (t *Transitioner) notify(ctx context.Context, notice TransitionNotice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.notifyTimeout)
	defer cancel()

	if err := t.notifier.Notify(ctx, notice); err != nil {
		t.metrics.NotificationFailed(string(notice.EntityType))
		t.logger.Warn("failed to dispatch status notification",
			zap.String("entity_type", string(notice.EntityType)),
			zap.String("entity_id", notice.EntityID.String()),
			zap.String("new_status", notice.NewStatus),
			zap.Error(err),
		)
	}
}

// now returns the transition clock reading, used for creation timestamps.
func (t *Transitioner) now() time.Time { return t.clock.Now().UTC() }

func (t *Transitioner) logFailure(et lifecycle.EntityType, req TransitionRequest, err error) {
	fields := []zap.Field{
		zap.String("entity_type", string(et)),
		zap.String("entity_id", req.EntityID.String()),
		zap.String("to", req.Status),
		zap.Error(err),
	}
	if domain.CodeOf(err) != "" {
		t.logger.Debug("status transition rejected", fields...)
		return
	}
	t.logger.Error("status transition failed", fields...)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case domain.IsValidation(err):
		return metrics.OutcomeValidation
	case domain.IsNotFound(err):
		return metrics.OutcomeNotFound
	case domain.IsInvalidTransition(err):
		return metrics.OutcomeInvalidTransition
	case domain.IsConcurrency(err):
		return metrics.OutcomeConcurrency
	default:
		return metrics.OutcomeError
	}
}
