package events

import (
	"context"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/application"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
	"github.com/medtrip/service-lifecycle/pkg/events"
	"github.com/medtrip/service-lifecycle/pkg/kafka"
)

const paymentActor = "payment-service"

// BookingTransitioner is the part of BookingService the consumer drives.
type BookingTransitioner interface {
	RequestBookingTransition(ctx context.Context, req application.TransitionRequest) (*application.TransitionResult, error)
}

// PaymentEventConsumer listens to payment events and moves paid bookings to
// payment_completed.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	bookings BookingTransitioner
	retry    application.RetryPolicy
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	bookings BookingTransitioner,
	retry application.RetryPolicy,
	logger *zap.Logger,
) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger),
		bookings: bookings,
		retry:    retry,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentCompleted:
		return c.handlePaymentCompleted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentCompleted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.PaymentCompletedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentCompletedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	log := c.logger.With(
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("payment_id", evt.PaymentID.String()),
	)
	log.Info("processing payment completed event")

	req := application.TransitionRequest{
		EntityID: evt.BookingID,
		Status:   string(bookingDomain.StatusPaymentCompleted),
		Actor:    lifecycle.SystemActor(paymentActor),
		Reason:   "payment received",
		Metadata: map[string]string{
			"payment_id":   evt.PaymentID.String(),
			"amount_cents": strconv.FormatInt(evt.AmountCents, 10),
			"currency":     evt.Currency,
			"provider":     evt.Provider,
			"paid_at":      evt.OccurredAt.UTC().Format(time.RFC3339),
		},
	}

	err := application.RetryOnConflict(ctx, c.retry, func(ctx context.Context) error {
		_, err := c.bookings.RequestBookingTransition(ctx, req)
		return err
	})
	switch {
	case err == nil:
		log.Info("booking marked paid")
		return nil
	case domain.IsInvalidTransition(err):
		// Redelivered event, or a booking that was never confirmed.
		log.Warn("payment event does not apply to booking", zap.Error(err))
		return nil
	case domain.IsNotFound(err), domain.IsValidation(err):
		log.Error("payment event references unusable booking", zap.Error(err))
		return nil
	default:
		log.Error("failed to mark booking paid", zap.Error(err))
		return err
	}
}
