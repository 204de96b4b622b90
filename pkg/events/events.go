// Package events defines the topics, event types and payloads exchanged with
// other services.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents     = "booking.events"
	TopicAppointmentEvents = "appointment.events"
	TopicPaymentEvents     = "payment.events"
)

// Event types.
const (
	BookingCreated           = "booking.created"
	BookingStatusChanged     = "booking.status_changed"
	AppointmentCreated       = "appointment.created"
	AppointmentStatusChanged = "appointment.status_changed"
	PaymentCompleted         = "payment.completed"
)

// StatusChangedEvent is published after a transition commits. PreviousStatus
// is empty for creation events.
type StatusChangedEvent struct {
	EntityType     string    `json:"entity_type"`
	EntityID       uuid.UUID `json:"entity_id"`
	Reference      string    `json:"reference"`
	PatientID      uuid.UUID `json:"patient_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	ActorID        string    `json:"actor_id"`
	ActorRole      string    `json:"actor_role"`
	Reason         string    `json:"reason,omitempty"`
	HistoryEntryID uuid.UUID `json:"history_entry_id"`
	Version        int64     `json:"version"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentCompletedEvent is published by the payment service once a booking
// has been paid in full.
type PaymentCompletedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Provider    string    `json:"provider"`
	OccurredAt  time.Time `json:"occurred_at"`
}
