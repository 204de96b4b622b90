package booking

import (
	"fmt"

	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusRequested              BookingStatus = "requested"
	StatusUnderReview            BookingStatus = "under_review"
	StatusAccepted               BookingStatus = "accepted"
	StatusRejected               BookingStatus = "rejected"
	StatusAwaitingMedicalDetails BookingStatus = "awaiting_medical_details"
	StatusQuotationSent          BookingStatus = "quotation_sent"
	StatusConfirmed              BookingStatus = "confirmed"
	StatusPaymentCompleted       BookingStatus = "payment_completed"
	StatusInvoiceSent            BookingStatus = "invoice_sent"
	StatusTravelArrangement      BookingStatus = "travel_arrangement"
	StatusInTreatment            BookingStatus = "in_treatment"
	StatusCompleted              BookingStatus = "completed"
	StatusFeedbackReceived       BookingStatus = "feedback_received"
)

// transitions defines the state machine for booking status transitions.
var transitions = lifecycle.NewTable(
	[]BookingStatus{
		StatusRequested,
		StatusUnderReview,
		StatusAccepted,
		StatusRejected,
		StatusAwaitingMedicalDetails,
		StatusQuotationSent,
		StatusConfirmed,
		StatusPaymentCompleted,
		StatusInvoiceSent,
		StatusTravelArrangement,
		StatusInTreatment,
		StatusCompleted,
		StatusFeedbackReceived,
	},
	map[BookingStatus][]BookingStatus{
		StatusRequested:              {StatusUnderReview, StatusRejected},
		StatusUnderReview:            {StatusAccepted, StatusRejected},
		StatusAccepted:               {StatusAwaitingMedicalDetails},
		StatusAwaitingMedicalDetails: {StatusQuotationSent},
		StatusQuotationSent:          {StatusConfirmed, StatusRejected},
		StatusConfirmed:              {StatusPaymentCompleted},
		StatusPaymentCompleted:       {StatusInvoiceSent},
		StatusInvoiceSent:            {StatusTravelArrangement},
		StatusTravelArrangement:      {StatusInTreatment},
		StatusInTreatment:            {StatusCompleted},
		StatusCompleted:              {StatusFeedbackReceived},
		StatusRejected:               {},
		StatusFeedbackReceived:       {},
	},
)

// AllStatuses returns the booking vocabulary in lifecycle order.
func AllStatuses() []BookingStatus { return transitions.Statuses() }

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	return transitions.IsValid(s)
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	return transitions.CanTransition(s, target)
}

// AllowedNext returns the statuses reachable in one step.
func (s BookingStatus) AllowedNext() []BookingStatus {
	return transitions.Allowed(s)
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return transitions.IsTerminal(s)
}

// IsClosed returns true once the treatment is over or the booking was
// rejected. A completed booking is closed but still accepts feedback.
func (s BookingStatus) IsClosed() bool {
	return s == StatusCompleted || s.IsTerminal()
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning a
// validation error if it is not part of the vocabulary.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid booking status: %q", s))
	}
	return status, nil
}
