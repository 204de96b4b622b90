package appointment

import (
	"fmt"

	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// AppointmentStatus represents the state of a doctor consultation.
type AppointmentStatus string

const (
	StatusRequested            AppointmentStatus = "requested"
	StatusConfirmed            AppointmentStatus = "confirmed"
	StatusAwaitingConsultation AppointmentStatus = "awaiting_consultation"
	StatusInProgress           AppointmentStatus = "in_progress"
	StatusPrescriptionProvided AppointmentStatus = "prescription_provided"
	StatusFollowUpScheduled    AppointmentStatus = "follow_up_scheduled"
	StatusCompleted            AppointmentStatus = "completed"
	StatusCancelled            AppointmentStatus = "cancelled"
	StatusNoShow               AppointmentStatus = "no_show"
)

var transitions = lifecycle.NewTable(
	[]AppointmentStatus{
		StatusRequested,
		StatusConfirmed,
		StatusAwaitingConsultation,
		StatusInProgress,
		StatusPrescriptionProvided,
		StatusFollowUpScheduled,
		StatusCompleted,
		StatusCancelled,
		StatusNoShow,
	},
	map[AppointmentStatus][]AppointmentStatus{
		StatusRequested:            {StatusConfirmed, StatusCancelled},
		StatusConfirmed:            {StatusAwaitingConsultation, StatusCancelled},
		StatusAwaitingConsultation: {StatusInProgress, StatusNoShow, StatusCancelled},
		StatusInProgress:           {StatusPrescriptionProvided},
		StatusPrescriptionProvided: {StatusFollowUpScheduled, StatusCompleted},
		StatusFollowUpScheduled:    {StatusCompleted},
		StatusCompleted:            {},
		StatusCancelled:            {},
		StatusNoShow:               {},
	},
)

// AllStatuses returns the appointment vocabulary in lifecycle order.
func AllStatuses() []AppointmentStatus { return transitions.Statuses() }

func (s AppointmentStatus) IsValid() bool { return transitions.IsValid(s) }

func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	return transitions.CanTransition(s, target)
}

func (s AppointmentStatus) AllowedNext() []AppointmentStatus { return transitions.Allowed(s) }

// IsTerminal is true for completed, cancelled and no_show.
func (s AppointmentStatus) IsTerminal() bool { return transitions.IsTerminal(s) }

func (s AppointmentStatus) String() string { return string(s) }

// ParseAppointmentStatus converts a wire token to an AppointmentStatus.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(s)
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid appointment status: %q", s))
	}
	return status, nil
}
