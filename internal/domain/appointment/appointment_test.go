package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

func TestAppointmentStatus_EveryPair(t *testing.T) {
	allowed := map[AppointmentStatus]map[AppointmentStatus]bool{
		StatusRequested:            {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:            {StatusAwaitingConsultation: true, StatusCancelled: true},
		StatusAwaitingConsultation: {StatusInProgress: true, StatusNoShow: true, StatusCancelled: true},
		StatusInProgress:           {StatusPrescriptionProvided: true},
		StatusPrescriptionProvided: {StatusFollowUpScheduled: true, StatusCompleted: true},
		StatusFollowUpScheduled:    {StatusCompleted: true},
	}

	require.Len(t, AllStatuses(), 9)
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentStatus_Terminal(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, s.IsTerminal(), s)
		assert.Empty(t, s.AllowedNext(), s)
	}
	assert.False(t, StatusFollowUpScheduled.IsTerminal())

	_, err := ParseAppointmentStatus("rescheduled")
	assert.True(t, domain.IsValidation(err))
}

func TestNewAppointment(t *testing.T) {
	now := time.Now().UTC()

	ap, err := NewAppointment(uuid.New(), uuid.New(), nil, nil, "", now)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, ap.Status())
	assert.Regexp(t, `^AP-[A-HJ-NP-Z2-9]{6}$`, ap.Reference())

	_, err = NewAppointment(uuid.New(), uuid.Nil, nil, nil, "", now)
	assert.True(t, domain.IsValidation(err))
	_, err = NewAppointment(uuid.Nil, uuid.New(), nil, nil, "", now)
	assert.True(t, domain.IsValidation(err))
}

func TestAppointment_CompletedIsFinal(t *testing.T) {
	now := time.Now().UTC()
	ap := ReconstructAppointment(uuid.New(), "AP-TEST01", uuid.New(), uuid.New(), nil,
		StatusCompleted, nil, "", 6, now, now)

	err := ap.TransitionTo(StatusCancelled, now)
	require.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, StatusCompleted, ap.Status())
	assert.Equal(t, int64(6), ap.Version())
}
