package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/internal/repository"
	"github.com/medtrip/service-lifecycle/pkg/lock"
)

var (
	staff       = lifecycle.Actor{ID: "staff-7", Role: lifecycle.RoleStaff}
	patient     = lifecycle.Actor{ID: "patient-1", Role: lifecycle.RolePatient}
	coordinator = lifecycle.Actor{ID: "coord-3", Role: lifecycle.RoleCoordinator}
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// recordingNotifier keeps every notice it receives.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []TransitionNotice
}

func (r *recordingNotifier) Notify(_ context.Context, n TransitionNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) all() []TransitionNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionNotice(nil), r.notices...)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, n TransitionNotice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// timeoutLocker never acquires.
type timeoutLocker struct{}

func (timeoutLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return lock.ErrLockTimeout
}

// failingBookings fails every ApplyTransition with err.
type failingBookings struct {
	bookingDomain.BookingRepository
	err error
}

func (f failingBookings) ApplyTransition(context.Context, *bookingDomain.Booking, *history.Entry) error {
	return f.err
}

type testStack struct {
	store        *repository.MemoryStore
	notifier     Notifier
	metrics      *metrics.Lifecycle
	transitioner *Transitioner
	bookings     *BookingService
	appointments *AppointmentService
	history      *HistoryService
}

type stackOption func(*stackConfig)

type stackConfig struct {
	locker   lock.Locker
	notifier Notifier
	wrap     func(bookingDomain.BookingRepository) bookingDomain.BookingRepository
}

func withLocker(l lock.Locker) stackOption {
	return func(c *stackConfig) { c.locker = l }
}

func withNotifier(n Notifier) stackOption {
	return func(c *stackConfig) { c.notifier = n }
}

func withBookingRepo(wrap func(bookingDomain.BookingRepository) bookingDomain.BookingRepository) stackOption {
	return func(c *stackConfig) { c.wrap = wrap }
}

func newTestStack(t *testing.T, opts ...stackOption) *testStack {
	t.Helper()

	cfg := stackConfig{
		locker:   lock.NewMemoryLocker(time.Second),
		notifier: &recordingNotifier{},
		wrap:     func(r bookingDomain.BookingRepository) bookingDomain.BookingRepository { return r },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := repository.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	tr := NewTransitioner(cfg.locker, fixedClock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		cfg.notifier, m, zap.NewNop(), time.Second)
	bookings := cfg.wrap(store.Bookings())

	return &testStack{
		store:        store,
		notifier:     cfg.notifier,
		metrics:      m,
		transitioner: tr,
		bookings:     NewBookingService(bookings, tr, zap.NewNop()),
		appointments: NewAppointmentService(store.Appointments(), store.Bookings(), tr, zap.NewNop()),
		history:      NewHistoryService(store, store.Bookings(), store.Appointments()),
	}
}

func (s *testStack) newBooking(t *testing.T) *BookingDTO {
	t.Helper()
	bk, err := s.bookings.CreateBooking(context.Background(), patient, CreateBookingRequest{PatientID: uuid.New()})
	require.NoError(t, err)
	return bk
}

// bookingAt creates a booking and walks it to status along the forward path.
func (s *testStack) bookingAt(t *testing.T, status bookingDomain.BookingStatus) uuid.UUID {
	t.Helper()
	bk := s.newBooking(t)
	for _, next := range bookingPathTo(status) {
		_, err := s.bookings.RequestBookingTransition(context.Background(), TransitionRequest{
			EntityID: bk.ID, Status: string(next), Actor: staff,
		})
		require.NoError(t, err)
	}
	return bk.ID
}

var bookingForwardPath = []bookingDomain.BookingStatus{
	bookingDomain.StatusUnderReview,
	bookingDomain.StatusAccepted,
	bookingDomain.StatusAwaitingMedicalDetails,
	bookingDomain.StatusQuotationSent,
	bookingDomain.StatusConfirmed,
	bookingDomain.StatusPaymentCompleted,
	bookingDomain.StatusInvoiceSent,
	bookingDomain.StatusTravelArrangement,
	bookingDomain.StatusInTreatment,
	bookingDomain.StatusCompleted,
	bookingDomain.StatusFeedbackReceived,
}

func bookingPathTo(status bookingDomain.BookingStatus) []bookingDomain.BookingStatus {
	switch status {
	case bookingDomain.StatusRequested:
		return nil
	case bookingDomain.StatusRejected:
		return []bookingDomain.BookingStatus{bookingDomain.StatusRejected}
	}
	for i, st := range bookingForwardPath {
		if st == status {
			return bookingForwardPath[:i+1]
		}
	}
	return nil
}
