package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

type historyKey struct {
	entityType string
	entityID   uuid.UUID
}

// MemoryStore keeps bookings, appointments and their history in process
// memory, stored as the same models the GORM repositories use. A single mutex
// makes every write atomic. Used with STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	bookings     map[uuid.UUID]BookingModel
	appointments map[uuid.UUID]AppointmentModel
	history      map[historyKey][]StatusHistoryModel
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:     make(map[uuid.UUID]BookingModel),
		appointments: make(map[uuid.UUID]AppointmentModel),
		history:      make(map[historyKey][]StatusHistoryModel),
	}
}

// Bookings returns the store as a BookingRepository.
func (s *MemoryStore) Bookings() bookingDomain.BookingRepository { return memoryBookings{s} }

// Appointments returns the store as an AppointmentRepository.
func (s *MemoryStore) Appointments() appointmentDomain.AppointmentRepository {
	return memoryAppointments{s}
}

// ForEntity implements history.Reader.
func (s *MemoryStore) ForEntity(_ context.Context, entityType lifecycle.EntityType, entityID uuid.UUID) ([]*history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.history[historyKey{string(entityType), entityID}]
	entries := make([]*history.Entry, len(rows))
	for i := range rows {
		e, err := toDomainEntry(&rows[i])
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// checkHistory must be called with mu held. Rows are kept sorted by sequence.
func (s *MemoryStore) checkHistory(entry *history.Entry) (*StatusHistoryModel, error) {
	model, err := toHistoryModel(entry)
	if err != nil {
		return nil, err
	}
	for _, row := range s.history[historyKey{model.EntityType, model.EntityID}] {
		if row.Sequence == model.Sequence {
			return nil, domain.NewConcurrencyError(fmt.Sprintf(
				"%s %s already has history sequence %d", model.EntityType, model.EntityID, model.Sequence))
		}
	}
	return model, nil
}

func (s *MemoryStore) appendHistory(model *StatusHistoryModel) {
	key := historyKey{model.EntityType, model.EntityID}
	rows := append(s.history[key], *model)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	s.history[key] = rows
}

func paginate[T any](items []T, page, limit int) []T {
	from := pageOffset(page, limit)
	if from >= len(items) {
		return []T{}
	}
	to := from + limit
	if limit <= 0 || to > len(items) {
		to = len(items)
	}
	return items[from:to]
}

// --- bookings ---

type memoryBookings struct{ s *MemoryStore }

func (m memoryBookings) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	model, ok := m.s.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return toDomainBooking(&model)
}

func (m memoryBookings) FindByReference(_ context.Context, reference string) (*bookingDomain.Booking, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, model := range m.s.bookings {
		if model.Reference == reference {
			return toDomainBooking(&model)
		}
	}
	return nil, domain.NewNotFoundError("Booking", reference)
}

func (m memoryBookings) FindByPatientID(_ context.Context, patientID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return m.filter(func(b BookingModel) bool { return b.PatientID == patientID }, page, limit)
}

func (m memoryBookings) ListAll(_ context.Context, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return m.filter(func(b BookingModel) bool { return status == "" || b.Status == string(status) }, page, limit)
}

func (m memoryBookings) filter(keep func(BookingModel) bool, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var matched []BookingModel
	for _, model := range m.s.bookings {
		if keep(model) {
			matched = append(matched, model)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	pageRows := paginate(matched, page, limit)
	out := make([]*bookingDomain.Booking, len(pageRows))
	for i := range pageRows {
		bk, err := toDomainBooking(&pageRows[i])
		if err != nil {
			return nil, 0, err
		}
		out[i] = bk
	}
	return out, int64(len(matched)), nil
}

func (m memoryBookings) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, model := range m.s.bookings {
		counts[model.Status]++
	}
	return counts, nil
}

func (m memoryBookings) Save(_ context.Context, bk *bookingDomain.Booking, created *history.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.bookings[bk.ID()]; exists {
		return fmt.Errorf("failed to save booking: %s already exists", bk.ID())
	}
	for _, model := range m.s.bookings {
		if model.Reference == bk.Reference() {
			return fmt.Errorf("failed to save booking: reference %s already taken", bk.Reference())
		}
	}
	row, err := m.s.checkHistory(created)
	if err != nil {
		return err
	}

	m.s.bookings[bk.ID()] = *toBookingModel(bk)
	m.s.appendHistory(row)
	return nil
}

func (m memoryBookings) ApplyTransition(_ context.Context, bk *bookingDomain.Booking, entry *history.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.bookings[bk.ID()]
	if !ok || current.Version != bk.Version()-1 {
		return domain.NewConcurrencyError("booking was modified by another transaction")
	}
	row, err := m.s.checkHistory(entry)
	if err != nil {
		return err
	}

	current.Status = string(bk.Status())
	current.Version = bk.Version()
	current.UpdatedAt = bk.UpdatedAt()
	m.s.bookings[bk.ID()] = current
	m.s.appendHistory(row)
	return nil
}

// --- appointments ---

type memoryAppointments struct{ s *MemoryStore }

func (m memoryAppointments) FindByID(_ context.Context, id uuid.UUID) (*appointmentDomain.Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	model, ok := m.s.appointments[id]
	if !ok {
		return nil, domain.NewNotFoundError("Appointment", id.String())
	}
	return toDomainAppointment(&model)
}

func (m memoryAppointments) FindByReference(_ context.Context, reference string) (*appointmentDomain.Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, model := range m.s.appointments {
		if model.Reference == reference {
			return toDomainAppointment(&model)
		}
	}
	return nil, domain.NewNotFoundError("Appointment", reference)
}

func (m memoryAppointments) FindByPatientID(_ context.Context, patientID uuid.UUID, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return m.filter(func(a AppointmentModel) bool { return a.PatientID == patientID }, page, limit)
}

func (m memoryAppointments) FindByDoctorID(_ context.Context, doctorID uuid.UUID, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return m.filter(func(a AppointmentModel) bool { return a.DoctorID == doctorID }, page, limit)
}

func (m memoryAppointments) ListAll(_ context.Context, status appointmentDomain.AppointmentStatus, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return m.filter(func(a AppointmentModel) bool { return status == "" || a.Status == string(status) }, page, limit)
}

func (m memoryAppointments) filter(keep func(AppointmentModel) bool, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var matched []AppointmentModel
	for _, model := range m.s.appointments {
		if keep(model) {
			matched = append(matched, model)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	pageRows := paginate(matched, page, limit)
	out := make([]*appointmentDomain.Appointment, len(pageRows))
	for i := range pageRows {
		ap, err := toDomainAppointment(&pageRows[i])
		if err != nil {
			return nil, 0, err
		}
		out[i] = ap
	}
	return out, int64(len(matched)), nil
}

func (m memoryAppointments) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, model := range m.s.appointments {
		counts[model.Status]++
	}
	return counts, nil
}

func (m memoryAppointments) Save(_ context.Context, ap *appointmentDomain.Appointment, created *history.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.appointments[ap.ID()]; exists {
		return fmt.Errorf("failed to save appointment: %s already exists", ap.ID())
	}
	row, err := m.s.checkHistory(created)
	if err != nil {
		return err
	}

	m.s.appointments[ap.ID()] = *toAppointmentModel(ap)
	m.s.appendHistory(row)
	return nil
}

func (m memoryAppointments) ApplyTransition(_ context.Context, ap *appointmentDomain.Appointment, entry *history.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.appointments[ap.ID()]
	if !ok || current.Version != ap.Version()-1 {
		return domain.NewConcurrencyError("appointment was modified by another transaction")
	}
	row, err := m.s.checkHistory(entry)
	if err != nil {
		return err
	}

	current.Status = string(ap.Status())
	current.Version = ap.Version()
	current.UpdatedAt = ap.UpdatedAt()
	m.s.appointments[ap.ID()] = current
	m.s.appendHistory(row)
	return nil
}
