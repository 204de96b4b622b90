package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	HospitalID    *uuid.UUID `json:"hospital_id"`
	TreatmentID   *uuid.UUID `json:"treatment_id"`
	PackageID     *uuid.UUID `json:"package_id"`
	CoordinatorID *uuid.UUID `json:"coordinator_id"`
	Notes         string     `json:"notes" binding:"max=1000"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID  `json:"id"`
	Reference     string     `json:"reference"`
	PatientID     uuid.UUID  `json:"patient_id"`
	HospitalID    *uuid.UUID `json:"hospital_id,omitempty"`
	TreatmentID   *uuid.UUID `json:"treatment_id,omitempty"`
	PackageID     *uuid.UUID `json:"package_id,omitempty"`
	CoordinatorID *uuid.UUID `json:"coordinator_id,omitempty"`
	Status        string     `json:"status"`
	AllowedNext   []string   `json:"allowed_next_statuses"`
	Closed        bool       `json:"closed"`
	Notes         string     `json:"notes,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AllowedTransitionsDTO lists the statuses an entity may move to next.
type AllowedTransitionsDTO struct {
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	Status     string   `json:"status"`
	Allowed    []string `json:"allowed_next_statuses"`
	Terminal   bool     `json:"terminal"`
}

// StatsDTO holds status counts for the admin dashboard.
type StatsDTO struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo        bookingDomain.BookingRepository
	transitions *Transitioner
	logger      *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	transitions *Transitioner,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:        repo,
		transitions: transitions,
		logger:      logger,
	}
}

func (s *BookingService) machine() machine[*bookingDomain.Booking] {
	return machine[*bookingDomain.Booking]{
		entityType: lifecycle.EntityBooking,
		parse: func(status string) error {
			_, err := bookingDomain.ParseBookingStatus(status)
			return err
		},
		load:   s.repo.FindByID,
		status: func(bk *bookingDomain.Booking) string { return string(bk.Status()) },
		transition: func(bk *bookingDomain.Booking, to string, at time.Time) error {
			return bk.TransitionTo(bookingDomain.BookingStatus(to), at)
		},
		version: func(bk *bookingDomain.Booking) int64 { return bk.Version() },
		apply:   s.repo.ApplyTransition,
		notice: func(bk *bookingDomain.Booking) TransitionNotice {
			return TransitionNotice{Reference: bk.Reference(), PatientID: bk.PatientID()}
		},
	}
}

// CreateBooking creates a booking in status requested and records the
// creation entry.
func (s *BookingService) CreateBooking(ctx context.Context, actor lifecycle.Actor, req CreateBookingRequest) (*BookingDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	now := s.transitions.now()
	bk, err := bookingDomain.NewBooking(
		req.PatientID,
		req.HospitalID,
		req.TreatmentID,
		req.PackageID,
		req.CoordinatorID,
		req.Notes,
		now,
	)
	if err != nil {
		return nil, err
	}

	created, err := history.NewEntry(lifecycle.EntityBooking, bk.ID(), "", string(bk.Status()),
		actor, "booking requested", bk.Version(), true, nil, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk, created); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("reference", bk.Reference()),
		zap.String("patient_id", bk.PatientID().String()),
	)

	notice := TransitionNotice{Reference: bk.Reference(), PatientID: bk.PatientID()}
	notice.fill(created)
	s.transitions.notify(ctx, notice)

	result := toBookingDTO(bk)
	return &result, nil
}

// RequestBookingTransition moves a booking to req.Status.
func (s *BookingService) RequestBookingTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return runTransition(ctx, s.transitions, s.machine(), req)
}

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByReference retrieves a booking by its MT- reference.
func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*BookingDTO, error) {
	bk, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetPatientBookings retrieves paginated bookings for a specific patient.
func (s *BookingService) GetPatientBookings(ctx context.Context, patientID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByPatientID(ctx, patientID, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// AllowedTransitions returns the statuses the booking may move to next.
func (s *BookingService) AllowedTransitions(ctx context.Context, bookingID uuid.UUID) (*AllowedTransitionsDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &AllowedTransitionsDTO{
		EntityType: string(lifecycle.EntityBooking),
		EntityID:   bk.ID().String(),
		Status:     string(bk.Status()),
		Allowed:    bookingStatusNames(bk.Status().AllowedNext()),
		Terminal:   bk.Status().IsTerminal(),
	}, nil
}

// --- Admin methods ---

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, status string, page, limit int) ([]BookingDTO, int64, error) {
	var filter bookingDomain.BookingStatus
	if status != "" {
		parsed, err := bookingDomain.ParseBookingStatus(status)
		if err != nil {
			return nil, 0, err
		}
		filter = parsed
	}

	bookings, total, err := s.repo.ListAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos, total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*StatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}
	return toStatsDTO(counts), nil
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		Reference:     bk.Reference(),
		PatientID:     bk.PatientID(),
		HospitalID:    bk.HospitalID(),
		TreatmentID:   bk.TreatmentID(),
		PackageID:     bk.PackageID(),
		CoordinatorID: bk.CoordinatorID(),
		Status:        string(bk.Status()),
		AllowedNext:   bookingStatusNames(bk.Status().AllowedNext()),
		Closed:        bk.Status().IsClosed(),
		Notes:         bk.Notes(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func bookingStatusNames(statuses []bookingDomain.BookingStatus) []string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return names
}

func toStatsDTO(counts map[string]int64) *StatsDTO {
	var total int64
	for _, c := range counts {
		total += c
	}
	return &StatsDTO{Total: total, ByStatus: counts}
}
