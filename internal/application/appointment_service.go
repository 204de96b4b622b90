package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// CreateAppointmentRequest holds the data needed to request a consultation.
type CreateAppointmentRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id" binding:"required"`
	BookingID   *uuid.UUID `json:"booking_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       string     `json:"notes" binding:"max=1000"`
}

// AppointmentDTO is the response representation of an appointment.
type AppointmentDTO struct {
	ID          uuid.UUID  `json:"id"`
	Reference   string     `json:"reference"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	Status      string     `json:"status"`
	AllowedNext []string   `json:"allowed_next_statuses"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AppointmentService orchestrates appointment use cases.
type AppointmentService struct {
	repo        appointmentDomain.AppointmentRepository
	bookings    bookingDomain.BookingRepository
	transitions *Transitioner
	logger      *zap.Logger
}

// NewAppointmentService creates a new AppointmentService.
func NewAppointmentService(
	repo appointmentDomain.AppointmentRepository,
	bookings bookingDomain.BookingRepository,
	transitions *Transitioner,
	logger *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		bookings:    bookings,
		transitions: transitions,
		logger:      logger,
	}
}

func (s *AppointmentService) machine() machine[*appointmentDomain.Appointment] {
	return machine[*appointmentDomain.Appointment]{
		entityType: lifecycle.EntityAppointment,
		parse: func(status string) error {
			_, err := appointmentDomain.ParseAppointmentStatus(status)
			return err
		},
		load:   s.repo.FindByID,
		status: func(ap *appointmentDomain.Appointment) string { return string(ap.Status()) },
		transition: func(ap *appointmentDomain.Appointment, to string, at time.Time) error {
			return ap.TransitionTo(appointmentDomain.AppointmentStatus(to), at)
		},
		version: func(ap *appointmentDomain.Appointment) int64 { return ap.Version() },
		apply:   s.repo.ApplyTransition,
		notice: func(ap *appointmentDomain.Appointment) TransitionNotice {
			return TransitionNotice{Reference: ap.Reference(), PatientID: ap.PatientID()}
		},
	}
}

// CreateAppointment requests a consultation. A linked booking must exist and
// belong to the same patient.
func (s *AppointmentService) CreateAppointment(ctx context.Context, actor lifecycle.Actor, req CreateAppointmentRequest) (*AppointmentDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	if req.BookingID != nil && *req.BookingID != uuid.Nil {
		bk, err := s.bookings.FindByID(ctx, *req.BookingID)
		if err != nil {
			return nil, err
		}
		if bk.PatientID() != req.PatientID {
			return nil, domain.NewValidationError("booking belongs to a different patient")
		}
	}

	now := s.transitions.now()
	ap, err := appointmentDomain.NewAppointment(req.PatientID, req.DoctorID, req.BookingID, req.ScheduledAt, req.Notes, now)
	if err != nil {
		return nil, err
	}

	created, err := history.NewEntry(lifecycle.EntityAppointment, ap.ID(), "", string(ap.Status()),
		actor, "appointment requested", ap.Version(), true, nil, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, ap, created); err != nil {
		return nil, fmt.Errorf("failed to save appointment: %w", err)
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", ap.ID().String()),
		zap.String("reference", ap.Reference()),
		zap.String("doctor_id", ap.DoctorID().String()),
	)

	notice := TransitionNotice{Reference: ap.Reference(), PatientID: ap.PatientID()}
	notice.fill(created)
	s.transitions.notify(ctx, notice)

	result := toAppointmentDTO(ap)
	return &result, nil
}

// RequestAppointmentTransition moves an appointment to req.Status.
func (s *AppointmentService) RequestAppointmentTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return runTransition(ctx, s.transitions, s.machine(), req)
}

// GetAppointment retrieves a single appointment by ID.
func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error) {
	ap, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toAppointmentDTO(ap)
	return &result, nil
}

// GetAppointmentByReference retrieves an appointment by its AP- reference.
func (s *AppointmentService) GetAppointmentByReference(ctx context.Context, reference string) (*AppointmentDTO, error) {
	ap, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	result := toAppointmentDTO(ap)
	return &result, nil
}

// GetPatientAppointments pages through a patient's appointments.
func (s *AppointmentService) GetPatientAppointments(ctx context.Context, patientID uuid.UUID, page, limit int) (*domain.PaginatedResult[AppointmentDTO], error) {
	appointments, total, err := s.repo.FindByPatientID(ctx, patientID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toAppointmentDTOs(appointments), total, page, limit)
	return &result, nil
}

// GetDoctorAppointments pages through a doctor's appointments.
func (s *AppointmentService) GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, page, limit int) (*domain.PaginatedResult[AppointmentDTO], error) {
	appointments, total, err := s.repo.FindByDoctorID(ctx, doctorID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toAppointmentDTOs(appointments), total, page, limit)
	return &result, nil
}

// AllowedTransitions returns the statuses the appointment may move to next.
func (s *AppointmentService) AllowedTransitions(ctx context.Context, id uuid.UUID) (*AllowedTransitionsDTO, error) {
	ap, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AllowedTransitionsDTO{
		EntityType: string(lifecycle.EntityAppointment),
		EntityID:   ap.ID().String(),
		Status:     string(ap.Status()),
		Allowed:    appointmentStatusNames(ap.Status().AllowedNext()),
		Terminal:   ap.Status().IsTerminal(),
	}, nil
}

// ListAllAppointments returns a paginated list of all appointments (admin).
func (s *AppointmentService) ListAllAppointments(ctx context.Context, status string, page, limit int) ([]AppointmentDTO, int64, error) {
	var filter appointmentDomain.AppointmentStatus
	if status != "" {
		parsed, err := appointmentDomain.ParseAppointmentStatus(status)
		if err != nil {
			return nil, 0, err
		}
		filter = parsed
	}

	appointments, total, err := s.repo.ListAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return toAppointmentDTOs(appointments), total, nil
}

// GetAppointmentStats returns appointment counts by status (admin).
func (s *AppointmentService) GetAppointmentStats(ctx context.Context) (*StatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment stats: %w", err)
	}
	return toStatsDTO(counts), nil
}

func toAppointmentDTO(ap *appointmentDomain.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:          ap.ID(),
		Reference:   ap.Reference(),
		PatientID:   ap.PatientID(),
		DoctorID:    ap.DoctorID(),
		BookingID:   ap.BookingID(),
		Status:      string(ap.Status()),
		AllowedNext: appointmentStatusNames(ap.Status().AllowedNext()),
		ScheduledAt: ap.ScheduledAt(),
		Notes:       ap.Notes(),
		Version:     ap.Version(),
		CreatedAt:   ap.CreatedAt(),
		UpdatedAt:   ap.UpdatedAt(),
	}
}

func toAppointmentDTOs(appointments []*appointmentDomain.Appointment) []AppointmentDTO {
	dtos := make([]AppointmentDTO, len(appointments))
	for i, ap := range appointments {
		dtos[i] = toAppointmentDTO(ap)
	}
	return dtos
}

func appointmentStatusNames(statuses []appointmentDomain.AppointmentStatus) []string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return names
}
