package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// AppointmentModel is the GORM model for the appointments table.
type AppointmentModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Reference   string     `gorm:"uniqueIndex;not null;size:20"`
	PatientID   uuid.UUID  `gorm:"type:uuid;index;not null"`
	DoctorID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	BookingID   *uuid.UUID `gorm:"type:uuid;index"`
	Status      string     `gorm:"not null;size:40;index"`
	ScheduledAt *time.Time `gorm:""`
	Notes       string     `gorm:"size:1000"`
	Version     int64      `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (AppointmentModel) TableName() string {
	return "appointments"
}

// GormAppointmentRepository is the GORM-based implementation of AppointmentRepository.
type GormAppointmentRepository struct {
	db      *gorm.DB
	history *GormHistoryRepository
}

// NewGormAppointmentRepository creates a new GormAppointmentRepository.
func NewGormAppointmentRepository(db *gorm.DB, historyRepo *GormHistoryRepository) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db, history: historyRepo}
}

func (r *GormAppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*appointmentDomain.Appointment, error) {
	return r.findOne(ctx, "id = ?", id, id.String())
}

func (r *GormAppointmentRepository) FindByReference(ctx context.Context, reference string) (*appointmentDomain.Appointment, error) {
	return r.findOne(ctx, "reference = ?", reference, reference)
}

func (r *GormAppointmentRepository) findOne(ctx context.Context, query string, arg interface{}, label string) (*appointmentDomain.Appointment, error) {
	var model AppointmentModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Appointment", label)
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return toDomainAppointment(&model)
}

func (r *GormAppointmentRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("patient_id = ?", patientID)
	}, page, limit)
}

func (r *GormAppointmentRepository) FindByDoctorID(ctx context.Context, doctorID uuid.UUID, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("doctor_id = ?", doctorID)
	}, page, limit)
}

func (r *GormAppointmentRepository) ListAll(ctx context.Context, status appointmentDomain.AppointmentStatus, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	return r.list(ctx, statusScope(string(status)), page, limit)
}

func (r *GormAppointmentRepository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB, page, limit int) ([]*appointmentDomain.Appointment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&AppointmentModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	var models []AppointmentModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}

	appointments := make([]*appointmentDomain.Appointment, len(models))
	for i := range models {
		ap, err := toDomainAppointment(&models[i])
		if err != nil {
			return nil, 0, err
		}
		appointments[i] = ap
	}
	return appointments, total, nil
}

func (r *GormAppointmentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&AppointmentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count appointments by status: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new appointment and its creation entry in one transaction.
func (r *GormAppointmentRepository) Save(ctx context.Context, ap *appointmentDomain.Appointment, created *history.Entry) error {
	model := toAppointmentModel(ap)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save appointment: %w", err)
		}
		return r.history.Record(tx, created)
	})
}

// ApplyTransition writes the new status guarded by the previous version and
// appends entry in the same transaction.
func (r *GormAppointmentRepository) ApplyTransition(ctx context.Context, ap *appointmentDomain.Appointment, entry *history.Entry) error {
	expectedVersion := ap.Version() - 1
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AppointmentModel{}).
			Where("id = ? AND version = ?", ap.ID(), expectedVersion).
			Updates(map[string]interface{}{
				"status":     string(ap.Status()),
				"version":    ap.Version(),
				"updated_at": ap.UpdatedAt(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update appointment status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConcurrencyError("appointment was modified by another transaction")
		}
		return r.history.Record(tx, entry)
	})
}

func toAppointmentModel(ap *appointmentDomain.Appointment) *AppointmentModel {
	return &AppointmentModel{
		ID:          ap.ID(),
		Reference:   ap.Reference(),
		PatientID:   ap.PatientID(),
		DoctorID:    ap.DoctorID(),
		BookingID:   ap.BookingID(),
		Status:      string(ap.Status()),
		ScheduledAt: ap.ScheduledAt(),
		Notes:       ap.Notes(),
		Version:     ap.Version(),
		CreatedAt:   ap.CreatedAt(),
		UpdatedAt:   ap.UpdatedAt(),
	}
}

func toDomainAppointment(m *AppointmentModel) (*appointmentDomain.Appointment, error) {
	status, err := appointmentDomain.ParseAppointmentStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has corrupt status: %w", m.ID, err)
	}
	return appointmentDomain.ReconstructAppointment(
		m.ID,
		m.Reference,
		m.PatientID,
		m.DoctorID,
		m.BookingID,
		status,
		m.ScheduledAt,
		m.Notes,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	), nil
}
