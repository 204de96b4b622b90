package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Reference     string     `gorm:"uniqueIndex;not null;size:20"`
	PatientID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	HospitalID    *uuid.UUID `gorm:"type:uuid;index"`
	TreatmentID   *uuid.UUID `gorm:"type:uuid"`
	PackageID     *uuid.UUID `gorm:"type:uuid"`
	CoordinatorID *uuid.UUID `gorm:"type:uuid;index"`
	Status        string     `gorm:"not null;size:40;index"`
	Notes         string     `gorm:"size:1000"`
	Version       int64      `gorm:"not null"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db      *gorm.DB
	history *GormHistoryRepository
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB, historyRepo *GormHistoryRepository) *GormBookingRepository {
	return &GormBookingRepository{db: db, history: historyRepo}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByReference retrieves a booking by its reference.
func (r *GormBookingRepository) FindByReference(ctx context.Context, reference string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", reference)
		}
		return nil, fmt.Errorf("failed to find booking by reference: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByPatientID retrieves bookings for a specific patient with pagination.
func (r *GormBookingRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("patient_id = ?", patientID)
	}, page, limit)
}

// ListAll retrieves bookings with pagination, optionally filtered by status (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, status bookingDomain.BookingStatus, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, statusScope(string(status)), page, limit)
}

func (r *GormBookingRepository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking and its creation entry in one transaction.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking, created *history.Entry) error {
	model := toBookingModel(bk)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		return r.history.Record(tx, created)
	})
}

// ApplyTransition writes the new status guarded by the previous version and
// appends entry in the same transaction. Either both rows change or neither.
func (r *GormBookingRepository) ApplyTransition(ctx context.Context, bk *bookingDomain.Booking, entry *history.Entry) error {
	expectedVersion := bk.Version() - 1
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&BookingModel{}).
			Where("id = ? AND version = ?", bk.ID(), expectedVersion).
			Updates(map[string]interface{}{
				"status":     string(bk.Status()),
				"version":    bk.Version(),
				"updated_at": bk.UpdatedAt(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update booking status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConcurrencyError("booking was modified by another transaction")
		}
		return r.history.Record(tx, entry)
	})
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:            bk.ID(),
		Reference:     bk.Reference(),
		PatientID:     bk.PatientID(),
		HospitalID:    bk.HospitalID(),
		TreatmentID:   bk.TreatmentID(),
		PackageID:     bk.PackageID(),
		CoordinatorID: bk.CoordinatorID(),
		Status:        string(bk.Status()),
		Notes:         bk.Notes(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("booking %s has corrupt status: %w", m.ID, err)
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.Reference,
		m.PatientID,
		m.HospitalID,
		m.TreatmentID,
		m.PackageID,
		m.CoordinatorID,
		status,
		m.Notes,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	), nil
}
