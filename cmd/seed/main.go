package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/application"
	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/internal/repository"
	"github.com/medtrip/service-lifecycle/pkg/config"
	"github.com/medtrip/service-lifecycle/pkg/database"
	"github.com/medtrip/service-lifecycle/pkg/lock"
	"github.com/medtrip/service-lifecycle/pkg/logger"
)

// Forward paths used to walk seeded records a random number of steps.
var (
	bookingPath = []bookingDomain.BookingStatus{
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
	appointmentPath = []appointmentDomain.AppointmentStatus{
		appointmentDomain.StatusConfirmed,
		appointmentDomain.StatusAwaitingConsultation,
		appointmentDomain.StatusInProgress,
		appointmentDomain.StatusPrescriptionProvided,
		appointmentDomain.StatusCompleted,
	}
)

func main() {
	bookings := flag.Int("bookings", 50, "number of bookings to create")
	appointments := flag.Int("appointments", 50, "number of appointments to create")
	flag.Parse()

	v, err := config.Load("LIFECYCLE")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	v.SetDefault("DB_NAME", "medtrip_lifecycle")

	log, err := logger.NewNamed(config.GetAppEnv(v), "lifecycle-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dbCfg := config.LoadDatabaseConfig(v, "DB_NAME")
	db, err := database.Connect(database.PostgresConfig{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.DBName,
		SSLMode:  dbCfg.SSLMode,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	historyRepo := repository.NewGormHistoryRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db, historyRepo)
	appointmentRepo := repository.NewGormAppointmentRepository(db, historyRepo)

	transitioner := application.NewTransitioner(
		lock.NewMemoryLocker(5*time.Second),
		lifecycle.SystemClock{},
		application.NewLogNotifier(zap.NewNop()),
		metrics.New(prometheus.NewRegistry()),
		log,
		time.Second,
	)
	bookingService := application.NewBookingService(bookingRepo, transitioner, log)
	appointmentService := application.NewAppointmentService(appointmentRepo, bookingRepo, transitioner, log)

	ctx := context.Background()
	if err := seedBookings(ctx, bookingService, *bookings); err != nil {
		log.Fatal("failed to seed bookings", zap.Error(err))
	}
	if err := seedAppointments(ctx, appointmentService, *appointments); err != nil {
		log.Fatal("failed to seed appointments", zap.Error(err))
	}

	log.Info("seed complete",
		zap.Int("bookings", *bookings),
		zap.Int("appointments", *appointments),
	)
}

func seedBookings(ctx context.Context, svc *application.BookingService, count int) error {
	coordinators := make([]uuid.UUID, 5)
	for i := range coordinators {
		coordinators[i] = uuid.New()
	}

	for i := 0; i < count; i++ {
		coordinatorID := coordinators[gofakeit.Number(0, len(coordinators)-1)]
		hospitalID := uuid.New()
		patientID := uuid.New()

		bk, err := svc.CreateBooking(ctx, lifecycle.Actor{ID: patientID.String(), Role: lifecycle.RolePatient},
			application.CreateBookingRequest{
				PatientID:     patientID,
				HospitalID:    &hospitalID,
				CoordinatorID: &coordinatorID,
				Notes:         gofakeit.Sentence(8),
			})
		if err != nil {
			return err
		}

		coordinator := lifecycle.Actor{ID: coordinatorID.String(), Role: lifecycle.RoleCoordinator}
		if gofakeit.Number(1, 10) == 1 {
			if _, err := svc.RequestBookingTransition(ctx, application.TransitionRequest{
				EntityID: bk.ID, Status: string(bookingDomain.StatusRejected), Actor: coordinator,
				Reason: "treatment not available",
			}); err != nil {
				return err
			}
			continue
		}

		for _, next := range bookingPath[:gofakeit.Number(0, len(bookingPath))] {
			if _, err := svc.RequestBookingTransition(ctx, application.TransitionRequest{
				EntityID: bk.ID, Status: string(next), Actor: coordinator, SuppressNotification: true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedAppointments(ctx context.Context, svc *application.AppointmentService, count int) error {
	for i := 0; i < count; i++ {
		patientID := uuid.New()
		doctorID := uuid.New()
		scheduled := time.Now().UTC().Add(time.Duration(gofakeit.Number(1, 60)) * 24 * time.Hour).Truncate(time.Hour)

		ap, err := svc.CreateAppointment(ctx, lifecycle.Actor{ID: patientID.String(), Role: lifecycle.RolePatient},
			application.CreateAppointmentRequest{
				PatientID:   patientID,
				DoctorID:    doctorID,
				ScheduledAt: &scheduled,
				Notes:       gofakeit.Sentence(6),
			})
		if err != nil {
			return err
		}

		doctor := lifecycle.Actor{ID: doctorID.String(), Role: lifecycle.RoleDoctor}
		for _, next := range appointmentPath[:gofakeit.Number(0, len(appointmentPath))] {
			if _, err := svc.RequestAppointmentTransition(ctx, application.TransitionRequest{
				EntityID: ap.ID, Status: string(next), Actor: doctor, SuppressNotification: true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
