package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/internal/config"
	appointmentDomain "github.com/medtrip/service-lifecycle/internal/domain/appointment"
	bookingDomain "github.com/medtrip/service-lifecycle/internal/domain/booking"
	"github.com/medtrip/service-lifecycle/internal/domain/history"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	lifecycleEvents "github.com/medtrip/service-lifecycle/internal/events"
	"github.com/medtrip/service-lifecycle/internal/handler"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/internal/repository"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/database"
	"github.com/medtrip/service-lifecycle/pkg/health"
	"github.com/medtrip/service-lifecycle/pkg/kafka"
	"github.com/medtrip/service-lifecycle/pkg/lock"
	"github.com/medtrip/service-lifecycle/pkg/logger"
	"github.com/medtrip/service-lifecycle/pkg/middleware"
	"github.com/medtrip/service-lifecycle/pkg/mq"
	"github.com/medtrip/service-lifecycle/pkg/tracing"
)

const serviceName = "service-lifecycle"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("lock", cfg.LockDriver),
		zap.String("notifications", cfg.NotificationDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.TracingEnabled, serviceName, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		log.Fatal("failed to init tracer", zap.Error(err))
	}

	healthHandler := health.NewHandler(serviceName)

	// Storage
	var (
		bookingRepo     bookingDomain.BookingRepository
		appointmentRepo appointmentDomain.AppointmentRepository
		historyReader   history.Reader
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		bookingRepo, appointmentRepo, historyReader = store.Bookings(), store.Appointments(), store
		log.Warn("using in-memory store, data is lost on restart")
	default:
		dbConfig := database.PostgresConfig{
			Host:     cfg.DBConfig.Host,
			Port:     cfg.DBConfig.Port,
			User:     cfg.DBConfig.User,
			Password: cfg.DBConfig.Password,
			DBName:   cfg.DBConfig.DBName,
			SSLMode:  cfg.DBConfig.SSLMode,
		}
		db, err := database.Connect(dbConfig, log)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}

		// Run database migrations
		if cfg.AppEnv == "development" {
			if err := db.AutoMigrate(&repository.BookingModel{}, &repository.AppointmentModel{}, &repository.StatusHistoryModel{}); err != nil {
				log.Fatal("failed to run auto-migration", zap.Error(err))
			}
			log.Info("database migration completed (dev auto-migrate)")
		} else {
			if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
				log.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		historyRepo := repository.NewGormHistoryRepository(db)
		bookingRepo = repository.NewGormBookingRepository(db, historyRepo)
		appointmentRepo = repository.NewGormAppointmentRepository(db, historyRepo)
		historyReader = historyRepo
		healthHandler.WithCheck("postgres", health.DatabaseCheck(db))
	}

	// Per-entity lock
	var locker lock.Locker
	switch cfg.LockDriver {
	case config.DriverMemory:
		locker = lock.NewMemoryLocker(cfg.LockTimeout)
		log.Warn("using in-process lock, run a single instance only")
	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Username: cfg.RedisConfig.Username,
			Password: cfg.RedisConfig.Password,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockTimeout, log)
		healthHandler.WithCheck("redis", health.RedisCheck(redisClient))
	}

	// Notifications
	var notifier application.Notifier
	switch cfg.NotificationDriver {
	case config.DriverRabbitMQ:
		publisher, err := mq.NewPublisher(cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Exchange)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		notifier = application.NewRabbitNotifier(publisher)
	case config.DriverLog:
		notifier = application.NewLogNotifier(log)
	default:
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		notifier = application.NewKafkaNotifier(producer)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycleMetrics := metrics.New(registry)

	// Application services
	transitioner := application.NewTransitioner(locker, lifecycle.SystemClock{}, notifier, lifecycleMetrics, log, cfg.NotifyTimeout)
	bookingService := application.NewBookingService(bookingRepo, transitioner, log)
	appointmentService := application.NewAppointmentService(appointmentRepo, bookingRepo, transitioner, log)
	historyService := application.NewHistoryService(historyReader, bookingRepo, appointmentRepo)

	// Payment events drive confirmed -> payment_completed
	if len(cfg.KafkaConfig.Brokers) > 0 {
		groupID := cfg.KafkaConfig.GroupPrefix + "lifecycle-service"
		paymentConsumer := lifecycleEvents.NewPaymentEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			bookingService,
			application.DefaultRetryPolicy(cfg.MaxRetries),
			log,
		)
		defer func() { _ = paymentConsumer.Close() }()

		go func() {
			log.Info("starting payment event consumer")
			if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment event consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(lifecycleMetrics.GinMiddleware())

	// Register health check and metrics routes
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", lifecycleMetrics.Handler())

	// Register routes
	handler.NewBookingHandler(bookingService, historyService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAppointmentHandler(appointmentService, historyService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminHandler(bookingService, appointmentService, historyService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
