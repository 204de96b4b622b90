//go:build integration

package main_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	lifecycleEvents "github.com/medtrip/service-lifecycle/internal/events"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/internal/repository"
	"github.com/medtrip/service-lifecycle/pkg/database"
	"github.com/medtrip/service-lifecycle/pkg/events"
	"github.com/medtrip/service-lifecycle/pkg/kafka"
	"github.com/medtrip/service-lifecycle/pkg/lock"
)

// infra is the set of external services one test runs against.
type infra struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Brokers []string
}

// replica is one fully wired lifecycle service. Two replicas built on the
// same infra share Postgres, Redis and Kafka but nothing in process.
type replica struct {
	Bookings     *application.BookingService
	Appointments *application.AppointmentService
	History      *application.HistoryService
	Payments     *lifecycleEvents.PaymentEventConsumer
}

// startPostgres runs a migrated Postgres 16 and returns a gorm handle on it.
func startPostgres(t *testing.T, ctx context.Context) *gorm.DB {
	t.Helper()
	const user, password, name = "lifecycle", "lifecycle", "lifecycle_test"

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(name),
		tcpostgres.WithUsername(user),
		tcpostgres.WithPassword(password),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err, "start postgres")

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host: host, Port: port.Port(),
		User: user, Password: password, DBName: name,
		SSLMode: "disable",
	}
	db, err := database.Connect(cfg, zap.NewNop())
	require.NoError(t, err, "connect postgres")
	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), "migrations", zap.NewNop()))
	return db
}

// startRedis runs Redis 7 for the entity locks.
func startRedis(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()
	rc, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, rc)
	require.NoError(t, err, "start redis")

	uri, err := rc.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

// startKafka runs a single KRaft broker with the lifecycle topics created.
func startKafka(t *testing.T, ctx context.Context) []string {
	t.Helper()
	kc, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	testcontainers.CleanupContainer(t, kc)
	require.NoError(t, err, "start kafka")

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)

	ensureTopics(t, ctx, brokers, events.TopicBookingEvents, events.TopicAppointmentEvents, events.TopicPaymentEvents)
	return brokers
}

func startInfra(t *testing.T) *infra {
	t.Helper()
	ctx := context.Background()
	return &infra{
		DB:      startPostgres(t, ctx),
		Redis:   startRedis(t, ctx),
		Brokers: startKafka(t, ctx),
	}
}

// newReplica wires the service exactly as cmd/server does for the postgres,
// redis and kafka drivers.
func newReplica(t *testing.T, in *infra) *replica {
	t.Helper()
	logger := zaptest.NewLogger(t)

	historyRepo := repository.NewGormHistoryRepository(in.DB)
	bookingRepo := repository.NewGormBookingRepository(in.DB, historyRepo)
	appointmentRepo := repository.NewGormAppointmentRepository(in.DB, historyRepo)

	producer := kafka.NewProducer(in.Brokers, logger)
	t.Cleanup(func() { _ = producer.Close() })

	transitions := application.NewTransitioner(
		lock.NewRedisLocker(in.Redis, 10*time.Second, 5*time.Second, logger),
		lifecycle.SystemClock{},
		application.NewKafkaNotifier(producer),
		metrics.New(prometheus.NewRegistry()),
		logger,
		5*time.Second,
	)
	bookings := application.NewBookingService(bookingRepo, transitions, logger)

	payments := lifecycleEvents.NewPaymentEventConsumer(in.Brokers, "lifecycle-it-"+uuid.NewString()[:8],
		bookings, application.DefaultRetryPolicy(3), logger)
	t.Cleanup(func() { _ = payments.Close() })

	return &replica{
		Bookings:     bookings,
		Appointments: application.NewAppointmentService(appointmentRepo, bookingRepo, transitions, logger),
		History:      application.NewHistoryService(historyRepo, bookingRepo, appointmentRepo),
		Payments:     payments,
	}
}

// publishPayment sends a payment event the way the payment service would.
func publishPayment(t *testing.T, brokers []string, eventType string, data any) {
	t.Helper()
	producer := kafka.NewProducer(brokers, zap.NewNop())
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent("service-payment", eventType, data)
	require.NoError(t, err)
	require.NoError(t, producer.PublishEvent(context.Background(), events.TopicPaymentEvents, ce))
}

// awaitBookingStatus polls the service until the booking reports want.
func awaitBookingStatus(t *testing.T, svc *application.BookingService, id uuid.UUID, want string, within time.Duration) *application.BookingDTO {
	t.Helper()
	var got *application.BookingDTO
	require.Eventuallyf(t, func() bool {
		bk, err := svc.GetBooking(context.Background(), id)
		if err != nil || bk.Status != want {
			return false
		}
		got = bk
		return true
	}, within, 200*time.Millisecond, "booking %s never reached %s", id, want)
	return got
}

// awaitEvent tails partition 0 of topic from the start until match accepts
// an event or within elapses.
func awaitEvent(t *testing.T, brokers []string, topic string, within time.Duration, match func(kafka.CloudEvent) bool) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer func() { _ = reader.Close() }()
	require.NoError(t, reader.SetOffset(kafkago.FirstOffset))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			require.NoErrorf(t, ctx.Err(), "no matching event on %s", topic)
			continue
		}
		if ce, err := kafka.ParseCloudEvent(msg.Value); err == nil && match(ce) {
			return ce
		}
	}
}

// ensureTopics creates single-partition topics through the admin API.
func ensureTopics(t *testing.T, ctx context.Context, brokers []string, topics ...string) {
	t.Helper()
	client := &kafkago.Client{Addr: kafkago.TCP(brokers...), Timeout: 10 * time.Second}

	req := &kafkago.CreateTopicsRequest{}
	for _, topic := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	}
	resp, err := client.CreateTopics(ctx, req)
	require.NoError(t, err, "create topics")
	for topic, terr := range resp.Errors {
		require.NoError(t, terr, "create topic %s", topic)
	}

	require.Eventually(t, func() bool {
		meta, err := client.Metadata(ctx, &kafkago.MetadataRequest{Topics: topics})
		return err == nil && len(meta.Topics) == len(topics)
	}, 10*time.Second, 250*time.Millisecond, fmt.Sprintf("topics %v not visible", topics))
}

// historyRow loads one persisted history entry by sequence.
func historyRow(t *testing.T, db *gorm.DB, entityID uuid.UUID, seq int64) repository.StatusHistoryModel {
	t.Helper()
	var row repository.StatusHistoryModel
	require.NoError(t, db.Where("entity_id = ? AND sequence = ?", entityID, seq).First(&row).Error)
	return row
}
