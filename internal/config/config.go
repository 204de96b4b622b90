package config

import (
	"fmt"
	"time"

	"github.com/medtrip/service-lifecycle/pkg/config"
)

// Driver names accepted by STORE_DRIVER, LOCK_DRIVER and NOTIFICATION_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
	DriverLog      = "log"
)

// ServiceConfig holds all configuration for the lifecycle service.
type ServiceConfig struct {
	Port               string
	AppEnv             string
	StoreDriver        string
	DBConfig           config.DatabaseConfig
	JWTConfig          config.JWTConfig
	KafkaConfig        config.KafkaConfig
	RedisConfig        config.RedisConfig
	RabbitMQConfig     config.RabbitMQConfig
	LockDriver         string
	LockTimeout        time.Duration
	LockTTL            time.Duration
	NotificationDriver string
	NotifyTimeout      time.Duration
	TracingEnabled     bool
	OTLPEndpoint       string
	MaxRetries         uint64
}

// Load reads configuration from LIFECYCLE_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("LIFECYCLE")
	if err != nil {
		return nil, err
	}

	v.SetDefault("DB_NAME", "medtrip_lifecycle")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("LOCK_DRIVER", DriverRedis)
	v.SetDefault("NOTIFICATION_DRIVER", DriverKafka)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("TRANSITION_MAX_RETRIES", 3)

	cfg := &ServiceConfig{
		Port:               config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:             config.GetAppEnv(v),
		StoreDriver:        v.GetString("STORE_DRIVER"),
		DBConfig:           config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:          config.LoadJWTConfig(v),
		KafkaConfig:        config.LoadKafkaConfig(v),
		RedisConfig:        config.LoadRedisConfig(v),
		RabbitMQConfig:     config.LoadRabbitMQConfig(v, "medtrip.lifecycle"),
		LockDriver:         v.GetString("LOCK_DRIVER"),
		LockTimeout:        config.GetDuration(v, "LOCK_TIMEOUT", 5*time.Second),
		LockTTL:            config.GetDuration(v, "LOCK_TTL", 10*time.Second),
		NotificationDriver: v.GetString("NOTIFICATION_DRIVER"),
		NotifyTimeout:      config.GetDuration(v, "NOTIFICATION_TIMEOUT", 3*time.Second),
		TracingEnabled:     v.GetBool("TRACING_ENABLED"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MaxRetries:         v.GetUint64("TRANSITION_MAX_RETRIES"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServiceConfig) validate() error {
	if c.JWTConfig.Secret == "" {
		return fmt.Errorf("LIFECYCLE_JWT_SECRET is required")
	}
	if err := oneOf("STORE_DRIVER", c.StoreDriver, DriverPostgres, DriverMemory); err != nil {
		return err
	}
	if err := oneOf("LOCK_DRIVER", c.LockDriver, DriverRedis, DriverMemory); err != nil {
		return err
	}
	if err := oneOf("NOTIFICATION_DRIVER", c.NotificationDriver, DriverKafka, DriverRabbitMQ, DriverLog); err != nil {
		return err
	}
	if c.LockTTL <= c.LockTimeout {
		return fmt.Errorf("LOCK_TTL (%s) must exceed LOCK_TIMEOUT (%s)", c.LockTTL, c.LockTimeout)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, want one of %v", key, value, allowed)
}
