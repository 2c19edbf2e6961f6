package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/opp-checkout/internal/context"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Breaker   BreakerConfig

	// EnvFileLoaded is true when a .env file was found and applied.
	EnvFileLoaded bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PublicURL    string // absolute base used for checkout callback URLs
	LockTTL      time.Duration
}

// GatewayConfig holds the payment method settings for the OPP gateway.
type GatewayConfig struct {
	UserID          string
	Password        string
	EntityID        string
	TransactionType string
	Debug           bool
	Brands          string
	HTTPTimeout     time.Duration
}

// LoggingConfig holds logger and audit log settings.
type LoggingConfig struct {
	ServiceName string
	Env         string
	AuditLogDir string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN selects the
// in-memory order repository.
type DatabaseConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration. An empty Addr selects the
// in-process order lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig toggles tracing.
type TelemetryConfig struct {
	TracingEnabled bool
}

// BreakerConfig holds circuit breaker settings for gateway hosts.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Load reads an optional .env file (or the given files) and then the
// environment.
func Load(envFiles ...string) *Config {
	loaded := godotenv.Load(envFiles...) == nil

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			PublicURL:    strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
			LockTTL:      getDurationEnv("ORDER_LOCK_TTL", time.Minute),
		},
		Gateway: GatewayConfig{
			UserID:          getEnv("OPP_USER_ID", ""),
			Password:        getEnv("OPP_PASSWORD", ""),
			EntityID:        getEnv("OPP_ENTITY_ID", ""),
			TransactionType: getEnv("OPP_TRANS_TYPE", context.TransactionCapture),
			Debug:           getBoolEnv("OPP_DEBUG", false),
			Brands:          getEnv("OPP_BRANDS", "VISA MASTER"),
			HTTPTimeout:     getDurationEnv("OPP_HTTP_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			ServiceName: getEnv("SERVICE_NAME", "opp-checkout"),
			Env:         getEnv("ENV", "development"),
			AuditLogDir: getEnv("AUDIT_LOG_DIR", "logs"),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: getBoolEnv("TRACING_ENABLED", false),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 3),
			ResetTimeout:     getDurationEnv("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		EnvFileLoaded: loaded,
	}
}

// Credentials returns the immutable gateway credentials for one checkout.
func (c *Config) Credentials() context.GatewayCredentials {
	return context.GatewayCredentials{
		UserID:          c.Gateway.UserID,
		Password:        c.Gateway.Password,
		EntityID:        c.Gateway.EntityID,
		TransactionType: c.Gateway.TransactionType,
		Debug:           c.Gateway.Debug,
	}
}

// Validate reports missing gateway settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.UserID == "" {
		errs = append(errs, errors.New("OPP_USER_ID is required"))
	}
	if c.Gateway.Password == "" {
		errs = append(errs, errors.New("OPP_PASSWORD is required"))
	}
	if c.Gateway.EntityID == "" {
		errs = append(errs, errors.New("OPP_ENTITY_ID is required"))
	}
	switch c.Gateway.TransactionType {
	case context.TransactionCapture, context.TransactionAuthorize:
	default:
		errs = append(errs, errors.New("OPP_TRANS_TYPE must be \"capture\" or \"auth\""))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
