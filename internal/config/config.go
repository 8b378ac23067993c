package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Redis configuration (task queue transport)
	Redis RedisConfig

	// Task queue configuration
	Queue QueueConfig

	// Notification configuration
	Notifications NotificationConfig

	// Reconciliation policy configuration
	Reconcile ReconcileConfig

	// Upload storage configuration
	Uploads UploadConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// RedisConfig holds the Redis connection used by the queue publisher
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig holds task queue configuration
type QueueConfig struct {
	Mode            string // "redis" publishes to Redis streams, "log" only logs tasks (development)
	TopicPrefix     string
	RelaySchedule   string // cron expression of the deferred task relay
	RelayBatchSize  int
	MaxRelayAttempt int
}

// NotificationConfig holds notification-related configuration
type NotificationConfig struct {
	RecipientsTTL     time.Duration // how long the recipients setting is cached
	DefaultReminder   time.Duration // delay of the default reminder notification
	FallbackAddress   string        // used when no recipients are configured
	AmendmentTemplate string
	SubmitTemplate    string
	ConfirmedTemplate string
}

// ReconcileConfig holds reconciliation policies
type ReconcileConfig struct {
	RejectCascade string // "none" or "clear_dependents"
}

// UploadConfig holds the local upload directory
type UploadConfig struct {
	Dir string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
	EnableAuditLog   bool
}

// Queue modes
const (
	QueueModeRedis = "redis"
	QueueModeLog   = "log"
)

// Reject cascade policies
const (
	RejectCascadeNone            = "none"
	RejectCascadeClearDependents = "clear_dependents"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "staycare-staff-auth"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Mode:            getEnv("QUEUE_MODE", "redis"),
			TopicPrefix:     getEnv("QUEUE_TOPIC_PREFIX", "booking-tasks"),
			RelaySchedule:   getEnv("QUEUE_RELAY_SCHEDULE", "0 * * * * *"),
			RelayBatchSize:  getEnvAsInt("QUEUE_RELAY_BATCH_SIZE", 100),
			MaxRelayAttempt: getEnvAsInt("QUEUE_RELAY_MAX_ATTEMPTS", 10),
		},
		Notifications: NotificationConfig{
			RecipientsTTL:     time.Duration(getEnvAsInt("NOTIFICATION_RECIPIENTS_TTL", 300)) * time.Second,
			DefaultReminder:   time.Duration(getEnvAsInt("NOTIFICATION_DEFAULT_REMINDER_HOURS", 72)) * time.Hour,
			FallbackAddress:   getEnv("NOTIFICATION_FALLBACK_ADDRESS", ""),
			AmendmentTemplate: getEnv("EMAIL_TEMPLATE_AMENDMENT", "booking-amended"),
			SubmitTemplate:    getEnv("EMAIL_TEMPLATE_SUBMIT", "booking-submitted"),
			ConfirmedTemplate: getEnv("EMAIL_TEMPLATE_CONFIRMED", "booking-confirmed"),
		},
		Reconcile: ReconcileConfig{
			RejectCascade: getEnv("RECONCILE_REJECT_CASCADE", RejectCascadeNone),
		},
		Uploads: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "./uploads"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Queue.Mode {
	case QueueModeRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when QUEUE_MODE is redis")
		}
	case QueueModeLog:
	default:
		return fmt.Errorf("invalid queue mode: %s (must be 'redis' or 'log')", c.Queue.Mode)
	}

	switch c.Reconcile.RejectCascade {
	case RejectCascadeNone, RejectCascadeClearDependents:
	default:
		return fmt.Errorf("invalid reject cascade policy: %s (must be '%s' or '%s')",
			c.Reconcile.RejectCascade, RejectCascadeNone, RejectCascadeClearDependents)
	}

	if c.Notifications.RecipientsTTL <= 0 {
		return fmt.Errorf("NOTIFICATION_RECIPIENTS_TTL must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
