// Package config provides configuration management for the EPCIS messaging hub
// processor. Values are loaded from environment variables with sensible
// defaults and validated before the process starts consuming messages.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Ops server port for health checks (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Message Queue:
//   - RABBITMQ_URL: RabbitMQ connection URL (required)
//   - MASTERDATA_QUEUE: Masterdata queue name (default: masterdata)
//   - EVENT_QUEUE: Event queue name (default: events)
//   - DEAD_LETTER_EXCHANGE: Dead-letter exchange for rejected messages (default: epcis.deadletter)
//
// Collaborators:
//   - RULES_SERVICE_URL: Base URL of the routing-rules registry (required)
//   - ALERT_SERVICE_URL: Alert sink URL; alerts are log-only when unset
//   - REGISTRY_TIMEOUT: Rules registry request timeout (default: 10s)
//   - DISPATCH_TIMEOUT: Destination adapter request timeout (default: 30s)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./epcis_hub.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL settings
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration values for the hub processor.
// Load() populates it from the environment; Validate() must pass before use.
type Config struct {
	// Application settings
	Port     string `validate:"required,numeric"`
	LogLevel string

	// Message queue
	RabbitMQURL        string `validate:"required,uri"`
	MasterdataQueue    string `validate:"required"`
	EventQueue         string `validate:"required"`
	DeadLetterExchange string `validate:"required"`

	// External collaborators
	RulesServiceURL string `validate:"required,url"`
	AlertServiceURL string `validate:"omitempty,url"`
	RegistryTimeout time.Duration
	DispatchTimeout time.Duration

	// Database configuration
	DatabaseType     string `validate:"oneof=sqlite postgres postgresql"`
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults for anything unset. Call Validate()
// on the result before using it.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		MasterdataQueue:    getEnv("MASTERDATA_QUEUE", "masterdata"),
		EventQueue:         getEnv("EVENT_QUEUE", "events"),
		DeadLetterExchange: getEnv("DEAD_LETTER_EXCHANGE", "epcis.deadletter"),

		RulesServiceURL: getEnv("RULES_SERVICE_URL", ""),
		AlertServiceURL: getEnv("ALERT_SERVICE_URL", ""),
		RegistryTimeout: getDurationEnv("REGISTRY_TIMEOUT", 10*time.Second),
		DispatchTimeout: getDurationEnv("DISPATCH_TIMEOUT", 30*time.Second),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./epcis_hub.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "epcis_hub"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, field formats, and cross-field
// dependencies. The processor must not start on an invalid configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return fmt.Errorf("invalid configuration: field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("REGISTRY_TIMEOUT must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT must be positive")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	return nil
}

// PostgresDSN builds the PostgreSQL connection string from the configured fields.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}
