package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geoserve/confgen/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Generator     GeneratorConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// GeneratorConfig holds the generation directories and task settings
type GeneratorConfig struct {
	// InputDir holds one subdirectory per tenant with its tenantConfig file
	InputDir string
	// OutputDir receives the published per-tenant output directories
	OutputDir string
	// SchemaDir holds the per-service JSON schemas; empty disables
	// schema validation
	SchemaDir string
	// TaskRetention bounds how long finished tasks stay queryable
	TaskRetention time.Duration
	// DefaultTenant is used when a request names no tenant
	DefaultTenant string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CONFGEN_HOST", "0.0.0.0"),
			Port:            getEnv("CONFGEN_PORT", "9090"),
			ReadTimeout:     getEnvDuration("CONFGEN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CONFGEN_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("CONFGEN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CONFGEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Generator: GeneratorConfig{
			InputDir:      getEnv("CONFGEN_INPUT_DIR", "/srv/confgen/config-in"),
			OutputDir:     getEnv("CONFGEN_OUTPUT_DIR", "/srv/confgen/config"),
			SchemaDir:     getEnv("CONFGEN_SCHEMA_DIR", ""),
			TaskRetention: getEnvDuration("CONFGEN_TASK_RETENTION", time.Hour),
			DefaultTenant: getEnv("CONFGEN_DEFAULT_TENANT", "default"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("CONFGEN_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CONFGEN_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Generator.InputDir == "" {
		return fmt.Errorf("input dir is required")
	}
	if c.Generator.OutputDir == "" {
		return fmt.Errorf("output dir is required")
	}
	if c.Generator.InputDir == c.Generator.OutputDir {
		return fmt.Errorf("input dir and output dir must be different")
	}
	if c.Generator.TaskRetention <= 0 {
		return fmt.Errorf("task retention must be positive")
	}
	return nil
}

// Addr returns the host:port the server listens on
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
