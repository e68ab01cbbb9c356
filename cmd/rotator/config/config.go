package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/rotation"
	"github.com/onkernel/amirotate/lib/templates"
)

type Config struct {
	KeepAMIs        int
	SourceVersion   string
	ImageOwners     []string
	DryRun          bool
	Parallelism     int
	LogLevel        string
	LogFormat       string
	OtelEndpoint    string
	OtelServiceName string
	OtelLogs        bool
}

// Overrides carries command-line values that take precedence over the
// environment. Nil fields are left alone.
type Overrides struct {
	KeepAMIs      *int
	SourceVersion *string
	DryRun        *bool
	Parallelism   *int
	LogLevel      *string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	keep, err := getEnvInt("KEEP_AMIS", 3)
	if err != nil {
		return nil, err
	}
	parallelism, err := getEnvInt("PARALLELISM", 1)
	if err != nil {
		return nil, err
	}
	dryRun, err := getEnvBool("DRY_RUN", false)
	if err != nil {
		return nil, err
	}
	otelLogs, err := getEnvBool("OTEL_LOGS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KeepAMIs:        keep,
		SourceVersion:   getEnv("SOURCE_VERSION", templates.DefaultVersion),
		ImageOwners:     splitList(getEnv("IMAGE_OWNERS", "")),
		DryRun:          dryRun,
		Parallelism:     parallelism,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", string(logger.FormatJSON)),
		OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelServiceName: getEnv("OTEL_SERVICE_NAME", "amirotate"),
		OtelLogs:        otelLogs,
	}

	return cfg, nil
}

// Apply copies every set override onto the config
func (c *Config) Apply(o Overrides) {
	if o.KeepAMIs != nil {
		c.KeepAMIs = *o.KeepAMIs
	}
	if o.SourceVersion != nil {
		c.SourceVersion = *o.SourceVersion
	}
	if o.DryRun != nil {
		c.DryRun = *o.DryRun
	}
	if o.Parallelism != nil {
		c.Parallelism = *o.Parallelism
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("LOG_FORMAT: %w", err)
	}
	return c.Rotation().Validate()
}

// Rotation returns the rotation manager configuration
func (c *Config) Rotation() rotation.Config {
	return rotation.Config{
		Keep:          c.KeepAMIs,
		SourceVersion: c.SourceVersion,
		DryRun:        c.DryRun,
		Parallelism:   c.Parallelism,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
