package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all daemon configuration loaded from environment variables.
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Maintenance MaintenanceConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// ServerConfig holds the operational HTTP endpoint settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MaintenanceConfig holds partition and index upkeep settings.
type MaintenanceConfig struct {
	// Schedule is a cron expression for the maintenance sweep.
	Schedule string
	// PartitionLeadMonths is how far past the current month partitions are
	// created ahead of need.
	PartitionLeadMonths int
	// HotKeys are row_image keys that get expression indexes on every
	// partition.
	HotKeys []string
	// IndexTimeZone is the zone for the calendar-date index expression.
	IndexTimeZone string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("GRIOT_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("GRIOT_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("GRIOT_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("GRIOT_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	leadMonths, err := getEnvInt("GRIOT_PARTITION_LEAD_MONTHS", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("GRIOT_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("GRIOT_DB_USER", "griot"),
			Password: getEnv("GRIOT_DB_PASSWORD", ""),
			DBName:   getEnv("GRIOT_DB_NAME", "griot_dev"),
			SSLMode:  getEnv("GRIOT_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Server: ServerConfig{
			Addr:         getEnv("GRIOT_SERVER_ADDR", "127.0.0.1:9544"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Maintenance: MaintenanceConfig{
			Schedule:            getEnv("GRIOT_MAINTENANCE_SCHEDULE", "17 2 * * *"),
			PartitionLeadMonths: leadMonths,
			HotKeys:             getEnvList("GRIOT_HOT_KEYS", nil),
			IndexTimeZone:       getEnv("GRIOT_INDEX_TIMEZONE", "UTC"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("GRIOT_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("GRIOT_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("GRIOT_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("GRIOT_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Maintenance.PartitionLeadMonths < 0 {
		return fmt.Errorf("GRIOT_PARTITION_LEAD_MONTHS must be >= 0, got %d", c.Maintenance.PartitionLeadMonths)
	}
	if _, err := cron.ParseStandard(c.Maintenance.Schedule); err != nil {
		return fmt.Errorf("GRIOT_MAINTENANCE_SCHEDULE %q: %w", c.Maintenance.Schedule, err)
	}
	if _, err := time.LoadLocation(c.Maintenance.IndexTimeZone); err != nil {
		return fmt.Errorf("GRIOT_INDEX_TIMEZONE %q: %w", c.Maintenance.IndexTimeZone, err)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
