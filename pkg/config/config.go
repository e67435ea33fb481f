// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/printforge/preflight/pkg/security"
	"github.com/printforge/preflight/pkg/tools"
	"github.com/printforge/preflight/pkg/worker"
)

// Config holds all daemon configuration.
type Config struct {
	Database DatabaseConfig
	Files    FilesConfig
	Jobs     JobsConfig
	Sweep    SweepConfig
	LogLevel string
}

// DatabaseConfig selects and tunes the job store.
type DatabaseConfig struct {
	// DSN is either a postgres URL or a path to a SQLite file.
	DSN string
}

// FilesConfig covers the upload and scratch filesystem.
type FilesConfig struct {
	TempRoot       string
	MaxUploadBytes int64
}

// JobsConfig tunes job processing.
type JobsConfig struct {
	TTL          time.Duration
	PollInterval time.Duration
	Concurrency  int
	ToolTimeout  time.Duration
	ProofDPI     int
}

// SweepConfig tunes the TTL sweep. CronExpr, when set, overrides Interval.
type SweepConfig struct {
	Interval time.Duration
	CronExpr string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getEnv("PREFLIGHT_DB", "preflight.db"),
		},
		Files: FilesConfig{
			TempRoot:       getEnv("PREFLIGHT_TEMP_ROOT", os.TempDir()),
			MaxUploadBytes: getEnvAsInt64("PREFLIGHT_MAX_UPLOAD_BYTES", security.DefaultMaxUploadBytes),
		},
		Jobs: JobsConfig{
			TTL:          getEnvAsDuration("PREFLIGHT_JOB_TTL", 72*time.Hour),
			PollInterval: getEnvAsDuration("PREFLIGHT_POLL_INTERVAL", worker.DefaultPollInterval),
			Concurrency:  security.ClampConcurrency(getEnvAsInt("PREFLIGHT_CONCURRENCY", 1)),
			ToolTimeout:  getEnvAsDuration("PREFLIGHT_TOOL_TIMEOUT", tools.DefaultTimeout),
			ProofDPI:     getEnvAsInt("PREFLIGHT_PROOF_DPI", 150),
		},
		Sweep: SweepConfig{
			Interval: getEnvAsDuration("PREFLIGHT_SWEEP_INTERVAL", 30*time.Minute),
			CronExpr: getEnv("PREFLIGHT_SWEEP_CRON", ""),
		},
		LogLevel: getEnv("PREFLIGHT_LOG_LEVEL", "info"),
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("config: PREFLIGHT_DB is required")
	}
	if c.Files.TempRoot == "" {
		return errors.New("config: PREFLIGHT_TEMP_ROOT is required")
	}
	if c.Jobs.TTL <= 0 {
		return errors.New("config: PREFLIGHT_JOB_TTL must be positive")
	}
	if c.Files.MaxUploadBytes <= 0 {
		return errors.New("config: PREFLIGHT_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
