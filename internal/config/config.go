package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// DefaultAPIURL is used when AIRPUCK_API_URL is unset.
const DefaultAPIURL = "https://api.airtable.com/v0/"

type Config struct {
	BaseID       string        // AIRPUCK_BASE_ID
	TableName    string        // AIRPUCK_TABLE
	APIKey       string        // AIRPUCK_API_KEY
	APIURL       string        // AIRPUCK_API_URL (default "https://api.airtable.com/v0/")
	ReadyTimeout time.Duration // AIRPUCK_READY_TIMEOUT (default 20s)
	RateLimit    float64       // AIRPUCK_RATE_LIMIT (requests/s, default 5; 0 = unlimited)
	NATSURL      string        // AIRPUCK_NATS_URL (optional, empty = no events)
	LogLevel     slog.Level    // AIRPUCK_LOG_LEVEL (default "info")

	// Export settings
	ExportInterval   time.Duration // AIRPUCK_EXPORT_INTERVAL (default 5m; 0 = run once)
	ExportFile       string        // AIRPUCK_EXPORT_FILE (enables local file export when set)
	ExportS3Bucket   string        // AIRPUCK_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // AIRPUCK_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // AIRPUCK_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // AIRPUCK_EXPORT_S3_KEY (default "airpuck/backup.jsonl")
	ExportGitRepo    string        // AIRPUCK_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // AIRPUCK_EXPORT_GIT_FILE (default "table.jsonl")
	ExportGitBranch  string        // AIRPUCK_EXPORT_GIT_BRANCH (default "main")

	// Sandbox server settings
	SandboxAddr        string // AIRPUCK_SANDBOX_ADDR (default ":8089")
	SandboxDatabaseURL string // AIRPUCK_SANDBOX_DATABASE_URL (optional, empty = in-memory store)
	SandboxToken       string // AIRPUCK_SANDBOX_TOKEN (optional, empty = auth disabled)
}

func Load() (*Config, error) {
	c := &Config{
		BaseID:             os.Getenv("AIRPUCK_BASE_ID"),
		TableName:          os.Getenv("AIRPUCK_TABLE"),
		APIKey:             os.Getenv("AIRPUCK_API_KEY"),
		APIURL:             envOrDefault("AIRPUCK_API_URL", DefaultAPIURL),
		NATSURL:            os.Getenv("AIRPUCK_NATS_URL"),
		ExportFile:         os.Getenv("AIRPUCK_EXPORT_FILE"),
		ExportS3Bucket:     os.Getenv("AIRPUCK_EXPORT_S3_BUCKET"),
		ExportS3Endpoint:   os.Getenv("AIRPUCK_EXPORT_S3_ENDPOINT"),
		ExportS3Region:     envOrDefault("AIRPUCK_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:        envOrDefault("AIRPUCK_EXPORT_S3_KEY", "airpuck/backup.jsonl"),
		ExportGitRepo:      os.Getenv("AIRPUCK_EXPORT_GIT_REPO"),
		ExportGitFile:      envOrDefault("AIRPUCK_EXPORT_GIT_FILE", "table.jsonl"),
		ExportGitBranch:    envOrDefault("AIRPUCK_EXPORT_GIT_BRANCH", "main"),
		SandboxAddr:        envOrDefault("AIRPUCK_SANDBOX_ADDR", ":8089"),
		SandboxDatabaseURL: os.Getenv("AIRPUCK_SANDBOX_DATABASE_URL"),
		SandboxToken:       os.Getenv("AIRPUCK_SANDBOX_TOKEN"),
	}

	var err error
	if c.ReadyTimeout, err = envDuration("AIRPUCK_READY_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = envDuration("AIRPUCK_EXPORT_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	rateStr := envOrDefault("AIRPUCK_RATE_LIMIT", "5")
	c.RateLimit, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("AIRPUCK_RATE_LIMIT: %w", err)
	}
	if c.RateLimit < 0 {
		return nil, fmt.Errorf("AIRPUCK_RATE_LIMIT: must not be negative, got %v", c.RateLimit)
	}

	if c.LogLevel, err = ParseLogLevel(envOrDefault("AIRPUCK_LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("AIRPUCK_LOG_LEVEL: %w", err)
	}

	return c, nil
}

// Table returns the table identity and credential.
func (c *Config) Table() model.TableConfig {
	return model.TableConfig{Name: c.TableName, BaseID: c.BaseID, APIKey: c.APIKey}
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

// ParseLogLevel accepts debug, info, warn (or warning) and error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func envDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", key, d)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
