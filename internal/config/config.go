// Package config loads server configuration from EVREG_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "EVREG_"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamo"
)

type Config struct {
	Store       string `env:"STORE" envDefault:"memory"` // memory | postgres | dynamo
	DatabaseURL string `env:"DATABASE_URL"`              // required for postgres
	SeedFile    string `env:"SEED_FILE"`                 // JSON array of events loaded at startup (optional)

	DynamoTable    string `env:"DYNAMO_TABLE"` // required for dynamo
	DynamoRegion   string `env:"DYNAMO_REGION" envDefault:"us-east-1"`
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT"` // custom endpoint for DynamoDB Local

	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr       string        `env:"GRPC_ADDR" envDefault:":9090"`
	NATSURL        string        `env:"NATS_URL"` // optional, empty = no events
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// Registration policy
	CASAttempts        int  `env:"CAS_ATTEMPTS" envDefault:"1"`
	EmailCaseSensitive bool `env:"EMAIL_CASE_SENSITIVE" envDefault:"true"`
	ListOverfetch      int  `env:"LIST_OVERFETCH" envDefault:"3"`

	// Reconciliation settings
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"0"` // 0 = disabled
	ReportS3Bucket    string        `env:"REPORT_S3_BUCKET"`                  // enables S3 when set
	ReportS3Key       string        `env:"REPORT_S3_KEY" envDefault:"evreg/reconcile/"`
	ReportS3Region    string        `env:"REPORT_S3_REGION" envDefault:"us-east-1"`
	ReportS3Endpoint  string        `env:"REPORT_S3_ENDPOINT"` // custom endpoint for MinIO
	ReportFile        string        `env:"REPORT_FILE"`        // local report path (optional)

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text | json
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%sDATABASE_URL is required for the postgres store", EnvPrefix)
		}
	case StoreDynamo:
		if c.DynamoTable == "" {
			return fmt.Errorf("%sDYNAMO_TABLE is required for the dynamo store", EnvPrefix)
		}
	default:
		return fmt.Errorf("%sSTORE: unknown store %q (must be memory, postgres or dynamo)", EnvPrefix, c.Store)
	}
	if c.CASAttempts < 1 {
		return fmt.Errorf("%sCAS_ATTEMPTS must be at least 1, got %d", EnvPrefix, c.CASAttempts)
	}
	if c.ListOverfetch < 1 {
		return fmt.Errorf("%sLIST_OVERFETCH must be at least 1, got %d", EnvPrefix, c.ListOverfetch)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%sREQUEST_TIMEOUT must be positive", EnvPrefix)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("%sRECONCILE_INTERVAL must not be negative", EnvPrefix)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%sLOG_FORMAT: unknown format %q (must be text or json)", EnvPrefix, c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", EnvPrefix, err)
	}
	return level, nil
}
