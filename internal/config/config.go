// Package config holds the immutable configuration record the extraction
// engine is constructed from. Population from flags, environment variables,
// or a TUI preset picker is the job of the command-line entry point; this
// package only defines the shape and a dev-convenience loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Preset names a bundle of extractor kinds.
type Preset string

const (
	PresetQuick   Preset = "quick"
	PresetFull    Preset = "full"
	PresetContent Preset = "content"
	PresetJourney Preset = "journey"
)

// Config is the immutable record of endpoints, credentials, concurrency
// knobs, and output root the Runner is constructed from.
type Config struct {
	// Endpoints
	RestBase string `env:"SFMC_REST_BASE"`
	SoapBase string `env:"SFMC_SOAP_BASE"`
	AuthBase string `env:"SFMC_AUTH_BASE"`

	// OAuth2 client-credentials + business unit id (MID)
	ClientID     string `env:"SFMC_CLIENT_ID"`
	ClientSecret string `env:"SFMC_CLIENT_SECRET"`
	AccountID    string `env:"SFMC_ACCOUNT_ID"`

	// Output
	OutputRoot string `env:"SFMC_OUTPUT_ROOT,default=."`

	// Selection
	Kinds  []string `env:"SFMC_KINDS"`
	Preset Preset   `env:"SFMC_PRESET,default=full"`

	// Behavior
	IncludeDetails bool `env:"SFMC_INCLUDE_DETAILS,default=true"`
	IncludeContent bool `env:"SFMC_INCLUDE_CONTENT,default=false"`
	MaxConcurrency int  `env:"SFMC_MAX_CONCURRENCY,default=4"`
	PageSize       int  `env:"SFMC_PAGE_SIZE,default=50"`

	// Timeouts
	RequestTimeout    time.Duration `env:"SFMC_REQUEST_TIMEOUT,default=60s"`
	ExtractorTimeout  time.Duration `env:"SFMC_EXTRACTOR_TIMEOUT,default=30m"`
	MaxDetailParallel int           `env:"SFMC_MAX_DETAIL_CONCURRENCY,default=8"`

	// Logging
	LogLevel  string `env:"SFMC_LOG_LEVEL,default=info"`
	LogFormat string `env:"SFMC_LOG_FORMAT,default=json"`

	// Optional integrations (all off by default)
	RedisAddr      string `env:"SFMC_REDIS_ADDR"`
	HistoryDSN     string `env:"SFMC_HISTORY_DSN"`
	DiagnosticsAddr string `env:"SFMC_DIAGNOSTICS_ADDR"`
	MetricsEnabled bool   `env:"SFMC_METRICS_ENABLED,default=false"`
}

// LoadFromEnv is a development/test convenience: it loads a .env file, if
// present, then decodes SFMC_* environment variables into a Config. Production
// wiring is owned by the CLI collaborator and may or may not use this helper.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if kinds := os.Getenv("SFMC_KINDS"); kinds != "" {
		cfg.Kinds = splitAndTrim(kinds)
	}
	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the fields required to run any extraction are present.
func (c Config) Validate() error {
	var missing []string
	if c.RestBase == "" {
		missing = append(missing, "RestBase")
	}
	if c.SoapBase == "" {
		missing = append(missing, "SoapBase")
	}
	if c.AuthBase == "" {
		missing = append(missing, "AuthBase")
	}
	if c.ClientID == "" {
		missing = append(missing, "ClientID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "ClientSecret")
	}
	if c.AccountID == "" {
		missing = append(missing, "AccountID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	if c.MaxConcurrency <= 0 {
		return errors.New("config: MaxConcurrency must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("config: PageSize must be positive")
	}
	return nil
}

// ResolveKinds expands a preset into a concrete kind list when Kinds is empty.
func (c Config) ResolveKinds() []string {
	if len(c.Kinds) > 0 {
		out := make([]string, len(c.Kinds))
		copy(out, c.Kinds)
		return out
	}
	switch c.Preset {
	case PresetQuick:
		return []string{"automation", "data_extension", "query"}
	case PresetContent:
		return []string{"asset", "email", "list", "folder"}
	case PresetJourney:
		return []string{"journey", "event_definition", "triggered_send", "email", "list"}
	default: // full
		return []string{
			"automation", "query", "script", "import", "data_extract",
			"file_transfer", "filter", "data_extension", "email", "journey",
			"event_definition", "triggered_send", "list", "asset", "folder",
			"sender_profile", "delivery_profile", "send_classification",
		}
	}
}
