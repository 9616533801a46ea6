// Package config defines service configuration and its layered loading.
//
// Precedence (low -> high): defaults, YAML file named by MEBEATME_CONFIG,
// MEBEATME_* environment variables.
package config

import (
	"fmt"
	"strings"
)

// Formula names accepted by the formula setting.
const (
	FormulaCubic         = "cubic"
	FormulaLegacyClamped = "legacy_clamped"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BestScoreFloor is the pre-existing best that the ledger never drops below.
	BestScoreFloor float64 `koanf:"best_score_floor"`

	// Formula picks the scoring law; cubic unless the legacy variant is requested.
	Formula string `koanf:"formula"`

	ImportQueueSize  int `koanf:"import_queue_size"`
	ImportWorkers    int `koanf:"import_workers"`
	ImportDedupeSize int `koanf:"import_dedupe_size"`

	// CORSAllowedOrigins lists origins allowed by the CORS middleware. "*" allows all.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Domain and Version are reported by GET /health.
	Domain  string `koanf:"domain"`
	Version string `koanf:"version"`

	// WatchConfig reloads the config file on change when a file is in use.
	WatchConfig bool `koanf:"watch_config"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8080",
		BestScoreFloor:     131.5,
		Formula:            FormulaCubic,
		ImportQueueSize:    1024,
		ImportWorkers:      4,
		ImportDedupeSize:   10_000,
		CORSAllowedOrigins: []string{"*"},
		Domain:             "mebeatme.ready2race.run",
		Version:            "1.0.0",
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BestScoreFloor < 0:
		return fmt.Errorf("%w: best_score_floor must be >= 0, got %v", ErrInvalidConfig, c.BestScoreFloor)
	case c.Formula != FormulaCubic && c.Formula != FormulaLegacyClamped:
		return fmt.Errorf("%w: unknown formula %q", ErrInvalidConfig, c.Formula)
	case c.ImportQueueSize < 1:
		return fmt.Errorf("%w: import_queue_size must be positive", ErrInvalidConfig)
	case c.ImportWorkers < 1:
		return fmt.Errorf("%w: import_workers must be positive", ErrInvalidConfig)
	case c.ImportDedupeSize < 1:
		return fmt.Errorf("%w: import_dedupe_size must be positive", ErrInvalidConfig)
	}
	return nil
}
