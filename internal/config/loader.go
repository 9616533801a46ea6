package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "MEBEATME_"
	envConfig  = envPrefix + "CONFIG"
	listSep    = ","
	keyOrigins = "cors_allowed_origins"
)

// Path returns the config file named by MEBEATME_CONFIG, or "".
func Path() string {
	return os.Getenv(envConfig)
}

// Load builds a Config from defaults, the file named by MEBEATME_CONFIG and env vars.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, Path())
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MEBEATME_BEST_SCORE_FLOOR -> best_score_floor. Underscores are kept so
	// keys stay flat and match the koanf tags.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == strings.ToLower(strings.TrimPrefix(envConfig, envPrefix)) {
			return "", nil
		}
		if key == keyOrigins {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.Formula = strings.ToLower(strings.TrimSpace(cfg.Formula))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, listSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
