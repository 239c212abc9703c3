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

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PROXTAG_CONFIG is set
//  3. env (prefix PROXTAG_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PROXTAG_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PROXTAG_ADDR, PROXTAG_TAG_COOLDOWN_MS, ...
	// Map env keys like PROXTAG_WORKER_COUNT -> worker_count (flat keys).
	envProvider := env.Provider("PROXTAG_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "proxtag_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the core cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TagCooldownMS < 0:
		return fmt.Errorf("%w: tag_cooldown_ms must not be negative", ErrInvalidConfig)
	case c.TagImmunityMS < 0:
		return fmt.Errorf("%w: tag_immunity_ms must not be negative", ErrInvalidConfig)
	case c.PathLossExponent <= 0:
		return fmt.Errorf("%w: path_loss_exponent must be positive", ErrInvalidConfig)
	case c.RoomCodeLength < 4:
		return fmt.Errorf("%w: room_code_length must be at least 4", ErrInvalidConfig)
	case c.RoomCodeRetries < 1:
		return fmt.Errorf("%w: room_code_retries must be at least 1", ErrInvalidConfig)
	case c.EventLogSize < 1:
		return fmt.Errorf("%w: event_log_size must be at least 1", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	}
	return nil
}
