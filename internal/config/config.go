// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SignalThresholdDBM is the default mean signal strength (dBm) two
	// players must meet or exceed for a tag to land. Overridable per room.
	SignalThresholdDBM float64 `koanf:"signal_threshold_dbm"`

	// TagCooldownMS is the default minimum wait between tag attempts.
	TagCooldownMS int `koanf:"tag_cooldown_ms"`

	// TagImmunityMS is the default protection window after being tagged.
	TagImmunityMS int `koanf:"tag_immunity_ms"`

	// ReferencePowerDBM calibrates the path-loss model: expected reading
	// at one unit of distance.
	ReferencePowerDBM float64 `koanf:"reference_power_dbm"`

	// PathLossExponent calibrates environment attenuation (2.0 = free space).
	PathLossExponent float64 `koanf:"path_loss_exponent"`

	// RoomCodeLength sets the length of generated room codes.
	RoomCodeLength int `koanf:"room_code_length"`

	// RoomCodeRetries bounds collision-retry attempts during code generation.
	RoomCodeRetries int `koanf:"room_code_retries"`

	// EventLogSize bounds the per-room recent tag event log.
	EventLogSize int `koanf:"event_log_size"`

	// MaxRecentEvents caps GET recent-events ?limit.
	MaxRecentEvents int `koanf:"max_recent_events"`

	// TelemetryQueueSize bounds the in-memory telemetry queue.
	TelemetryQueueSize int `koanf:"telemetry_queue_size"`

	// WorkerCount sets the number of telemetry workers.
	WorkerCount int `koanf:"worker_count"`

	// SubscriberBuffer sets the per-subscriber snapshot channel depth.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// SweepIntervalMS controls how often the inactivity sweeper runs.
	SweepIntervalMS int `koanf:"sweep_interval_ms"`

	// IdleTimeoutMS is the inactivity window after which a silent player
	// is marked offline and detached from its room.
	IdleTimeoutMS int `koanf:"idle_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		SignalThresholdDBM: -65,
		TagCooldownMS:      3000,
		TagImmunityMS:      5000,
		ReferencePowerDBM:  -59,
		PathLossExponent:   2.0,
		RoomCodeLength:     6,
		RoomCodeRetries:    16,
		EventLogSize:       64,
		MaxRecentEvents:    100,
		TelemetryQueueSize: 100_000,
		WorkerCount:        runtime.NumCPU() * 4,
		SubscriberBuffer:   16,
		SweepIntervalMS:    30_000,
		IdleTimeoutMS:      120_000,
	}
}

// TagCooldown returns the cooldown as a duration.
func (c *Config) TagCooldown() time.Duration {
	return time.Duration(c.TagCooldownMS) * time.Millisecond
}

// TagImmunity returns the immunity window as a duration.
func (c *Config) TagImmunity() time.Duration {
	return time.Duration(c.TagImmunityMS) * time.Millisecond
}

// SweepInterval returns the sweeper cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// IdleTimeout returns the inactivity window as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}
