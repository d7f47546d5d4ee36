// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Layer file and env sources on top via Load.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address serving /metrics and /ws.
	Addr string `koanf:"addr"`

	// PollIntervalMS sets the device monitor tick interval.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// QueueSize bounds the routed key event queue feeding the judge.
	QueueSize int `koanf:"queue_size"`

	// RosterPath points at the round roster YAML (phrases, teams, bindings).
	RosterPath string `koanf:"roster_path"`

	// BaseScorePerChar is the score base value per target character.
	BaseScorePerChar float64 `koanf:"base_score_per_char"`

	// SpeedBonusMax caps the completion speed bonus.
	SpeedBonusMax float64 `koanf:"speed_bonus_max"`

	// SpeedBonusDecayPerSec is the linear bonus decay per elapsed second.
	SpeedBonusDecayPerSec float64 `koanf:"speed_bonus_decay_per_sec"`

	// HeuristicEnabled turns on the degraded timing-based device attribution
	// used when true per-device streams are unavailable.
	HeuristicEnabled bool `koanf:"heuristic_enabled"`

	// HeuristicBurstMS and HeuristicIdleMS are the timing windows of the
	// degraded mode. They are policy, tuned empirically, not a contract.
	HeuristicBurstMS int `koanf:"heuristic_burst_ms"`
	HeuristicIdleMS  int `koanf:"heuristic_idle_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		PollIntervalMS:        500,
		QueueSize:             4096,
		RosterPath:            "",
		BaseScorePerChar:      100,
		SpeedBonusMax:         500,
		SpeedBonusDecayPerSec: 10,
		HeuristicEnabled:      false,
		HeuristicBurstMS:      300,
		HeuristicIdleMS:       800,
	}
}
