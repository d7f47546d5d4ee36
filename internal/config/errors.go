package config

import "errors"

// Sentinels for the two ways configuration can fail, so callers can classify
// with errors.Is without matching message text.
var (
	// ErrInvalidConfig marks a configuration that parsed but failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLoadConfig marks a failure reading or parsing a configuration source.
	ErrLoadConfig = errors.New("loading configuration failed")
)
