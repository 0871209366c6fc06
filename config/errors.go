package config

import "errors"

// ErrInvalidConfig is returned when a configuration value is malformed or
// out of range.
var ErrInvalidConfig = errors.New("invalid configuration")
