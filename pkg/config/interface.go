package config

import "time"

// Environment reads settings from environment variables
type Environment interface {
	GetString(key string) string
	GetStringWithDefault(key string, defaultValue string) string
	GetBoolWithDefault(key string, defaultValue bool) bool
	GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration
	Has(key string) bool
}

// Error types for config operations
var (
	ErrInvalidValue  = Error{"invalid value"}
	ErrInvalidConfig = Error{"invalid configuration"}
)

// Error represents a configuration error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}
