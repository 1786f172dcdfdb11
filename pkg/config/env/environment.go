package env

import (
	"os"
	"strconv"
	"time"
)

// Environment implements config.Environment over a variable lookup
type Environment struct {
	lookup func(string) (string, bool)
}

// New creates an environment reading the process environment
func New() *Environment {
	return &Environment{lookup: os.LookupEnv}
}

// FromMap creates an environment reading vars
func FromMap(vars map[string]string) *Environment {
	return &Environment{lookup: func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}}
}

// GetString returns a variable as a string
func (e *Environment) GetString(key string) string {
	v, _ := e.lookup(key)
	return v
}

// GetStringWithDefault returns a variable, or defaultValue when it is empty
func (e *Environment) GetStringWithDefault(key string, defaultValue string) string {
	if v := e.GetString(key); v != "" {
		return v
	}
	return defaultValue
}

// GetBoolWithDefault returns a variable as a boolean with a default value
func (e *Environment) GetBoolWithDefault(key string, defaultValue bool) bool {
	val, err := strconv.ParseBool(e.GetString(key))
	if err != nil {
		return defaultValue
	}
	return val
}

// GetDurationWithDefault returns a variable as a duration with a default
// value. A bare number is read as milliseconds.
func (e *Environment) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	str := e.GetString(key)
	if str == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(str); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	val, err := time.ParseDuration(str)
	if err != nil {
		return defaultValue
	}
	return val
}

// Has returns true if a variable is set
func (e *Environment) Has(key string) bool {
	_, exists := e.lookup(key)
	return exists
}
