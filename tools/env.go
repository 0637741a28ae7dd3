package tools

import (
	"os"
	"time"
)

// GetenvDefault returns the variable, or defaultValue when it is unset or empty.
func GetenvDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetenvDuration parses the variable as a time.Duration. Unset, empty or
// malformed values yield defaultValue.
func GetenvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
