package config

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultAmfPort is the NGAP SCTP port of an AMF
	DefaultAmfPort = 38412

	// DefaultGnbIDLength is the gNB identifier length in bits
	DefaultGnbIDLength = 32

	// DefaultPauseTimeout bounds how long a command waits for tasks to quiesce
	DefaultPauseTimeout = 3000 * time.Millisecond

	// DefaultRoutingIndicator is used when the subscriber has none configured
	DefaultRoutingIndicator = "0000"
)

// GenerateInstanceID generates a new UUID identifying one node process.
func GenerateInstanceID() string {
	return uuid.New().String()
}
