package http

import (
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
)

// Connectivity reports whether a broker connection is up.
type Connectivity interface {
	IsConnected() bool
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Driver *usecases.Driver
	// NATS is nil when the position feed is disabled.
	NATS    Connectivity
	Version string
}
