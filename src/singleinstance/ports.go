package singleinstance

import (
	"os"
	"strconv"
)

const (
	DefaultPort = 49560
	PortEnvVar  = "SINGLEINSTANCE_PORT"
)

// getPort returns the configured loopback port from SINGLEINSTANCE_PORT.
// Falls back to the default when unset/invalid, and clamps to [1024, 65535].
func getPort() int {
	port := DefaultPort
	if v := os.Getenv(PortEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}
	if port < 1024 {
		port = 1024
	}
	if port > 65535 {
		port = 65535
	}
	return port
}

// Port exposes the effective port for logging.
func Port() int { return getPort() }
