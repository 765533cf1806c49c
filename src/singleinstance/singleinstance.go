package singleinstance

// This file defines the API for single-instance ownership and activation.

import (
	"context"
	"errors"
)

// ErrNoResident means no running instance answered.
var ErrNoResident = errors.New("no resident instance")

// Command is the first line a client sends.
type Command string

const (
	CommandShow Command = "SHOW"
)

// Server owns the TCP endpoint and answers activation requests.
type Server interface {
	// Start binds the configured loopback port. It fails when another
	// instance owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess acknowledges the request.
	RespondSuccess() error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request represents a single client request.
type Request struct {
	Command Command
}

// Client asks a resident instance to act on behalf of a second launch.
type Client interface {
	// Activate asks the resident to show its window. It returns
	// ErrNoResident when nothing answers on the port.
	Activate(ctx context.Context) error
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
