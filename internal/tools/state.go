// Package tools connects to MCP tool servers and runs the model's
// tool-calling loop over them.
package tools

import "time"

// Status is the connection status of one MCP server.
type Status string

const (
	// Connecting indicates a connection attempt is in progress.
	Connecting Status = "connecting"

	// Connected indicates the server is connected and its tools are
	// available.
	Connected Status = "connected"

	// Failed indicates the last connection attempt or call failed.
	Failed Status = "failed"
)

// State tracks one MCP server connection.
type State struct {
	// Name is the unique identifier for this MCP server.
	Name string

	// Status is the current connection status.
	Status Status

	// LastError is the last error encountered, if any.
	LastError error

	// LastAttempt is the timestamp of the last connection attempt or call.
	LastAttempt time.Time

	// SuccessCount is the number of successful operations.
	SuccessCount int

	// FailureCount is the number of failed operations.
	FailureCount int
}
