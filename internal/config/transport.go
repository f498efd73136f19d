// Package config provides configuration types for the sandbox SDK.
package config

import (
	"context"

	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

// Transport defines one live streaming connection to a sandbox dataplane.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is wsconn.Conn which speaks WebSocket.
// A Transport is owned by a single goroutine for sending; Recv may be called
// from another goroutine concurrently with the Send methods.
type Transport interface {
	// SendExecute asks the server to start a command.
	SendExecute(ctx context.Context, opts *RunOptions) error

	// SendReconnect resumes an existing command from the given offsets.
	// It must be the first frame sent on a freshly dialed transport.
	SendReconnect(ctx context.Context, commandID string, stdoutOffset, stderrOffset int64) error

	// SendKill asks the server to kill the running command.
	SendKill(ctx context.Context) error

	// SendInput writes data to the command's stdin.
	SendInput(ctx context.Context, data string) error

	// Recv returns the next event.
	// It returns io.EOF when the server ended the stream gracefully,
	// *errors.ServerReloadError when the server is going away for a reload,
	// and *errors.ConnectionError for any other loss of the connection.
	Recv(ctx context.Context) (message.Event, error)

	// Close releases the connection. It's safe to call Close multiple times.
	Close() error
}

// Dialer opens transports to a dataplane.
type Dialer interface {
	Dial(ctx context.Context, baseURL, authToken string) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, baseURL, authToken string) (Transport, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, baseURL, authToken string) (Transport, error) {
	return f(ctx, baseURL, authToken)
}
