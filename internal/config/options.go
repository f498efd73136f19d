package config

import (
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the control-plane endpoint used when none is configured.
	DefaultEndpoint = "https://api.smith.langchain.com"

	// DefaultUserAgent is sent on control-plane and dataplane requests.
	DefaultUserAgent = "sandbox-sdk-go"

	// DefaultOutputBufferSize is the capacity of a handle's output queue.
	// It absorbs brief consumer stalls before backpressure reaches the network.
	DefaultOutputBufferSize = 256

	// DefaultControlBufferSize is the capacity of a handle's control queue.
	DefaultControlBufferSize = 16

	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultRunTimeout is the server-side timeout of a command.
	DefaultRunTimeout = 60 * time.Second

	// DefaultShell runs commands when no shell is configured.
	DefaultShell = "/bin/bash"
)

// Options configures the behavior of the sandbox client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Endpoint is the control-plane base URL.
	Endpoint string

	// APIKey authenticates control-plane and dataplane requests.
	APIKey string

	// HTTPClient performs control-plane requests.
	// If nil, a client with a 30s timeout is used.
	HTTPClient *http.Client

	// UserAgent is sent with every request.
	UserAgent string

	// Reconnect bounds the automatic reconnection of streaming executions.
	Reconnect ReconnectPolicy

	// Dialer opens dataplane transports.
	// If nil, the WebSocket transport is used.
	Dialer Dialer

	// OutputBufferSize is the capacity of each handle's output queue.
	OutputBufferSize int

	// ControlBufferSize is the capacity of each handle's control queue.
	ControlBufferSize int

	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration
}

// WithDefaults returns a copy of o with every unset field filled in.
func (o *Options) WithDefaults() *Options {
	out := &Options{}
	if o != nil {
		*out = *o
	}

	if out.Logger == nil {
		out.Logger = NopLogger()
	}

	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}

	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if out.UserAgent == "" {
		out.UserAgent = DefaultUserAgent
	}

	if out.Reconnect.IsZero() {
		out.Reconnect = DefaultReconnectPolicy()
	}

	if out.OutputBufferSize <= 0 {
		out.OutputBufferSize = DefaultOutputBufferSize
	}

	if out.ControlBufferSize <= 0 {
		out.ControlBufferSize = DefaultControlBufferSize
	}

	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = DefaultHandshakeTimeout
	}

	return out
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RunOptions is the per-execution configuration of a command.
type RunOptions struct {
	// Command is the shell command line to run.
	Command string

	// Timeout is the server-side execution limit, sent in whole seconds.
	Timeout time.Duration

	// Shell interprets Command.
	Shell string

	// Cwd is the working directory. Empty means the server default.
	Cwd string

	// Env adds environment variables to the command.
	Env map[string]string
}

// NewRunOptions returns options for command with the default timeout and shell.
func NewRunOptions(command string) *RunOptions {
	return &RunOptions{
		Command: command,
		Timeout: DefaultRunTimeout,
		Shell:   DefaultShell,
	}
}

// Clone returns a deep copy so an execution cannot observe later caller changes.
func (r *RunOptions) Clone() *RunOptions {
	out := *r
	if r.Env != nil {
		out.Env = maps.Clone(r.Env)
	}

	return &out
}

// TimeoutSeconds returns Timeout rounded up to whole seconds.
func (r *RunOptions) TimeoutSeconds() int64 {
	if r.Timeout <= 0 {
		return 0
	}

	return int64((r.Timeout + time.Second - 1) / time.Second)
}
