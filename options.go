package sandboxsdk

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
)

// Options configures a Client. Build it with Option functions.
type Options = config.Options

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Client Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithEndpoint sets the control-plane base URL.
// If not set, SANDBOX_ENDPOINT is used, then DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// WithAPIKey sets the API key for control-plane and dataplane requests.
// If not set, SANDBOX_API_KEY is used.
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithHTTPClient sets the HTTP client used for control-plane requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(o *Options) {
		o.UserAgent = userAgent
	}
}

// ===== Streaming Configuration =====

// WithReconnectPolicy bounds automatic reconnection of streaming executions.
func WithReconnectPolicy(policy ReconnectPolicy) Option {
	return func(o *Options) {
		o.Reconnect = policy
	}
}

// WithDialer replaces the WebSocket transport, for example with a test double.
func WithDialer(dialer Dialer) Option {
	return func(o *Options) {
		o.Dialer = dialer
	}
}

// WithOutputBufferSize sets how many output chunks a handle buffers before
// the stream applies backpressure.
func WithOutputBufferSize(n int) Option {
	return func(o *Options) {
		o.OutputBufferSize = n
	}
}

// WithControlBufferSize sets how many kill and stdin requests a handle
// queues.
func WithControlBufferSize(n int) Option {
	return func(o *Options) {
		o.ControlBufferSize = n
	}
}

// WithHandshakeTimeout bounds the WebSocket opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = d
	}
}

// ===== Run Configuration =====

// RunOptions is the per-execution configuration of a command.
type RunOptions = config.RunOptions

// RunOption configures a single command execution.
type RunOption func(*RunOptions)

// WithTimeout sets the server-side time limit. It is sent in whole seconds,
// rounded up. Defaults to 60s.
func WithTimeout(d time.Duration) RunOption {
	return func(o *RunOptions) {
		o.Timeout = d
	}
}

// WithShell sets the shell that interprets the command. Defaults to /bin/bash.
func WithShell(shell string) RunOption {
	return func(o *RunOptions) {
		o.Shell = shell
	}
}

// WithCwd sets the working directory of the command.
func WithCwd(dir string) RunOption {
	return func(o *RunOptions) {
		o.Cwd = dir
	}
}

// WithEnv merges env into the command's environment variables.
func WithEnv(env map[string]string) RunOption {
	return func(o *RunOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithEnvVar sets a single environment variable.
func WithEnvVar(key, value string) RunOption {
	return func(o *RunOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string, 1)
		}

		o.Env[key] = value
	}
}

// newRunOptions builds options for command.
func newRunOptions(command string, opts []RunOption) *RunOptions {
	run := config.NewRunOptions(command)
	for _, opt := range opts {
		opt(run)
	}

	return run
}
