package sandboxsdk

import "github.com/wagiedev/sandbox-sdk-go/internal/errors"

// Re-export error types from internal package

// SandboxSDKError is the base interface for all SDK errors.
type SandboxSDKError = errors.SandboxSDKError

// ConnectionError indicates the dataplane connection failed or was lost
// beyond recovery.
type ConnectionError = errors.ConnectionError

// ServerReloadError indicates the server closed the connection to reload.
// Streaming executions recover from it automatically.
type ServerReloadError = errors.ServerReloadError

// CommandTimeoutError indicates the command exceeded its server-side timeout.
type CommandTimeoutError = errors.CommandTimeoutError

// CommandNotFoundError indicates the server no longer knows the command.
type CommandNotFoundError = errors.CommandNotFoundError

// SessionExpiredError indicates the command's session expired on the server.
type SessionExpiredError = errors.SessionExpiredError

// OperationError is a failure of a named operation.
type OperationError = errors.OperationError

// AuthError indicates the API key was rejected.
type AuthError = errors.AuthError

// NotFoundError indicates a control-plane resource does not exist.
type NotFoundError = errors.NotFoundError

// HTTPError is a non-success control-plane response.
type HTTPError = errors.HTTPError

// Re-export sentinel errors from internal package.
var (
	// ErrDataplaneNotConfigured indicates the sandbox has no dataplane URL.
	ErrDataplaneNotConfigured = errors.ErrDataplaneNotConfigured

	// ErrCommandExited indicates a kill or stdin request reached a command
	// that already finished.
	ErrCommandExited = errors.ErrCommandExited
)
