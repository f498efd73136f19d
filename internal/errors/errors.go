package errors

import (
	"errors"
	"fmt"
)

// SandboxSDKError is the base interface for all SDK errors.
type SandboxSDKError interface {
	error
	IsSandboxSDKError() bool
}

// Compile-time verification that all error types implement SandboxSDKError.
var (
	_ SandboxSDKError = (*ConnectionError)(nil)
	_ SandboxSDKError = (*ServerReloadError)(nil)
	_ SandboxSDKError = (*CommandTimeoutError)(nil)
	_ SandboxSDKError = (*CommandNotFoundError)(nil)
	_ SandboxSDKError = (*SessionExpiredError)(nil)
	_ SandboxSDKError = (*OperationError)(nil)
	_ SandboxSDKError = (*AuthError)(nil)
	_ SandboxSDKError = (*NotFoundError)(nil)
	_ SandboxSDKError = (*HTTPError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrDataplaneNotConfigured indicates the sandbox has no dataplane URL.
	ErrDataplaneNotConfigured = errors.New("sandbox dataplane URL not configured")

	// ErrCommandExited indicates a control message could not be delivered
	// because the command has already finished.
	ErrCommandExited = errors.New("command already exited")

	// ErrUnknownMessageType indicates the frame type is not recognized by the SDK.
	// Callers should skip these frames rather than treating them as fatal.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrTransportClosed indicates the transport was used after Close.
	ErrTransportClosed = errors.New("transport closed")
)

// ConnectionError indicates a transient network failure or abnormal closure.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("connection error: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("connection error: %v", e.Err)
	default:
		return "connection error: " + e.Message
	}
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *ConnectionError) IsSandboxSDKError() bool { return true }

// ServerReloadError indicates the server closed the connection because it is
// reloading. Reconnecting resumes the command without delay.
type ServerReloadError struct {
	Message string
}

func (e *ServerReloadError) Error() string {
	return "server reloading: " + e.Message
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *ServerReloadError) IsSandboxSDKError() bool { return true }

// CommandTimeoutError indicates the command exceeded its execution timeout.
type CommandTimeoutError struct {
	Message string
}

func (e *CommandTimeoutError) Error() string {
	return "command timed out: " + e.Message
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *CommandTimeoutError) IsSandboxSDKError() bool { return true }

// CommandNotFoundError indicates the server has no record of the command.
// When Operation is "reconnect" the command most likely finished and its
// record expired while the client was disconnected.
type CommandNotFoundError struct {
	Operation string
	CommandID string
	Message   string
}

func (e *CommandNotFoundError) Error() string {
	if e.CommandID != "" {
		return fmt.Sprintf("%s failed: command not found: %s: %s", e.Operation, e.CommandID, e.Message)
	}

	return fmt.Sprintf("%s failed: command not found: %s", e.Operation, e.Message)
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *CommandNotFoundError) IsSandboxSDKError() bool { return true }

// SessionExpiredError indicates the server-side session backing the command expired.
type SessionExpiredError struct {
	Operation string
	CommandID string
	Message   string
}

func (e *SessionExpiredError) Error() string {
	if e.CommandID != "" {
		return fmt.Sprintf("%s failed: session expired: %s: %s", e.Operation, e.CommandID, e.Message)
	}

	return fmt.Sprintf("%s failed: session expired: %s", e.Operation, e.Message)
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *SessionExpiredError) IsSandboxSDKError() bool { return true }

// OperationError indicates a runtime operation failed.
type OperationError struct {
	Operation string
	Message   string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *OperationError) IsSandboxSDKError() bool { return true }

// AuthError indicates the API key was rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication error: " + e.Message
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *AuthError) IsSandboxSDKError() bool { return true }

// NotFoundError indicates a control-plane resource does not exist.
type NotFoundError struct {
	ResourceType string
	Name         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.Name)
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *NotFoundError) IsSandboxSDKError() bool { return true }

// HTTPError is a non-success HTTP response without a more specific type.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsSandboxSDKError implements SandboxSDKError.
func (e *HTTPError) IsSandboxSDKError() bool { return true }

// CommandExited builds the soft error returned when a control message targets
// a command that already finished. It matches ErrCommandExited with errors.Is.
func CommandExited(operation string) error {
	return &OperationError{
		Operation: operation,
		Message:   ErrCommandExited.Error(),
		Err:       ErrCommandExited,
	}
}

// IsConnectionLoss reports whether err is a condition the supervisor recovers
// from by reconnecting.
func IsConnectionLoss(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	var reloadErr *ServerReloadError

	return errors.As(err, &reloadErr)
}

// FromServerError converts an "error" frame into a typed error.
//
// The operation is "reconnect" when the failure happened after the client
// resumed the command on a new connection, and "command" otherwise.
func FromServerError(errorType, message, commandID string, reconnected bool) error {
	operation := "command"
	if reconnected {
		operation = "reconnect"
	}

	switch errorType {
	case "CommandTimeout":
		return &CommandTimeoutError{Message: message}
	case "CommandNotFound":
		return &CommandNotFoundError{Operation: operation, CommandID: commandID, Message: message}
	case "SessionExpired":
		return &SessionExpiredError{Operation: operation, CommandID: commandID, Message: message}
	default:
		return &OperationError{Operation: operation, Message: message}
	}
}
