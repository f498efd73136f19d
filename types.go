package sandboxsdk

import (
	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/controlplane"
	"github.com/wagiedev/sandbox-sdk-go/internal/exec"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

// ===== Execution =====

// CommandHandle is the caller's view of a running command.
//
// Consume output with Recv, Output or Wait from one goroutine. Kill and
// SendInput may be called from any goroutine.
type CommandHandle = exec.Handle

// InputSender sends stdin and kill requests to a running command.
// It is safe to hand to another goroutine.
type InputSender = exec.InputSender

// OutputChunk is a piece of stdout or stderr.
type OutputChunk = exec.OutputChunk

// ExecutionResult is the outcome of a completed command.
type ExecutionResult = exec.ExecutionResult

// ConnectionState is the connection state of a streaming execution,
// reported in debug logs.
type ConnectionState = exec.State

// Stream identifies stdout or stderr.
type Stream = message.Stream

const (
	// StreamStdout is the command's standard output.
	StreamStdout = message.StreamStdout
	// StreamStderr is the command's standard error.
	StreamStderr = message.StreamStderr
)

// ReconnectPolicy bounds automatic reconnection of streaming executions.
type ReconnectPolicy = config.ReconnectPolicy

// DefaultReconnectPolicy allows 5 consecutive connection losses with
// backoff 500ms, 1s, 2s, 4s, 8s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return config.DefaultReconnectPolicy()
}

// ===== Control Plane =====

// SandboxInfo describes a sandbox as reported by the control plane.
type SandboxInfo = controlplane.SandboxInfo

// ===== Dataplane Events =====

// Event is a frame received from the dataplane. Custom transports return
// these from Recv.
type Event = message.Event

// StartedEvent acknowledges a command.
type StartedEvent = message.StartedEvent

// OutputEvent carries a chunk of stdout or stderr.
type OutputEvent = message.OutputEvent

// ExitEvent reports the exit code.
type ExitEvent = message.ExitEvent

// ErrorEvent reports a server-side failure.
type ErrorEvent = message.ErrorEvent
