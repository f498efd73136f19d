package exec

import "github.com/wagiedev/sandbox-sdk-go/internal/message"

// OutputChunk is a piece of stdout or stderr delivered to the caller.
type OutputChunk struct {
	// Stream is the stream the data belongs to.
	Stream message.Stream

	// Data is the chunk's text.
	Data string

	// Offset is the byte position of the chunk's first byte within the
	// cumulative output of its stream.
	Offset int64
}

// ExecutionResult is the outcome of a completed command.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r *ExecutionResult) Success() bool {
	return r.ExitCode == 0
}

// State is the connection state of a streaming execution.
type State int

const (
	// StateConnecting is the initial dial and handshake.
	StateConnecting State = iota
	// StateStreaming means a transport is live and events are flowing.
	StateStreaming
	// StateReconnecting means the previous transport was lost.
	StateReconnecting
	// StateTerminated means the execution reached its outcome.
	StateTerminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
