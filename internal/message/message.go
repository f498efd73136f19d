package message

// Event is a frame received from the dataplane.
// Use a type switch to determine the concrete type.
type Event interface {
	EventType() string
}

// Compile-time verification that all event types implement Event.
var (
	_ Event = (*StartedEvent)(nil)
	_ Event = (*OutputEvent)(nil)
	_ Event = (*ExitEvent)(nil)
	_ Event = (*ErrorEvent)(nil)
)

// Stream identifies one of the two output streams of a command.
type Stream string

const (
	// StreamStdout is the command's standard output.
	StreamStdout Stream = "stdout"
	// StreamStderr is the command's standard error.
	StreamStderr Stream = "stderr"
)

// StartedEvent is the first frame of an execution.
//
//nolint:tagliatelle // dataplane uses snake_case
type StartedEvent struct {
	CommandID string `json:"command_id"`
	PID       *int   `json:"pid,omitempty"`
}

// EventType implements the Event interface.
func (e *StartedEvent) EventType() string { return "started" }

// OutputEvent carries a chunk of stdout or stderr.
// Offset is nil when the server did not report one.
type OutputEvent struct {
	Stream Stream `json:"-"`
	Data   string `json:"data"`
	Offset *int64 `json:"offset,omitempty"`
}

// EventType implements the Event interface.
func (e *OutputEvent) EventType() string { return string(e.Stream) }

// ExitEvent reports the command's exit code.
//
//nolint:tagliatelle // dataplane uses snake_case
type ExitEvent struct {
	ExitCode int `json:"exit_code"`
}

// EventType implements the Event interface.
func (e *ExitEvent) EventType() string { return "exit" }

// ErrorEvent reports a server-side failure of the command.
//
//nolint:tagliatelle // dataplane uses snake_case
type ErrorEvent struct {
	ErrorType string `json:"error_type"`
	Error     string `json:"error"`
}

// EventType implements the Event interface.
func (e *ErrorEvent) EventType() string { return "error" }

// ExecuteFrame starts a command.
type ExecuteFrame struct {
	Type    string            `json:"type"` // "execute"
	Command string            `json:"command"`
	Timeout int64             `json:"timeout"` // seconds
	Shell   string            `json:"shell"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
}

// InputFrame writes to the command's stdin.
type InputFrame struct {
	Type string `json:"type"` // "input"
	Data string `json:"data"`
}

// KillFrame asks the server to kill the command.
type KillFrame struct {
	Type string `json:"type"` // "kill"
}

// ReconnectFrame resumes an existing command on a new connection.
// It must be the first frame sent after the connection is established.
//
//nolint:tagliatelle // dataplane uses snake_case
type ReconnectFrame struct {
	Type         string `json:"type"` // "reconnect"
	CommandID    string `json:"command_id"`
	StdoutOffset int64  `json:"stdout_offset"`
	StderrOffset int64  `json:"stderr_offset"`
}

// NewExecuteFrame builds an execute frame.
func NewExecuteFrame(command string, timeoutSeconds int64, shell string, env map[string]string, cwd string) *ExecuteFrame {
	return &ExecuteFrame{
		Type:    "execute",
		Command: command,
		Timeout: timeoutSeconds,
		Shell:   shell,
		Env:     env,
		Cwd:     cwd,
	}
}

// NewInputFrame builds an input frame.
func NewInputFrame(data string) *InputFrame {
	return &InputFrame{Type: "input", Data: data}
}

// NewKillFrame builds a kill frame.
func NewKillFrame() *KillFrame {
	return &KillFrame{Type: "kill"}
}

// NewReconnectFrame builds a reconnect frame.
func NewReconnectFrame(commandID string, stdoutOffset, stderrOffset int64) *ReconnectFrame {
	return &ReconnectFrame{
		Type:         "reconnect",
		CommandID:    commandID,
		StdoutOffset: stdoutOffset,
		StderrOffset: stderrOffset,
	}
}
