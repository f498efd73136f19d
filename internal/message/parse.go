package message

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
)

// Decode unmarshals a text frame and converts it into a typed Event.
// See Parse for the returned errors.
func Decode(log *slog.Logger, raw []byte) (Event, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &errors.OperationError{
			Operation: "decode",
			Message:   fmt.Sprintf("invalid JSON frame: %v", err),
			Err:       errors.ErrUnknownMessageType,
		}
	}

	return Parse(log, data)
}

// Parse converts a raw JSON map into a typed Event.
//
// Unknown frame types, and frames whose required fields are missing, return
// an error wrapping ErrUnknownMessageType so the caller can skip them. Fields
// the server may omit are filled with the same defaults the dataplane uses:
// exit_code -1, error_type "Unknown", error "Unknown error".
func Parse(log *slog.Logger, data map[string]any) (Event, error) {
	log = log.With("component", "message_parser")

	msgType, ok := data["type"].(string)
	if !ok {
		log.Debug("Frame missing 'type' field")

		return nil, fmt.Errorf("missing or invalid 'type' field: %w", errors.ErrUnknownMessageType)
	}

	switch msgType {
	case "started":
		return parseStarted(data), nil
	case "stdout":
		return parseOutput(log, StreamStdout, data)
	case "stderr":
		return parseOutput(log, StreamStderr, data)
	case "exit":
		return parseExit(data), nil
	case "error":
		return parseError(data), nil
	default:
		log.Debug("Skipping unknown frame type", "frame_type", msgType)

		return nil, errors.ErrUnknownMessageType
	}
}

func parseStarted(data map[string]any) *StartedEvent {
	event := &StartedEvent{}

	if id, ok := data["command_id"].(string); ok {
		event.CommandID = id
	}

	if pid, ok := data["pid"].(float64); ok && pid >= 0 {
		p := int(pid)
		event.PID = &p
	}

	return event
}

func parseOutput(log *slog.Logger, stream Stream, data map[string]any) (*OutputEvent, error) {
	text, ok := data["data"].(string)
	if !ok {
		log.Debug("Output frame missing 'data' field", "stream", stream)

		return nil, fmt.Errorf("%s frame: missing 'data' field: %w", stream, errors.ErrUnknownMessageType)
	}

	event := &OutputEvent{Stream: stream, Data: text}

	if offset, ok := data["offset"].(float64); ok && offset >= 0 {
		o := int64(offset)
		event.Offset = &o
	}

	return event, nil
}

func parseExit(data map[string]any) *ExitEvent {
	code := -1
	if c, ok := data["exit_code"].(float64); ok {
		code = int(c)
	}

	return &ExitEvent{ExitCode: code}
}

func parseError(data map[string]any) *ErrorEvent {
	event := &ErrorEvent{ErrorType: "Unknown", Error: "Unknown error"}

	if t, ok := data["error_type"].(string); ok {
		event.ErrorType = t
	}

	if msg, ok := data["error"].(string); ok {
		event.Error = msg
	}

	return event
}
