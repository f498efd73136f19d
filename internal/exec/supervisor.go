package exec

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

// recvResult is one outcome of Transport.Recv.
type recvResult struct {
	event message.Event
	err   error
}

// streamState tracks what has been accepted from one output stream.
type streamState struct {
	buf    strings.Builder
	offset int64

	// replaying is set after a reconnect until the stream delivers output
	// beyond what was already accepted. Only then may frames be trimmed.
	replaying bool
}

// supervisor owns the live transport of one execution.
//
// Only the supervisor goroutine touches its fields. Exactly one transport is
// attached at a time: the previous one is closed and its reader stopped
// before a new one is dialed.
type supervisor struct {
	log       *slog.Logger
	dialer    config.Dialer
	baseURL   string
	authToken string
	policy    config.ReconnectPolicy
	sleep     SleepFunc
	commandID string
	handle    *Handle

	transport config.Transport
	events    chan recvResult
	stopPump  context.CancelFunc
	pumpDone  chan struct{}

	stdout      streamState
	stderr      streamState
	pending     []controlMsg
	attempts    int
	killed      bool
	reconnected bool
	state       State
}

// run drives the execution to its terminal outcome.
func (s *supervisor) run(ctx context.Context, transport config.Transport) (*ExecutionResult, error) {
	defer s.detach()

	s.attach(ctx, transport)
	s.setState(StateStreaming)

	result, err := s.loop(ctx)

	s.setState(StateTerminated)

	if err != nil {
		s.log.Debug("Execution failed", "error", err)
	} else {
		s.log.Debug("Execution finished", "exit_code", result.ExitCode)
	}

	return result, err
}

func (s *supervisor) loop(ctx context.Context) (*ExecutionResult, error) {
	for {
		// Pending control messages go out before the next network event.
		select {
		case msg := <-s.handle.control:
			s.handleControl(ctx, msg)

			continue
		default:
		}

		select {
		case msg := <-s.handle.control:
			s.handleControl(ctx, msg)

		case r := <-s.events:
			result, done, err := s.handleEvent(ctx, r)
			if err != nil {
				return nil, err
			}

			if done {
				return result, nil
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// handleEvent processes one transport outcome. done is true when the
// command exited.
func (s *supervisor) handleEvent(ctx context.Context, r recvResult) (*ExecutionResult, bool, error) {
	if r.err != nil {
		if !stderrors.Is(r.err, io.EOF) && !errors.IsConnectionLoss(r.err) {
			return nil, false, r.err
		}

		return nil, false, s.recover(ctx, r.err)
	}

	switch e := r.event.(type) {
	case *message.OutputEvent:
		return nil, false, s.accept(ctx, e)

	case *message.ExitEvent:
		return &ExecutionResult{
			Stdout:   s.stdout.buf.String(),
			Stderr:   s.stderr.buf.String(),
			ExitCode: e.ExitCode,
		}, true, nil

	case *message.ErrorEvent:
		return nil, false, errors.FromServerError(e.ErrorType, e.Error, s.commandID, s.reconnected)

	case *message.StartedEvent:
		s.log.Debug("Ignoring repeated started frame")

		return nil, false, nil

	default:
		s.log.Debug("Ignoring unexpected event", "event_type", r.event.EventType())

		return nil, false, nil
	}
}

// accept appends an output frame and forwards it.
//
// Right after a reconnect the server replays from the requested offset, so
// the part of a frame below the accepted offset is dropped. Outside that
// window frames are taken as given.
func (s *supervisor) accept(ctx context.Context, e *message.OutputEvent) error {
	st := &s.stdout
	if e.Stream == message.StreamStderr {
		st = &s.stderr
	}

	// Output proves the connection is healthy.
	s.attempts = 0

	data := e.Data

	if e.Offset != nil {
		server := *e.Offset

		switch {
		case server < st.offset && st.replaying:
			overlap := st.offset - server
			if overlap >= int64(len(data)) {
				s.log.Debug("Dropping replayed chunk", "stream", e.Stream, "offset", server)

				return nil
			}

			data = data[overlap:]
		case server < st.offset:
			s.log.Warn("Server offset behind received output",
				"stream", e.Stream,
				"expected_offset", st.offset,
				"server_offset", server,
			)
		case server > st.offset:
			s.log.Warn("Output gap detected",
				"stream", e.Stream,
				"expected_offset", st.offset,
				"server_offset", server,
			)
		}
	}

	if data == "" {
		return nil
	}

	st.replaying = false

	chunk := OutputChunk{Stream: e.Stream, Data: data, Offset: st.offset}

	st.buf.WriteString(data)
	st.offset += int64(len(data))

	return s.forward(ctx, chunk)
}

// forward delivers a chunk to the consumer, blocking while the output queue
// is full. Control messages are still serviced while blocked. Once the
// consumer has detached, chunks are dropped.
func (s *supervisor) forward(ctx context.Context, chunk OutputChunk) error {
	for {
		select {
		case <-s.handle.detached:
			return nil
		default:
		}

		select {
		case s.handle.output <- chunk:
			return nil
		case <-s.handle.detached:
			return nil
		case msg := <-s.handle.control:
			s.handleControl(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleControl relays a kill or stdin request to the live transport.
// Send failures are not fatal: a dead connection is reported by the reader.
func (s *supervisor) handleControl(ctx context.Context, msg controlMsg) {
	if s.transport == nil {
		s.hold(msg)

		return
	}

	var err error

	switch msg.kind {
	case controlKill:
		s.killed = true
		s.log.Debug("Sending kill")

		err = s.transport.SendKill(ctx)
	case controlInput:
		err = s.transport.SendInput(ctx, msg.data)
	}

	if err != nil {
		s.log.Debug("Failed to send control frame", "kind", msg.kind, "error", err)
	}
}

// hold queues a control message while no transport is attached. A kill
// makes the next recovery step final.
func (s *supervisor) hold(msg controlMsg) {
	if msg.kind == controlKill {
		s.killed = true
		s.log.Debug("Kill requested while disconnected")

		return
	}

	s.pending = append(s.pending, msg)
}

// drainControl takes every queued control message without blocking.
func (s *supervisor) drainControl(ctx context.Context) {
	for {
		select {
		case msg := <-s.handle.control:
			s.handleControl(ctx, msg)
		default:
			return
		}
	}
}

// flushPending sends stdin held during a reconnect, in order.
func (s *supervisor) flushPending(ctx context.Context) {
	pending := s.pending
	s.pending = nil

	for _, msg := range pending {
		s.handleControl(ctx, msg)
	}
}

// recover replaces a lost transport, resuming from the accepted offsets.
// It returns a terminal error when the execution cannot continue.
//
// Control messages are taken while disconnected: stdin is held until the
// new transport is attached, and a kill ends the execution.
func (s *supervisor) recover(ctx context.Context, cause error) error {
	_, reload := stderrors.AsType[*errors.ServerReloadError](cause)

	for {
		s.detach()
		s.drainControl(ctx)

		if s.killed {
			return errLostAfterKill()
		}

		s.attempts++
		if s.attempts > s.policy.MaxAttempts {
			return &errors.ConnectionError{
				Message: fmt.Sprintf("lost connection %d times, giving up", s.attempts),
			}
		}

		s.setState(StateReconnecting)

		if !reload {
			delay := s.policy.Delay(s.attempts)

			s.log.Debug("Backing off before reconnect", "attempt", s.attempts, "delay", delay, "cause", cause)

			if err := s.sleep(ctx, delay); err != nil {
				return err
			}

			s.drainControl(ctx)

			if s.killed {
				return errLostAfterKill()
			}
		} else {
			s.log.Debug("Server reloading, reconnecting immediately", "attempt", s.attempts)
		}

		reload = false

		transport, err := s.dialer.Dial(ctx, s.baseURL, s.authToken)
		if err != nil {
			s.log.Debug("Reconnect dial failed", "attempt", s.attempts, "error", err)
			cause = err

			continue
		}

		err = transport.SendReconnect(ctx, s.commandID, s.stdout.offset, s.stderr.offset)
		if err != nil {
			_ = transport.Close()

			s.log.Debug("Reconnect frame failed", "attempt", s.attempts, "error", err)
			cause = err

			continue
		}

		s.reconnected = true
		s.stdout.replaying = true
		s.stderr.replaying = true
		s.attach(ctx, transport)
		s.setState(StateStreaming)

		s.log.Info("Reconnected",
			"attempt", s.attempts,
			"stdout_offset", s.stdout.offset,
			"stderr_offset", s.stderr.offset,
		)

		s.flushPending(ctx)

		return nil
	}
}

func errLostAfterKill() error {
	return &errors.ConnectionError{Message: "connection lost after kill"}
}

// attach makes transport the live connection and starts its reader.
func (s *supervisor) attach(ctx context.Context, transport config.Transport) {
	pumpCtx, cancel := context.WithCancel(ctx)
	events := make(chan recvResult)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			event, err := transport.Recv(pumpCtx)

			select {
			case events <- recvResult{event: event, err: err}:
			case <-pumpCtx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()

	s.transport = transport
	s.events = events
	s.stopPump = cancel
	s.pumpDone = done
}

// detach stops the reader and closes the live transport, if any.
func (s *supervisor) detach() {
	if s.transport == nil {
		return
	}

	s.stopPump()
	_ = s.transport.Close()
	<-s.pumpDone

	s.transport = nil
	s.events = nil
}

func (s *supervisor) setState(state State) {
	if s.state == state {
		return
	}

	s.log.Debug("State transition", "from", s.state, "to", state)
	s.state = state
}
