package exec

import (
	"context"
	stderrors "errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

type controlKind string

const (
	controlKill  controlKind = "kill"
	controlInput controlKind = "input"
)

// controlMsg is a request from the caller to the supervisor.
type controlMsg struct {
	kind controlKind
	data string
}

// Handle is the caller's view of a running command.
//
// Output is consumed with Recv, Output or Wait from a single goroutine. Kill
// and SendInput may be called concurrently from any goroutine; InputSender
// returns a value that carries only those two capabilities.
type Handle struct {
	log       *slog.Logger
	commandID string
	pid       *int

	output  chan OutputChunk
	control chan controlMsg
	sender  *InputSender

	// done is closed once the supervisor has terminated.
	done chan struct{}

	// detached is closed by Close; the supervisor stops forwarding output.
	detached   chan struct{}
	detachOnce sync.Once

	eg *errgroup.Group

	mu      sync.Mutex
	result  *ExecutionResult
	err     error
	waited  bool
	waitErr error
}

func newHandle(log *slog.Logger, started *message.StartedEvent, outputSize, controlSize int) *Handle {
	h := &Handle{
		log:       log,
		commandID: started.CommandID,
		pid:       started.PID,
		output:    make(chan OutputChunk, outputSize),
		control:   make(chan controlMsg, controlSize),
		done:      make(chan struct{}),
		detached:  make(chan struct{}),
	}

	h.sender = &InputSender{control: h.control, done: h.done}

	return h
}

// finish records the supervisor's outcome. Called once, before done closes.
func (h *Handle) finish(result *ExecutionResult, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.result = result
	h.err = err
}

// CommandID returns the server-assigned command identifier.
func (h *Handle) CommandID() string {
	return h.commandID
}

// PID returns the process id reported by the server, if any.
func (h *Handle) PID() (int, bool) {
	if h.pid == nil {
		return 0, false
	}

	return *h.pid, true
}

// Done returns a channel that is closed when the execution has terminated.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Recv returns the next output chunk.
//
// When the output is exhausted Recv returns io.EOF if the command exited, or
// the execution's terminal error otherwise.
func (h *Handle) Recv(ctx context.Context) (OutputChunk, error) {
	select {
	case chunk, ok := <-h.output:
		if !ok {
			if err := h.eg.Wait(); err != nil {
				return OutputChunk{}, err
			}

			return OutputChunk{}, io.EOF
		}

		return chunk, nil
	case <-ctx.Done():
		return OutputChunk{}, ctx.Err()
	}
}

// Output returns an iterator over the remaining output chunks.
//
// Iteration ends after the last chunk. If the execution failed, or ctx is
// done, the final iteration yields the error.
func (h *Handle) Output(ctx context.Context) iter.Seq2[OutputChunk, error] {
	return func(yield func(OutputChunk, error) bool) {
		for {
			chunk, err := h.Recv(ctx)
			if stderrors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(OutputChunk{}, err)

				return
			}

			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Wait drains any remaining output and returns the execution's outcome.
//
// Chunks not yet received are discarded; their data is still part of the
// result. Once Wait has returned the outcome, later calls return the same
// value.
func (h *Handle) Wait(ctx context.Context) (*ExecutionResult, error) {
	h.mu.Lock()
	if h.waited {
		defer h.mu.Unlock()

		return h.result, h.waitErr
	}
	h.mu.Unlock()

	for {
		if _, err := h.Recv(ctx); err != nil {
			break
		}
	}

	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	err := h.eg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.waited = true
	h.waitErr = err

	if err != nil {
		h.result = nil
	}

	return h.result, h.waitErr
}

// Result returns the outcome of a command that exited, once Wait has
// returned it.
func (h *Handle) Result() (*ExecutionResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.waited || h.result == nil {
		return nil, false
	}

	return h.result, true
}

// Kill asks the server to kill the command.
//
// It returns an error matching errors.ErrCommandExited once the execution
// has terminated, including when the kill races with the command's exit.
func (h *Handle) Kill(ctx context.Context) error {
	return h.sender.Kill(ctx)
}

// SendInput writes data to the command's stdin.
//
// It returns an error matching errors.ErrCommandExited once the execution
// has terminated.
func (h *Handle) SendInput(ctx context.Context, data string) error {
	return h.sender.Send(ctx, data)
}

// InputSender returns a sender sharing this handle's control channel.
func (h *Handle) InputSender() *InputSender {
	return h.sender
}

// Close detaches the consumer. The execution continues in the background
// until it terminates, but no further output is delivered. Close does not
// kill the command. It's safe to call Close multiple times.
func (h *Handle) Close() error {
	h.detachOnce.Do(func() {
		close(h.detached)
		h.log.Debug("Handle detached")
	})

	return nil
}

// InputSender sends stdin and kill requests to a running command.
// It is safe for concurrent use and may outlive the Handle's consumer.
type InputSender struct {
	control chan<- controlMsg
	done    <-chan struct{}
}

// Send writes data to the command's stdin.
func (s *InputSender) Send(ctx context.Context, data string) error {
	return s.send(ctx, "send_input", controlMsg{kind: controlInput, data: data})
}

// Kill asks the server to kill the command.
func (s *InputSender) Kill(ctx context.Context) error {
	return s.send(ctx, "kill", controlMsg{kind: controlKill})
}

// send enqueues msg. A request that races with termination may be enqueued
// after the supervisor stopped reading, so done is checked again after the
// enqueue and the request is reported as too late.
func (s *InputSender) send(ctx context.Context, operation string, msg controlMsg) error {
	select {
	case s.control <- msg:
	case <-s.done:
		return errors.CommandExited(operation)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-s.done:
		return errors.CommandExited(operation)
	default:
		return nil
	}
}
