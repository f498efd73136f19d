package exec

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Params configures a streaming execution.
type Params struct {
	// Log receives debug output. If nil, logging is disabled.
	Log *slog.Logger

	// Dialer opens transports to the dataplane. Required.
	Dialer config.Dialer

	// DataplaneURL is the HTTP(S) base URL of the sandbox dataplane.
	DataplaneURL string

	// AuthToken is sent with every dial.
	AuthToken string

	// Run is the command to execute. It is copied by Start.
	Run *config.RunOptions

	// Reconnect bounds recovery from lost connections.
	// The zero value means config.DefaultReconnectPolicy().
	Reconnect config.ReconnectPolicy

	// OutputBufferSize is the capacity of the handle's output queue.
	OutputBufferSize int

	// ControlBufferSize is the capacity of the handle's control queue.
	ControlBufferSize int

	// Sleep waits out reconnect backoff. Tests replace it to observe delays.
	Sleep SleepFunc
}

func (p Params) withDefaults() Params {
	if p.Log == nil {
		p.Log = config.NopLogger()
	}

	if p.Reconnect.IsZero() {
		p.Reconnect = config.DefaultReconnectPolicy()
	}

	if p.OutputBufferSize <= 0 {
		p.OutputBufferSize = config.DefaultOutputBufferSize
	}

	if p.ControlBufferSize <= 0 {
		p.ControlBufferSize = config.DefaultControlBufferSize
	}

	if p.Sleep == nil {
		p.Sleep = sleepContext
	}

	if p.Run == nil {
		p.Run = config.NewRunOptions("")
	}

	return p
}

// Start submits a command and returns a handle once the server has
// acknowledged it with a "started" frame.
//
// An "error" frame in place of the acknowledgement is returned as a typed
// error and is never retried. The initial connection is not retried either;
// reconnection only applies once the command is running. ctx bounds the
// startup only: the execution itself lives until it terminates.
func Start(ctx context.Context, p Params) (*Handle, error) {
	p = p.withDefaults()
	run := p.Run.Clone()

	execID := ulid.Make().String()
	log := p.Log.With("component", "exec", "exec_id", execID)

	log.Debug("Starting execution", "command", run.Command, "state", StateConnecting)

	transport, err := p.Dialer.Dial(ctx, p.DataplaneURL, p.AuthToken)
	if err != nil {
		return nil, err
	}

	if err := transport.SendExecute(ctx, run); err != nil {
		_ = transport.Close()

		return nil, fmt.Errorf("send execute: %w", err)
	}

	started, err := awaitStarted(ctx, transport)
	if err != nil {
		_ = transport.Close()

		log.Debug("Execution rejected", "error", err)

		return nil, err
	}

	log = log.With("command_id", started.CommandID)
	if started.PID != nil {
		log.Info("Execution started", "pid", *started.PID)
	} else {
		log.Info("Execution started")
	}

	h := newHandle(log, started, p.OutputBufferSize, p.ControlBufferSize)

	s := &supervisor{
		log:       log,
		dialer:    p.Dialer,
		baseURL:   p.DataplaneURL,
		authToken: p.AuthToken,
		policy:    p.Reconnect,
		sleep:     p.Sleep,
		commandID: started.CommandID,
		handle:    h,
		state:     StateConnecting,
	}

	// The execution outlives the caller's startup context; it ends on its
	// own terminal condition.
	var egCtx context.Context

	h.eg, egCtx = errgroup.WithContext(context.Background())

	h.eg.Go(func() error {
		defer close(h.done)
		defer close(h.output)

		result, err := s.run(egCtx, transport)
		h.finish(result, err)

		return err
	})

	return h, nil
}

// awaitStarted reads the first event of a new execution.
func awaitStarted(ctx context.Context, transport config.Transport) (*message.StartedEvent, error) {
	event, err := transport.Recv(ctx)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, &errors.ConnectionError{Message: "connection closed before command started"}
		}

		return nil, err
	}

	switch e := event.(type) {
	case *message.StartedEvent:
		return e, nil
	case *message.ErrorEvent:
		return nil, errors.FromServerError(e.ErrorType, e.Error, "", false)
	default:
		return nil, &errors.OperationError{
			Operation: "command",
			Message:   fmt.Sprintf("expected 'started' message, got: %s", event.EventType()),
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
