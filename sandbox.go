package sandboxsdk

import (
	"context"
	"log/slog"
	"time"

	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/exec"
)

// killTimeout bounds the best-effort kill sent when Run is abandoned.
const killTimeout = 5 * time.Second

// Sandbox is a remote container that commands can run in.
type Sandbox struct {
	log       *slog.Logger
	options   *Options
	info      SandboxInfo
	authToken string
}

func newSandbox(c *Client, info SandboxInfo, authToken string) *Sandbox {
	return &Sandbox{
		log:       c.options.Logger.With("component", "sandbox", "sandbox", info.Name),
		options:   c.options,
		info:      info,
		authToken: authToken,
	}
}

// Name returns the sandbox name.
func (s *Sandbox) Name() string {
	return s.info.Name
}

// Info returns the sandbox's control-plane record.
func (s *Sandbox) Info() SandboxInfo {
	return s.info
}

// DataplaneURL returns the base URL commands are executed against.
func (s *Sandbox) DataplaneURL() string {
	return s.info.DataplaneURL
}

// RunStreaming starts command and returns a handle streaming its output.
//
// RunStreaming returns once the server has acknowledged the command. The
// execution then survives dropped connections on its own; ctx only bounds
// the startup. Returns ErrDataplaneNotConfigured without dialing when the
// sandbox has no dataplane URL.
func (s *Sandbox) RunStreaming(ctx context.Context, command string, opts ...RunOption) (*CommandHandle, error) {
	return s.start(ctx, newRunOptions(command, opts))
}

// Run executes command and waits for it to finish.
//
// If ctx is done first, a kill is sent and ctx's error is returned.
func (s *Sandbox) Run(ctx context.Context, command string, opts ...RunOption) (*ExecutionResult, error) {
	return s.run(ctx, newRunOptions(command, opts))
}

func (s *Sandbox) start(ctx context.Context, run *RunOptions) (*CommandHandle, error) {
	if s.info.DataplaneURL == "" {
		return nil, errors.ErrDataplaneNotConfigured
	}

	return exec.Start(ctx, exec.Params{
		Log:               s.log,
		Dialer:            s.options.Dialer,
		DataplaneURL:      s.info.DataplaneURL,
		AuthToken:         s.authToken,
		Run:               run,
		Reconnect:         s.options.Reconnect,
		OutputBufferSize:  s.options.OutputBufferSize,
		ControlBufferSize: s.options.ControlBufferSize,
	})
}

func (s *Sandbox) run(ctx context.Context, run *RunOptions) (*ExecutionResult, error) {
	handle, err := s.start(ctx, run)
	if err != nil {
		return nil, err
	}

	result, err := handle.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		abandon(s.log, handle)
	}

	return result, err
}

// abandon kills a command whose caller stopped waiting and detaches it.
func abandon(log *slog.Logger, handle *CommandHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	if err := handle.Kill(ctx); err != nil {
		log.Debug("Failed to kill abandoned command", "command_id", handle.CommandID(), "error", err)
	}

	_ = handle.Close()
}

// WithCommand starts command, passes its handle to fn, and cleans up.
//
// When fn returns before the command has finished, the command is killed
// and the handle detached. The error from fn is returned unchanged.
//
// Example usage:
//
//	err := sandboxsdk.WithCommand(ctx, sb, "python -i", func(h *sandboxsdk.CommandHandle) error {
//	    if err := h.SendInput(ctx, "print(1 + 1)\n"); err != nil {
//	        return err
//	    }
//	    chunk, err := h.Recv(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Data)
//	    return nil
//	})
func WithCommand(
	ctx context.Context,
	sandbox *Sandbox,
	command string,
	fn func(*CommandHandle) error,
	opts ...RunOption,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	handle, err := sandbox.RunStreaming(ctx, command, opts...)
	if err != nil {
		return err
	}

	defer func() {
		select {
		case <-handle.Done():
			_ = handle.Close()
		default:
			abandon(sandbox.log, handle)
		}
	}()

	return fn(handle)
}
