package exec

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	sdkerrors "github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

// mockTransport implements config.Transport for testing.
// Events are scripted on a channel; Recv blocks while it is empty and returns
// io.EOF once it is closed.
type mockTransport struct {
	events  chan recvResult
	closeCh chan struct{}

	mu      sync.Mutex
	frames  []string
	closed  bool
	sendErr error
}

var _ config.Transport = (*mockTransport)(nil)

func newMockTransport(events ...recvResult) *mockTransport {
	m := &mockTransport{
		events:  make(chan recvResult, 64),
		closeCh: make(chan struct{}),
	}

	m.push(events...)

	return m
}

func (m *mockTransport) push(events ...recvResult) {
	for _, e := range events {
		m.events <- e
	}
}

func (m *mockTransport) record(frame string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return sdkerrors.ErrTransportClosed
	}

	if m.sendErr != nil {
		return m.sendErr
	}

	m.frames = append(m.frames, frame)

	return nil
}

func (m *mockTransport) SendExecute(_ context.Context, opts *config.RunOptions) error {
	return m.record("execute:" + opts.Command)
}

func (m *mockTransport) SendReconnect(_ context.Context, commandID string, stdoutOffset, stderrOffset int64) error {
	return m.record(fmt.Sprintf("reconnect:%s:%d:%d", commandID, stdoutOffset, stderrOffset))
}

func (m *mockTransport) SendKill(_ context.Context) error {
	return m.record("kill")
}

func (m *mockTransport) SendInput(_ context.Context, data string) error {
	return m.record("input:" + data)
}

func (m *mockTransport) Recv(ctx context.Context) (message.Event, error) {
	select {
	case r, ok := <-m.events:
		if !ok {
			return nil, io.EOF
		}

		return r.event, r.err
	case <-m.closeCh:
		return nil, &sdkerrors.ConnectionError{Message: "transport closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}

	return nil
}

func (m *mockTransport) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.frames...)
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// mockDialer hands out scripted dial outcomes in order.
// A nil transport entry makes that dial fail.
type mockDialer struct {
	mu         sync.Mutex
	transports []*mockTransport
	dials      int
}

func newMockDialer(transports ...*mockTransport) *mockDialer {
	return &mockDialer{transports: transports}
}

func (d *mockDialer) Dial(_ context.Context, _, _ string) (config.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.dials
	d.dials++

	if i >= len(d.transports) || d.transports[i] == nil {
		return nil, &sdkerrors.ConnectionError{Message: "dial refused"}
	}

	return d.transports[i], nil
}

func (d *mockDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

// sleepRecorder records backoff delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.delays = append(r.delays, d)

	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.delays...)
}

func started(commandID string, pid int) recvResult {
	return recvResult{event: &message.StartedEvent{CommandID: commandID, PID: &pid}}
}

func stdout(data string, offset int64) recvResult {
	return recvResult{event: &message.OutputEvent{Stream: message.StreamStdout, Data: data, Offset: &offset}}
}

func stderr(data string, offset int64) recvResult {
	return recvResult{event: &message.OutputEvent{Stream: message.StreamStderr, Data: data, Offset: &offset}}
}

func exit(code int) recvResult {
	return recvResult{event: &message.ExitEvent{ExitCode: code}}
}

func serverError(errorType, msg string) recvResult {
	return recvResult{event: &message.ErrorEvent{ErrorType: errorType, Error: msg}}
}

func drop() recvResult {
	return recvResult{err: &sdkerrors.ConnectionError{Message: "connection reset"}}
}

func reload() recvResult {
	return recvResult{err: &sdkerrors.ServerReloadError{Message: "going away"}}
}

// startWith runs Start against dialer with a recording sleep.
func startWith(t *testing.T, dialer config.Dialer, opts ...func(*Params)) (*Handle, *sleepRecorder) {
	t.Helper()

	rec := &sleepRecorder{}
	p := Params{
		Dialer:       dialer,
		DataplaneURL: "http://dataplane.test",
		AuthToken:    "token",
		Run:          config.NewRunOptions("echo hello"),
		Sleep:        rec.sleep,
	}

	for _, opt := range opts {
		opt(&p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := Start(ctx, p)
	require.NoError(t, err)

	return h, rec
}

func collect(t *testing.T, h *Handle) ([]OutputChunk, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var chunks []OutputChunk

	for chunk, err := range h.Output(ctx) {
		if err != nil {
			return chunks, err
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}
