package wsconn

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

const (
	// executePath is the dataplane endpoint for streaming execution.
	executePath = "/execute/ws"

	// authHeader carries the API key or relay token.
	authHeader = "X-Api-Key"

	// writeTimeout bounds a single frame write when ctx has no earlier deadline.
	writeTimeout = 10 * time.Second

	// closeGracePeriod bounds the best-effort close frame written by Close.
	closeGracePeriod = time.Second
)

// Conn implements Transport over a WebSocket connection to /execute/ws.
type Conn struct {
	log       *slog.Logger
	ws        *websocket.Conn
	url       string
	mu        sync.Mutex // Protects writes and closed
	closed    bool
	closeOnce sync.Once
}

// Compile-time verification that Conn implements the Transport interface.
var _ config.Transport = (*Conn)(nil)

// DialOptions tunes the WebSocket handshake.
type DialOptions struct {
	HandshakeTimeout time.Duration
	UserAgent        string
}

// BuildURL converts an HTTP(S) dataplane URL into the WebSocket URL of the
// streaming execution endpoint.
func BuildURL(dataplaneURL string) string {
	u := dataplaneURL

	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	return strings.TrimRight(u, "/") + executePath
}

// Dial opens a streaming connection to the dataplane at baseURL.
//
// The auth token is attached as the X-Api-Key header. A handshake rejected
// with 404 means the server predates streaming execution; it is reported as a
// ConnectionError with guidance but otherwise treated like any other dial
// failure.
func Dial(
	ctx context.Context,
	log *slog.Logger,
	baseURL string,
	authToken string,
	opts DialOptions,
) (*Conn, error) {
	wsURL := BuildURL(baseURL)
	log = log.With("component", "ws_transport")

	header := http.Header{}
	if authToken != "" {
		header.Set(authHeader, authToken)
	}

	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	log.Debug("Dialing dataplane", "url", wsURL)

	ws, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			log.Warn("Dataplane does not support streaming execution", "url", wsURL)

			return nil, &errors.ConnectionError{
				Message: "server does not support WebSocket execution (" + executePath +
					" returned 404); use request/response execution instead",
			}
		}

		if resp != nil {
			log.Debug("WebSocket handshake rejected", "status", resp.StatusCode)

			return nil, &errors.ConnectionError{
				Message: fmt.Sprintf("handshake failed with HTTP %d", resp.StatusCode),
				Err:     err,
			}
		}

		log.Debug("Failed to dial dataplane", "error", err)

		return nil, &errors.ConnectionError{Err: err}
	}

	log.Debug("Connected to dataplane", "url", wsURL)

	return &Conn{log: log, ws: ws, url: wsURL}, nil
}

// SendExecute sends an execute frame. Empty env and cwd are omitted.
func (c *Conn) SendExecute(ctx context.Context, opts *config.RunOptions) error {
	var env map[string]string
	if len(opts.Env) > 0 {
		env = opts.Env
	}

	return c.sendJSON(ctx, message.NewExecuteFrame(
		opts.Command,
		opts.TimeoutSeconds(),
		opts.Shell,
		env,
		opts.Cwd,
	))
}

// SendReconnect sends a reconnect frame carrying the last confirmed offsets.
func (c *Conn) SendReconnect(ctx context.Context, commandID string, stdoutOffset, stderrOffset int64) error {
	return c.sendJSON(ctx, message.NewReconnectFrame(commandID, stdoutOffset, stderrOffset))
}

// SendKill sends a kill frame.
func (c *Conn) SendKill(ctx context.Context) error {
	return c.sendJSON(ctx, message.NewKillFrame())
}

// SendInput sends stdin data.
func (c *Conn) SendInput(ctx context.Context, data string) error {
	return c.sendJSON(ctx, message.NewInputFrame(data))
}

// Recv returns the next decoded event.
//
// Unrecognized frames are skipped. A close frame with code 1001 (going away)
// is reported as ServerReloadError, a normal close or the end of the stream as
// io.EOF, and anything else as ConnectionError. Cancelling ctx closes the
// connection to unblock the read.
func (c *Conn) Recv(ctx context.Context) (message.Event, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.Close()
	})
	defer stop()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, c.classify(err)
		}

		if msgType != websocket.TextMessage {
			continue
		}

		event, err := message.Decode(c.log, data)
		if err != nil {
			c.log.Debug("Skipping frame", "error", err)

			continue
		}

		return event, nil
	}
}

// Close closes the connection, sending a best-effort normal close frame.
// It's safe to call Close multiple times.
func (c *Conn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)

		err = c.ws.Close()

		c.log.Debug("Closed dataplane connection")
	})

	return err
}

// sendJSON writes one text frame. Writes are serialized because the
// underlying connection supports a single concurrent writer.
func (c *Conn) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &errors.OperationError{Operation: "ws_send", Message: err.Error(), Err: err}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrTransportClosed
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return &errors.ConnectionError{Err: err}
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("Failed to write frame", "error", err)

		return &errors.ConnectionError{Message: "write frame", Err: err}
	}

	return nil
}

// classify maps a read error onto the transport's loss taxonomy.
func (c *Conn) classify(err error) error {
	if closeErr, ok := stderrors.AsType[*websocket.CloseError](err); ok {
		switch closeErr.Code {
		case websocket.CloseGoingAway:
			c.log.Debug("Server is going away")

			return &errors.ServerReloadError{Message: "server is reloading, reconnect to resume"}
		case websocket.CloseNormalClosure, websocket.CloseNoStatusReceived:
			return io.EOF
		default:
			return &errors.ConnectionError{
				Message: fmt.Sprintf("connection closed with code %d", closeErr.Code),
				Err:     err,
			}
		}
	}

	return &errors.ConnectionError{Message: "websocket error", Err: err}
}
