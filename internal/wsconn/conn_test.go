package wsconn

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	sdkerrors "github.com/wagiedev/sandbox-sdk-go/internal/errors"
	"github.com/wagiedev/sandbox-sdk-go/internal/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newServer starts a dataplane stub that upgrades /execute/ws and hands the
// server side of the socket to script.
func newServer(t *testing.T, script func(ws *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/execute/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		script(ws, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, discardLogger(), srv.URL, "test-key", DialOptions{
		HandshakeTimeout: 5 * time.Second,
		UserAgent:        "sandbox-sdk-go/test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func closeWith(ws *websocket.Conn, code int) {
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	_, _, _ = ws.ReadMessage()
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://box.example.com", "wss://box.example.com/execute/ws"},
		{"http://localhost:8080/", "ws://localhost:8080/execute/ws"},
		{"https://box.example.com/relay/abc/", "wss://box.example.com/relay/abc/execute/ws"},
		{"ws://already", "ws://already/execute/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, BuildURL(tt.in))
		})
	}
}

func TestDial_Headers(t *testing.T) {
	headers := make(chan http.Header, 1)

	srv := newServer(t, func(ws *websocket.Conn, r *http.Request) {
		headers <- r.Header.Clone()

		closeWith(ws, websocket.CloseNormalClosure)
	})

	conn := dial(t, srv)

	select {
	case h := <-headers:
		require.Equal(t, "test-key", h.Get("X-Api-Key"))
		require.Equal(t, "sandbox-sdk-go/test", h.Get("User-Agent"))
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive handshake")
	}

	_, err := conn.Recv(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestDial_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := Dial(context.Background(), discardLogger(), srv.URL, "", DialOptions{})
	require.Error(t, err)

	connErr, ok := err.(*sdkerrors.ConnectionError)
	require.True(t, ok, "expected *ConnectionError, got %T", err)
	require.Contains(t, connErr.Message, "does not support WebSocket execution")
	require.True(t, sdkerrors.IsConnectionLoss(err))
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Dial(context.Background(), discardLogger(), url, "", DialOptions{HandshakeTimeout: time.Second})
	require.Error(t, err)

	_, ok := err.(*sdkerrors.ConnectionError)
	require.True(t, ok, "expected *ConnectionError, got %T", err)
}

func TestConn_ExecuteRoundTrip(t *testing.T) {
	frames := make(chan map[string]any, 1)

	srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
		var frame map[string]any
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}

		frames <- frame

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"started","command_id":"cmd-1","pid":42}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"stdout","data":"hello\n","offset":0}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"exit","exit_code":0}`))

		closeWith(ws, websocket.CloseNormalClosure)
	})

	conn := dial(t, srv)
	ctx := context.Background()

	opts := config.NewRunOptions("echo hello")
	require.NoError(t, conn.SendExecute(ctx, opts))

	frame := <-frames
	require.Equal(t, "execute", frame["type"])
	require.Equal(t, "echo hello", frame["command"])
	require.InDelta(t, 60, frame["timeout"], 0)
	require.Equal(t, "/bin/bash", frame["shell"])
	require.NotContains(t, frame, "env")
	require.NotContains(t, frame, "cwd")

	ev, err := conn.Recv(ctx)
	require.NoError(t, err)

	started, ok := ev.(*message.StartedEvent)
	require.True(t, ok)
	require.Equal(t, "cmd-1", started.CommandID)
	require.NotNil(t, started.PID)
	require.Equal(t, 42, *started.PID)

	ev, err = conn.Recv(ctx)
	require.NoError(t, err)

	out, ok := ev.(*message.OutputEvent)
	require.True(t, ok, "unknown and binary frames must be skipped")
	require.Equal(t, message.StreamStdout, out.Stream)
	require.Equal(t, "hello\n", out.Data)

	ev, err = conn.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, "exit", ev.EventType())

	_, err = conn.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestConn_ControlFrames(t *testing.T) {
	frames := make(chan []byte, 4)

	srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
		for range 3 {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}

			frames <- data
		}

		closeWith(ws, websocket.CloseNormalClosure)
	})

	conn := dial(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.SendReconnect(ctx, "cmd-1", 12, 3))
	require.NoError(t, conn.SendInput(ctx, "y\n"))
	require.NoError(t, conn.SendKill(ctx))

	require.JSONEq(t, `{"type":"reconnect","command_id":"cmd-1","stdout_offset":12,"stderr_offset":3}`, string(<-frames))
	require.JSONEq(t, `{"type":"input","data":"y\n"}`, string(<-frames))
	require.JSONEq(t, `{"type":"kill"}`, string(<-frames))
}

func TestConn_CloseClassification(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		check func(t *testing.T, err error)
	}{
		{
			name: "going away is a server reload",
			code: websocket.CloseGoingAway,
			check: func(t *testing.T, err error) {
				t.Helper()

				_, ok := err.(*sdkerrors.ServerReloadError)
				require.True(t, ok, "expected *ServerReloadError, got %T", err)
			},
		},
		{
			name: "normal closure is end of stream",
			code: websocket.CloseNormalClosure,
			check: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, io.EOF)
			},
		},
		{
			name: "internal error is a connection error",
			code: websocket.CloseInternalServerErr,
			check: func(t *testing.T, err error) {
				t.Helper()

				connErr, ok := err.(*sdkerrors.ConnectionError)
				require.True(t, ok, "expected *ConnectionError, got %T", err)
				require.Contains(t, connErr.Message, "1011")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
				closeWith(ws, tt.code)
			})

			conn := dial(t, srv)

			_, err := conn.Recv(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestConn_AbruptDrop(t *testing.T) {
	srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_ = ws.NetConn().Close()
	})

	conn := dial(t, srv)

	_, err := conn.Recv(context.Background())
	require.Error(t, err)
	require.True(t, sdkerrors.IsConnectionLoss(err))
}

func TestConn_RecvContextCancel(t *testing.T) {
	release := make(chan struct{})

	srv := newServer(t, func(_ *websocket.Conn, _ *http.Request) {
		<-release
	})
	t.Cleanup(func() { close(release) })

	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_CloseIdempotent(t *testing.T) {
	srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_, _, _ = ws.ReadMessage()
	})

	conn := dial(t, srv)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	err := conn.SendKill(context.Background())
	require.ErrorIs(t, err, sdkerrors.ErrTransportClosed)
}

func TestConn_SendEnvAndCwd(t *testing.T) {
	frames := make(chan []byte, 1)

	srv := newServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		frames <- data

		closeWith(ws, websocket.CloseNormalClosure)
	})

	conn := dial(t, srv)

	opts := config.NewRunOptions("pwd")
	opts.Cwd = "/tmp"
	opts.Env = map[string]string{"FOO": "bar"}
	opts.Timeout = 90 * time.Second

	require.NoError(t, conn.SendExecute(context.Background(), opts))

	var frame message.ExecuteFrame
	require.NoError(t, json.Unmarshal(<-frames, &frame))
	require.Equal(t, "/tmp", frame.Cwd)
	require.Equal(t, map[string]string{"FOO": "bar"}, frame.Env)
	require.Equal(t, int64(90), frame.Timeout)
}
