package sandboxtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Handler scripts one WebSocket connection to /execute/ws.
type Handler func(c *Conn)

// Server is a fake sandbox dataplane and control plane.
//
// Each accepted /execute/ws connection is served by the next scripted
// Handler; connections beyond the script are closed with an internal error.
// Every frame a handler reads is recorded per connection.
type Server struct {
	tb       testing.TB
	srv      *httptest.Server
	upgrader websocket.Upgrader

	// APIKey, when non-empty, is required in the X-Api-Key header.
	APIKey string

	mu        sync.Mutex
	handlers  []Handler
	conns     int
	frames    [][]map[string]any
	headers   []http.Header
	sandboxes map[string]map[string]any
}

// NewServer starts a fake server that serves handlers in order. The server
// is closed when the test ends.
func NewServer(tb testing.TB, handlers ...Handler) *Server {
	tb.Helper()

	s := &Server{
		tb:        tb,
		handlers:  handlers,
		sandboxes: make(map[string]map[string]any),
	}

	s.srv = httptest.NewServer(s.router())
	tb.Cleanup(s.srv.Close)

	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Get("/execute/ws", s.handleExecute)
	r.Get("/v2/sandboxes/boxes/{name}", s.handleGetSandbox)

	return r
}

// URL returns the server's HTTP base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Handle appends handlers for later connections.
func (s *Server) Handle(handlers ...Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, handlers...)
}

// Connections returns the number of accepted execution connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conns
}

// Frames returns the frames read on connection i (0-based).
func (s *Server) Frames(i int) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i >= len(s.frames) {
		return nil
	}

	return append([]map[string]any(nil), s.frames[i]...)
}

// Header returns the handshake headers of connection i (0-based).
func (s *Server) Header(i int) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i >= len(s.headers) {
		return nil
	}

	return s.headers[i].Clone()
}

// AddSandbox registers a control-plane record whose dataplane is this server.
func (s *Server) AddSandbox(name, templateName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sandboxes[name] = map[string]any{
		"name":          name,
		"template_name": templateName,
		"dataplane_url": s.srv.URL + "/",
		"id":            "sb-" + name,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("X-Api-Key") != s.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid API key"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetSandbox(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	info, ok := s.sandboxes[name]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Sandbox '" + name + "' not found"})

		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	s.mu.Lock()
	index := s.conns
	s.conns++
	s.frames = append(s.frames, nil)
	s.headers = append(s.headers, r.Header.Clone())

	var handler Handler
	if index < len(s.handlers) {
		handler = s.handlers[index]
	}
	s.mu.Unlock()

	c := &Conn{server: s, ws: ws, index: index}

	if handler == nil {
		c.Close(websocket.CloseInternalServerErr)

		return
	}

	handler(c)

	if !c.closed {
		c.Close(websocket.CloseNormalClosure)
	}
}

func (s *Server) record(index int, frame map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames[index] = append(s.frames[index], frame)
}

// Conn is the server side of one execution connection.
type Conn struct {
	server *Server
	ws     *websocket.Conn
	index  int
	closed bool
}

// Index returns the 0-based connection number.
func (c *Conn) Index() int {
	return c.index
}

// ReadFrame reads and records the next client frame. It returns nil once the
// client has gone away.
func (c *Conn) ReadFrame() map[string]any {
	_ = c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))

	var frame map[string]any
	if err := c.ws.ReadJSON(&frame); err != nil {
		return nil
	}

	c.server.record(c.index, frame)

	return frame
}

// ReadFrameType reads frames until one of type typ arrives.
func (c *Conn) ReadFrameType(typ string) map[string]any {
	for {
		frame := c.ReadFrame()
		if frame == nil || frame["type"] == typ {
			return frame
		}
	}
}

// SendStarted acknowledges the command.
func (c *Conn) SendStarted(commandID string, pid int) {
	c.send(map[string]any{"type": "started", "command_id": commandID, "pid": pid})
}

// SendStdout sends a stdout chunk starting at offset.
func (c *Conn) SendStdout(data string, offset int64) {
	c.send(map[string]any{"type": "stdout", "data": data, "offset": offset})
}

// SendStderr sends a stderr chunk starting at offset.
func (c *Conn) SendStderr(data string, offset int64) {
	c.send(map[string]any{"type": "stderr", "data": data, "offset": offset})
}

// SendExit reports the exit code.
func (c *Conn) SendExit(code int) {
	c.send(map[string]any{"type": "exit", "exit_code": code})
}

// SendError reports a server-side failure.
func (c *Conn) SendError(errorType, message string) {
	c.send(map[string]any{"type": "error", "error_type": errorType, "error": message})
}

// SendRaw writes a text frame verbatim.
func (c *Conn) SendRaw(text string) {
	_ = c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a close frame with code and waits briefly for the client's
// reply before closing the socket.
func (c *Conn) Close(code int) {
	if c.closed {
		return
	}

	c.closed = true

	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(time.Second),
	)

	_ = c.ws.SetReadDeadline(time.Now().Add(time.Second))

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			break
		}
	}

	_ = c.ws.Close()
}

// Drop closes the socket without a close frame.
func (c *Conn) Drop() {
	if c.closed {
		return
	}

	c.closed = true

	_ = c.ws.NetConn().Close()
}

// GoingAway closes the connection as a server reload would.
func (c *Conn) GoingAway() {
	c.Close(websocket.CloseGoingAway)
}

func (c *Conn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.tb.Errorf("sandboxtest: marshal frame: %v", err)

		return
	}

	_ = c.ws.WriteMessage(websocket.TextMessage, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
