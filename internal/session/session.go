package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"deskhub/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// State is the lifecycle state of a session. Transitions are strictly
// Created -> Ready -> Closed; a session never leaves Closed.
type State int

const (
	// StateCreated means the session exists but the handshake has not
	// completed; no identifier is assigned yet.
	StateCreated State = iota

	// StateReady means the handshake completed, an identifier was assigned,
	// and the session is registered.
	StateReady

	// StateClosed means the transport signalled closure and the session was
	// deregistered.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine is the protocol engine boundary: it interprets a raw JSON-RPC
// message and produces a response message (nil for notifications).
// *server.MCPServer satisfies this.
type Engine interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage
}

// Hooks notify the owning registry of the two lifecycle transitions. Each
// fires exactly once per session regardless of timing.
type Hooks struct {
	// OnReady runs when the handshake completes and the server-generated
	// identifier is assigned.
	OnReady func(id string, s *Session)

	// OnClosed runs when the transport signals closure.
	OnClosed func(id string, s *Session)
}

// Session represents one logical client connection multiplexed over the
// shared endpoint. It owns a protocol engine instance and a transport
// adapter; the registry exclusively owns the Session itself.
type Session struct {
	engine    Engine
	transport *StreamableTransport

	// attached is closed once the engine has finished attaching to the
	// transport. Dispatch must wait on it before forwarding a body.
	attached chan struct{}
}

// New creates a session around a freshly built protocol engine and starts
// attaching the engine to the transport asynchronously. Callers wait on
// Attached before dispatching.
func New(buildEngine func() Engine, hooks Hooks) *Session {
	s := &Session{
		attached: make(chan struct{}),
	}
	s.transport = newStreamableTransport(uuid.NewString, hooks, s)

	go func() {
		// Engine construction registers the tool surface; doing it off the
		// request path keeps create cheap under bursts of new clients.
		engine := buildEngine()
		s.transport.attach(engine)
		s.engine = engine
		close(s.attached)
	}()

	return s
}

// Attached returns the readiness future for engine-to-transport attachment.
func (s *Session) Attached() <-chan struct{} {
	return s.attached
}

// ID returns the server-generated session identifier, empty until the
// handshake completes.
func (s *Session) ID() string {
	return s.transport.sessionID()
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.transport.state()
}

// HandleRequest waits for attachment and forwards the raw request/response
// pair and body into the transport adapter.
func (s *Session) HandleRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, body []byte) error {
	select {
	case <-s.attached:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.transport.handlePost(ctx, w, r, body)
}

// Close signals transport closure. It is idempotent: the first call
// transitions the session to Closed and fires the closed hook; later calls
// are no-ops.
func (s *Session) Close() error {
	return s.transport.close()
}

// StreamableTransport is the per-session HTTP transport adapter. It parses
// JSON-RPC bodies, completes the handshake by generating the session
// identifier on the first initialize request, and relays everything else to
// the attached protocol engine.
type StreamableTransport struct {
	newID   func() string
	hooks   Hooks
	session *Session

	mu     sync.Mutex
	engine Engine
	id     string
	st     State
}

func newStreamableTransport(newID func() string, hooks Hooks, owner *Session) *StreamableTransport {
	return &StreamableTransport{
		newID:   newID,
		hooks:   hooks,
		session: owner,
	}
}

func (t *StreamableTransport) attach(engine Engine) {
	t.mu.Lock()
	t.engine = engine
	t.mu.Unlock()
}

func (t *StreamableTransport) sessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *StreamableTransport) state() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// jsonrpcProbe is the minimal decode needed to steer transport behavior.
type jsonrpcProbe struct {
	Method string `json:"method"`
}

// handlePost processes one POST body against the session's engine.
func (t *StreamableTransport) handlePost(ctx context.Context, w http.ResponseWriter, r *http.Request, body []byte) error {
	var probe jsonrpcProbe
	_ = json.Unmarshal(body, &probe)

	t.mu.Lock()
	engine := t.engine
	closed := t.st == StateClosed
	t.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}

	response := engine.HandleMessage(ctx, json.RawMessage(body))

	// The initialize handshake completes here: generate the identifier,
	// transition to Ready, and let the registry know exactly once.
	if probe.Method == "initialize" {
		t.completeHandshake()
	}

	if id := t.sessionID(); id != "" {
		w.Header().Set(SessionIDHeader, id)
	}
	w.Header().Set("Content-Type", "application/json")

	if response == nil {
		// Notifications produce no response body.
		w.WriteHeader(http.StatusAccepted)
		return nil
	}

	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(response)
}

// completeHandshake assigns the server-generated identifier and fires the
// ready hook. Safe against repeated initialize requests: only the first
// transition out of Created does anything.
func (t *StreamableTransport) completeHandshake() {
	t.mu.Lock()
	if t.st != StateCreated {
		t.mu.Unlock()
		return
	}
	t.id = t.newID()
	t.st = StateReady
	id := t.id
	t.mu.Unlock()

	logging.Debug("Session", "Handshake complete, session %s ready", logging.TruncateSessionID(id))
	if t.hooks.OnReady != nil {
		t.hooks.OnReady(id, t.session)
	}
}

// close transitions to Closed and fires the closed hook exactly once.
func (t *StreamableTransport) close() error {
	t.mu.Lock()
	if t.st == StateClosed {
		t.mu.Unlock()
		return nil
	}
	wasReady := t.st == StateReady
	id := t.id
	t.st = StateClosed
	t.mu.Unlock()

	if wasReady {
		logging.Debug("Session", "Session %s closed", logging.TruncateSessionID(id))
	}
	if t.hooks.OnClosed != nil {
		t.hooks.OnClosed(id, t.session)
	}
	return nil
}
