package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu       sync.Mutex
	received []string
}

func (f *fakeEngine) HandleMessage(_ context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	f.mu.Lock()
	f.received = append(f.received, string(message))
	f.mu.Unlock()

	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(message, &probe); err != nil || len(probe.ID) == 0 {
		return nil
	}
	return map[string]any{"jsonrpc": "2.0", "id": json.RawMessage(probe.ID), "result": map[string]any{}}
}

func newTestRegistry() (*Registry, *fakeEngine) {
	engine := &fakeEngine{}
	return NewRegistry(func() Engine { return engine }), engine
}

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`

func dispatch(t *testing.T, r *Registry, s *Session, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/mcp", nil)
	err := r.Dispatch(context.Background(), s, rec, req, []byte(body))
	require.NoError(t, err)
	return rec
}

func TestHandshakeAssignsServerGeneratedID(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())
	assert.Empty(t, s.ID())

	rec := dispatch(t, registry, s, initializeBody)

	assert.Equal(t, StateReady, s.State())
	require.NotEmpty(t, s.ID())
	assert.Equal(t, s.ID(), rec.Header().Get(SessionIDHeader))

	got, ok := registry.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, registry.Count())
}

func TestHandshakeIDsAreUnique(t *testing.T) {
	registry, _ := newTestRegistry()

	a, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	b, err := registry.ResolveOrCreate("")
	require.NoError(t, err)

	dispatch(t, registry, a, initializeBody)
	dispatch(t, registry, b, initializeBody)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, registry.Count())
}

func TestResolveUnknownIDReturnsNotFound(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.ResolveOrCreate("no-such-session")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no-such-session")
}

func TestResolveKnownIDReturnsSameSession(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	dispatch(t, registry, s, initializeBody)

	resolved, err := registry.ResolveOrCreate(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, resolved)
}

func TestRepeatedInitializeKeepsFirstID(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	dispatch(t, registry, s, initializeBody)
	first := s.ID()

	dispatch(t, registry, s, initializeBody)
	assert.Equal(t, first, s.ID())
	assert.Equal(t, 1, registry.Count())
}

func TestNotificationGetsAccepted(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	dispatch(t, registry, s, initializeBody)

	rec := dispatch(t, registry, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, 202, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCloseRemovesSessionAndIsIdempotent(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	dispatch(t, registry, s, initializeBody)
	id := s.ID()

	require.NoError(t, registry.Close(id))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, registry.Count())

	// Second close is a no-op.
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	// The identifier is gone for good.
	err = registry.Close(id)
	assert.True(t, IsNotFound(err))
}

func TestCloseBeforeHandshakePreventsRegistration(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/mcp", nil)
	err = registry.Dispatch(context.Background(), s, rec, req, []byte(initializeBody))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 0, registry.Count())
}

func TestRequestAfterCloseFails(t *testing.T) {
	registry, _ := newTestRegistry()

	s, err := registry.ResolveOrCreate("")
	require.NoError(t, err)
	dispatch(t, registry, s, initializeBody)
	require.NoError(t, s.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/mcp", nil)
	err = registry.Dispatch(context.Background(), s, rec, req, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestShutdownDrainsAllSessions(t *testing.T) {
	registry, _ := newTestRegistry()

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := registry.ResolveOrCreate("")
		require.NoError(t, err)
		dispatch(t, registry, s, initializeBody)
		sessions = append(sessions, s)
	}
	require.Equal(t, 3, registry.Count())

	require.NoError(t, registry.Shutdown(context.Background()))
	assert.Equal(t, 0, registry.Count())
	for _, s := range sessions {
		assert.Equal(t, StateClosed, s.State())
	}
}

func TestConcurrentCreateAndDispatch(t *testing.T) {
	registry, _ := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := registry.ResolveOrCreate("")
			if err != nil {
				t.Error(err)
				return
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/mcp", nil)
			if err := registry.Dispatch(context.Background(), s, rec, req, []byte(initializeBody)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, registry.Count())
}
