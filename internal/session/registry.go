package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"deskhub/pkg/logging"
)

// Registry owns the full set of live sessions behind the stateful endpoint.
// It is the only component that creates, stores, and closes sessions; HTTP
// handlers borrow a session for the duration of one request.
type Registry struct {
	buildEngine func() Engine

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. buildEngine produces a fresh
// protocol engine per session so no tool state leaks between clients.
func NewRegistry(buildEngine func() Engine) *Registry {
	return &Registry{
		buildEngine: buildEngine,
		sessions:    make(map[string]*Session),
	}
}

// ResolveOrCreate maps a request's session identifier to a session. An empty
// identifier means a new client: a fresh session is created whose hooks
// insert it into the registry when the handshake completes and remove it on
// closure. A non-empty identifier must match a registered session, otherwise
// a NotFoundError is returned.
func (r *Registry) ResolveOrCreate(requestID string) (*Session, error) {
	if requestID == "" {
		return r.create(), nil
	}

	r.mu.RLock()
	s, ok := r.sessions[requestID]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ID: requestID}
	}
	return s, nil
}

// Get returns the registered session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) create() *Session {
	return New(r.buildEngine, Hooks{
		OnReady:  r.register,
		OnClosed: r.deregister,
	})
}

func (r *Registry) register(id string, s *Session) {
	// A close can race handshake completion; a closed session must never
	// land in the map.
	if s.State() == StateClosed {
		return
	}
	r.mu.Lock()
	r.sessions[id] = s
	total := len(r.sessions)
	r.mu.Unlock()
	logging.Info("Registry", "Session %s registered (%d active)", logging.TruncateSessionID(id), total)
}

func (r *Registry) deregister(id string, s *Session) {
	if id == "" {
		return
	}
	r.mu.Lock()
	// Only remove the exact session; identity matters if register lost the
	// race against close.
	cur, ok := r.sessions[id]
	if ok && cur == s {
		delete(r.sessions, id)
	}
	total := len(r.sessions)
	r.mu.Unlock()
	if ok && cur == s {
		logging.Info("Registry", "Session %s removed (%d active)", logging.TruncateSessionID(id), total)
	}
}

// Dispatch forwards one request body into the resolved session, waiting for
// engine attachment first.
func (r *Registry) Dispatch(ctx context.Context, s *Session, w http.ResponseWriter, req *http.Request, body []byte) error {
	return s.HandleRequest(ctx, w, req, body)
}

// Close closes the session registered under id. It reports NotFoundError
// for unknown identifiers.
func (r *Registry) Close(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	return s.Close()
}

// Shutdown drains the registry: every session is closed best-effort and all
// close errors are collected. The registry is empty afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	drained := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		drained = append(drained, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range drained {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(drained) > 0 {
		logging.Info("Registry", "Drained %d sessions on shutdown", len(drained))
	}
	return errors.Join(errs...)
}
