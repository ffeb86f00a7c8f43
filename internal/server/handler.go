package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"deskhub/internal/config"
	"deskhub/internal/session"
	"deskhub/pkg/logging"
)

// maxBodyBytes bounds a single JSON-RPC request body.
const maxBodyBytes = 4 << 20

// jsonrpcError is the wire shape of a transport-level JSON-RPC failure.
type jsonrpcError struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   jsonrpcErrorObj `json:"error"`
	ID      interface{}     `json:"id"`
}

type jsonrpcErrorObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, jsonrpcError{
		JSONRPC: "2.0",
		Error:   jsonrpcErrorObj{Code: code, Message: message},
		ID:      nil,
	})
}

func writeSessionNotFound(w http.ResponseWriter) {
	writeJSONRPCError(w, http.StatusNotFound, -32001, "Session not found")
}

// mcpHandler serves the tool endpoint in one of the three serving modes.
type mcpHandler struct {
	mode        config.ServeMode
	buildEngine func() session.Engine

	// registry backs stateful mode.
	registry *session.Registry

	// shared backs shared mode: one engine for every request, no session
	// identifiers issued or accepted.
	shared session.Engine
}

func newMCPHandler(mode config.ServeMode, buildEngine func() session.Engine) *mcpHandler {
	h := &mcpHandler{
		mode:        mode,
		buildEngine: buildEngine,
	}
	switch mode {
	case config.ModeStateful:
		h.registry = session.NewRegistry(buildEngine)
	case config.ModeShared:
		h.shared = buildEngine()
	}
	return h
}

// Registry exposes the session registry in stateful mode, nil otherwise.
func (h *mcpHandler) Registry() *session.Registry {
	return h.registry
}

func (h *mcpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		// No standalone SSE stream: GET and anything else is refused.
		w.Header().Set("Allow", "POST, DELETE")
		writeJSONRPCError(w, http.StatusMethodNotAllowed, -32000, "Method not allowed")
	}
}

func (h *mcpHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, -32700, "Parse error")
		return
	}

	switch h.mode {
	case config.ModeStateful:
		h.dispatchStateful(w, r, body)
	case config.ModeStateless:
		// Fresh engine per request, discarded afterwards. Never touches the
		// registry and never emits a session header.
		h.respondDirect(w, r, h.buildEngine(), body)
	case config.ModeShared:
		h.respondDirect(w, r, h.shared, body)
	}
}

func (h *mcpHandler) dispatchStateful(w http.ResponseWriter, r *http.Request, body []byte) {
	sid := r.Header.Get(session.SessionIDHeader)
	s, err := h.registry.ResolveOrCreate(sid)
	if err != nil {
		logging.Warn("HTTP", "Rejecting unknown session %s", logging.TruncateSessionID(sid))
		writeSessionNotFound(w)
		return
	}

	if err := h.registry.Dispatch(r.Context(), s, w, r, body); err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			writeSessionNotFound(w)
			return
		}
		logging.Error("HTTP", err, "Dispatch failed for session %s", logging.TruncateSessionID(s.ID()))
		writeJSONRPCError(w, http.StatusInternalServerError, -32603, "Internal error")
	}
}

// respondDirect runs the body straight through an engine without any session
// bookkeeping.
func (h *mcpHandler) respondDirect(w http.ResponseWriter, r *http.Request, engine session.Engine, body []byte) {
	response := engine.HandleMessage(r.Context(), json.RawMessage(body))

	w.Header().Set("Content-Type", "application/json")
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *mcpHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if h.mode != config.ModeStateful {
		w.Header().Set("Allow", "POST")
		writeJSONRPCError(w, http.StatusMethodNotAllowed, -32000, "Method not allowed")
		return
	}

	sid := r.Header.Get(session.SessionIDHeader)
	if sid == "" {
		writeSessionNotFound(w)
		return
	}
	if err := h.registry.Close(sid); err != nil {
		writeSessionNotFound(w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// healthHandler reports liveness without requiring auth.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"mcp": "/mcp",
	})
}
