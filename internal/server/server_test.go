package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deskhub/internal/auth"
	"deskhub/internal/config"
	"deskhub/internal/engine"
	"deskhub/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (*auth.Claims, error) {
	return s.claims, s.err
}

func allowedClaims() *auth.Claims {
	return &auth.Claims{Subject: "user-1", Roles: []string{"Mcp.User"}}
}

// newTestHandler builds the full middleware stack around a stub verifier so
// endpoint behavior can be exercised without a real identity provider.
func newTestHandler(t *testing.T, mode config.ServeMode, verifier auth.TokenVerifier) (http.Handler, *mcpHandler) {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Server.Mode = mode

	h := newMCPHandler(mode, func() session.Engine { return engine.New() })
	s := &Server{cfg: cfg, handler: h}
	policy := auth.NewPolicy(cfg.Policy.AllowedRoles, cfg.Policy.AllowedScopes)
	return s.buildMux(auth.NewGate(verifier, policy)), h
}

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test-client","version":"0.0.1"}}}`

func doMCP(handler http.Handler, sessionID, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(session.SessionIDHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateful, &stubVerifier{err: fmt.Errorf("must not be called")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"mcp":"/mcp"}`, rec.Body.String())
}

func TestMissingBearerToken(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "", "", initializeRequest)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Missing bearer token"}`, rec.Body.String())
}

func TestInvalidToken(t *testing.T) {
	verifier := &stubVerifier{err: &auth.TokenInvalidError{Reason: "token expired"}}
	handler, _ := newTestHandler(t, config.ModeStateful, verifier)

	rec := doMCP(handler, "", "bad-token", initializeRequest)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid token", body["error"])
	assert.Contains(t, body["detail"], "token expired")
}

func TestInsufficientPermissions(t *testing.T) {
	verifier := &stubVerifier{claims: &auth.Claims{Subject: "user-2", Roles: []string{"Other.Role"}}}
	handler, _ := newTestHandler(t, config.ModeStateful, verifier)

	rec := doMCP(handler, "", "some-token", initializeRequest)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body struct {
		Error  string `json:"error"`
		Detail struct {
			Roles    []string `json:"roles"`
			Scopes   []string `json:"scopes"`
			Expected struct {
				AnyRoleIn  []string `json:"anyRoleIn"`
				AnyScopeIn []string `json:"anyScopeIn"`
			} `json:"expected"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Insufficient permissions", body.Error)
	assert.Equal(t, []string{"Other.Role"}, body.Detail.Roles)
	assert.Equal(t, []string{"Mcp.User"}, body.Detail.Expected.AnyRoleIn)
	assert.Equal(t, []string{"mcp.access"}, body.Detail.Expected.AnyScopeIn)
}

func TestStatefulInitializeIssuesSessionID(t *testing.T) {
	handler, h := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "", "token", initializeRequest)

	require.Equal(t, http.StatusOK, rec.Code)
	sid := rec.Header().Get(session.SessionIDHeader)
	require.NotEmpty(t, sid)
	assert.Equal(t, 1, h.Registry().Count())

	// The issued identifier resolves back to the same live session.
	rec = doMCP(handler, sid, "token", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sid, rec.Header().Get(session.SessionIDHeader))
	assert.Contains(t, rec.Body.String(), "lookup_order")
}

func TestUnknownSessionIDReturnsNotFound(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "abc-123", "token", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32001,"message":"Session not found"},"id":null}`, rec.Body.String())
}

func TestDeleteTearsDownSession(t *testing.T) {
	handler, h := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "", "token", initializeRequest)
	sid := rec.Header().Get(session.SessionIDHeader)
	require.NotEmpty(t, sid)
	require.Equal(t, 1, h.Registry().Count())

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set(session.SessionIDHeader, sid)
	del := httptest.NewRecorder()
	handler.ServeHTTP(del, req)

	assert.Equal(t, http.StatusOK, del.Code)
	assert.Equal(t, 0, h.Registry().Count())

	// A second DELETE for the same id is a stale identifier.
	del = httptest.NewRecorder()
	handler.ServeHTTP(del, req)
	assert.Equal(t, http.StatusNotFound, del.Code)
	assert.Contains(t, del.Body.String(), "-32001")
}

func TestGetMCPIsMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, DELETE", rec.Header().Get("Allow"))
	assert.Contains(t, rec.Body.String(), "Method not allowed")
}

func TestStatelessModeEmitsNoSessionHeader(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateless, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "", "token", initializeRequest)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(session.SessionIDHeader))

	// Every request stands alone; no session tracking is involved.
	rec = doMCP(handler, "", "token", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lookup_ticket")
}

func TestSharedModeServesWithoutSessionHeader(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeShared, &stubVerifier{claims: allowedClaims()})

	rec := doMCP(handler, "", "token", initializeRequest)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doMCP(handler, "", "token", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "render_support_email")
}

func TestRateLimitCeiling(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 2}

	h := newMCPHandler(config.ModeShared, func() session.Engine { return engine.New() })
	s := &Server{cfg: cfg, handler: h}
	policy := auth.NewPolicy(cfg.Policy.AllowedRoles, cfg.Policy.AllowedScopes)
	handler := s.buildMux(auth.NewGate(&stubVerifier{claims: allowedClaims()}, policy))

	for i := 0; i < 2; i++ {
		rec := doMCP(handler, "", "token", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}

	rec := doMCP(handler, "", "token", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCORSPreflightBypassesAuth(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}

	h := newMCPHandler(config.ModeShared, func() session.Engine { return engine.New() })
	s := &Server{cfg: cfg, handler: h}
	policy := auth.NewPolicy(cfg.Policy.AllowedRoles, cfg.Policy.AllowedScopes)
	handler := s.buildMux(auth.NewGate(&stubVerifier{err: fmt.Errorf("must not be called")}, policy))

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), session.SessionIDHeader)
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}

	h := newMCPHandler(config.ModeShared, func() session.Engine { return engine.New() })
	s := &Server{cfg: cfg, handler: h}
	policy := auth.NewPolicy(cfg.Policy.AllowedRoles, cfg.Policy.AllowedScopes)
	handler := s.buildMux(auth.NewGate(&stubVerifier{claims: allowedClaims()}, policy))

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeadersPresent(t *testing.T) {
	handler, _ := newTestHandler(t, config.ModeStateful, &stubVerifier{claims: allowedClaims()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRecoverMiddlewareCatchesPanics(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestNewWiresFromConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Auth.TenantID = "tenant-1"
	cfg.Auth.Audience = "api://deskhub"

	s, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.Handler())

	// The health endpoint works on the assembled handler without any auth
	// configuration beyond the above.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
