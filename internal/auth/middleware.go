package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"deskhub/pkg/logging"
)

const bearerPrefix = "Bearer "

// TokenVerifier verifies a bearer token string and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*Claims, error)
}

// Gate is the authentication/authorization guard in front of the MCP
// endpoint. It runs once per inbound request, holds no state, and performs
// no mutation beyond a log line and the request-scoped claims attachment.
type Gate struct {
	verifier TokenVerifier
	policy   *Policy
}

// NewGate composes the verifier and policy into a request guard.
func NewGate(verifier TokenVerifier, policy *Policy) *Gate {
	return &Gate{verifier: verifier, policy: policy}
}

// Middleware wraps a handler with the auth gate. Requests without a valid
// token get 401; tokens failing the policy get 403. On success the verified
// claims are attached to the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail fast on a missing token: no network calls are made.
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeGateJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error": "Missing bearer token",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		claims, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			// Key resolution and upstream failures also land here: the
			// gate fails closed with the same unauthenticated response.
			logging.Warn("AuthGate", "Rejected token: %v", err)
			writeGateJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error":  "Invalid token",
				"detail": gateDetail(err),
			})
			return
		}

		decision := g.policy.Evaluate(claims)
		if !decision.Allowed {
			logging.Warn("AuthGate", "Denied subject %s: roles=%v scopes=%v", claims.Subject, decision.Roles, decision.Scopes)
			writeGateJSON(w, http.StatusForbidden, map[string]interface{}{
				"error": "Insufficient permissions",
				"detail": map[string]interface{}{
					"roles":  emptyIfNil(decision.Roles),
					"scopes": emptyIfNil(decision.Scopes),
					"expected": map[string]interface{}{
						"anyRoleIn":  emptyIfNil(decision.ExpectedRoles),
						"anyScopeIn": emptyIfNil(decision.ExpectedScopes),
					},
				},
			})
			return
		}

		logging.Debug("AuthGate", "Authenticated subject %s", claims.Subject)
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// gateDetail is what the 401 body carries: the short reason plus the
// library's message, never upstream internals beyond that.
func gateDetail(err error) string {
	var invalid *TokenInvalidError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	return "token verification failed"
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeGateJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("AuthGate", err, "Failed to write response body")
	}
}
