package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a successfully verified bearer token.
// It is immutable once produced and lives only for the request that carried
// the token; nothing persists it.
type Claims struct {
	Issuer    string
	Subject   string
	Audiences []string
	ExpiresAt time.Time

	// Roles is the application-role claim, empty when absent.
	Roles []string

	// Scope is the raw space-delimited scope claim, empty when absent.
	Scope string
}

// Scopes splits the scope claim on whitespace.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// tokenClaims is the wire shape the verifier decodes. Registered claims are
// validated by the JWT library; roles and scp feed the authorization policy.
type tokenClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scp,omitempty"`
}

func (tc *tokenClaims) toClaims() *Claims {
	claims := &Claims{
		Issuer:    tc.Issuer,
		Subject:   tc.Subject,
		Audiences: tc.Audience,
		Roles:     tc.Roles,
		Scope:     tc.Scope,
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims
}
