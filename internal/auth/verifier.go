package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"deskhub/internal/keyset"

	"github.com/golang-jwt/jwt/v5"
)

// acceptedAlgorithm is the single signing algorithm the verifier accepts.
const acceptedAlgorithm = "RS256"

// TokenInvalidError describes why a bearer token failed verification. The
// reason is logged server-side and surfaced to callers only through the
// gate's generic 401 body.
type TokenInvalidError struct {
	Reason string
	Err    error
}

func (e *TokenInvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return "invalid token: " + e.Reason
}

func (e *TokenInvalidError) Unwrap() error { return e.Err }

// KeyResolver resolves a signing key by the identifier found in an
// unverified token header.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// VerifierConfig carries the issuer and audience sets a token must satisfy.
type VerifierConfig struct {
	// Issuers is the accepted issuer set. Membership, not prefix match.
	Issuers []string

	// Audiences is the accepted audience set: the expected audience plus an
	// optional secondary value for migrations. Exact string match.
	Audiences []string
}

// Verifier verifies bearer tokens: signature (via the key resolver),
// issuer, audience, and time claims. Verification is a single-shot check
// per request with no retries; the only suspension is the resolver's
// network fetch.
type Verifier struct {
	config   VerifierConfig
	resolver KeyResolver
	parser   *jwt.Parser
}

// NewVerifier creates a token verifier over the given key resolver.
func NewVerifier(config VerifierConfig, resolver KeyResolver) *Verifier {
	return &Verifier{
		config:   config,
		resolver: resolver,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{acceptedAlgorithm}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks the token and returns its claims, or a *TokenInvalidError.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	decoded := &tokenClaims{}

	token, err := v.parser.ParseWithClaims(tokenString, decoded, func(t *jwt.Token) (interface{}, error) {
		// The header is attacker-controlled at this point; kid is used for
		// key selection only.
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token header has no key identifier")
		}
		return v.resolver.ResolveKey(ctx, kid)
	})
	if err != nil {
		return nil, &TokenInvalidError{Reason: classifyParseError(err), Err: err}
	}
	if !token.Valid {
		return nil, &TokenInvalidError{Reason: "token not valid"}
	}

	if !contains(v.config.Issuers, decoded.Issuer) {
		return nil, &TokenInvalidError{
			Reason: fmt.Sprintf("issuer %q not in accepted issuer set", decoded.Issuer),
		}
	}

	if !audienceAccepted(decoded.Audience, v.config.Audiences) {
		return nil, &TokenInvalidError{
			Reason: fmt.Sprintf("audience %v does not match expected audience", []string(decoded.Audience)),
		}
	}

	return decoded.toClaims(), nil
}

// classifyParseError maps library failures onto the short reasons the gate
// logs. The library message rides along via the wrapped error.
func classifyParseError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token not yet valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature verification failed"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, keyset.ErrKeyResolutionFailed):
		return "signing key resolution failed"
	default:
		return "token verification failed"
	}
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

func audienceAccepted(tokenAudiences []string, accepted []string) bool {
	for _, aud := range tokenAudiences {
		if contains(accepted, aud) {
			return true
		}
	}
	return false
}
