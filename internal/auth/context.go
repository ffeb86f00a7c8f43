package auth

import "context"

type claimsContextKey struct{}

// ContextWithClaims attaches verified claims to the request context. Claims
// are request-scoped; downstream code uses them for diagnostics and audit
// only.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified claims attached by the gate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}
