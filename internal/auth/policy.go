package auth

import "strings"

// Policy is the role/scope allow list evaluated after token verification.
// Matching is case-insensitive. The policy is immutable for the process
// lifetime; it is derived once from configuration at startup.
type Policy struct {
	allowedRoles  map[string]struct{}
	allowedScopes map[string]struct{}

	// Configured values preserved for diagnostics in deny responses.
	expectedRoles  []string
	expectedScopes []string
}

// Decision is the outcome of a policy evaluation. Deny decisions keep the
// claim's actual roles and scopes alongside the expected sets so the gate
// can emit a diagnostic response body.
type Decision struct {
	Allowed bool

	Roles  []string
	Scopes []string

	ExpectedRoles  []string
	ExpectedScopes []string
}

// NewPolicy builds a policy from the configured allow lists.
func NewPolicy(allowedRoles, allowedScopes []string) *Policy {
	p := &Policy{
		allowedRoles:   make(map[string]struct{}, len(allowedRoles)),
		allowedScopes:  make(map[string]struct{}, len(allowedScopes)),
		expectedRoles:  append([]string(nil), allowedRoles...),
		expectedScopes: append([]string(nil), allowedScopes...),
	}
	for _, r := range allowedRoles {
		p.allowedRoles[strings.ToLower(r)] = struct{}{}
	}
	for _, s := range allowedScopes {
		p.allowedScopes[strings.ToLower(s)] = struct{}{}
	}
	return p
}

// Evaluate decides whether the claims satisfy the policy. The decision is a
// logical OR across the two axes: any allowed role or any allowed scope
// passes. A token with neither is denied regardless of what other roles or
// scopes it carries.
func (p *Policy) Evaluate(claims *Claims) Decision {
	decision := Decision{
		Roles:          claims.Roles,
		Scopes:         claims.Scopes(),
		ExpectedRoles:  p.expectedRoles,
		ExpectedScopes: p.expectedScopes,
	}

	for _, role := range decision.Roles {
		if _, ok := p.allowedRoles[strings.ToLower(role)]; ok {
			decision.Allowed = true
			return decision
		}
	}
	for _, scope := range decision.Scopes {
		if _, ok := p.allowedScopes[strings.ToLower(scope)]; ok {
			decision.Allowed = true
			return decision
		}
	}

	return decision
}
