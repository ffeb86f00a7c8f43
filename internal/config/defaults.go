package config

import "fmt"

const (
	// DefaultPort is the port the MCP endpoint binds to.
	DefaultPort = 3000

	// DefaultHost is the interface the server binds to.
	DefaultHost = "localhost"

	// DefaultIssuerBase is the identity provider base URL used to derive
	// tenant issuer and key-set endpoints.
	DefaultIssuerBase = "https://login.microsoftonline.com"

	// DefaultRateLimitWindowSeconds is the refill window for request limiting.
	DefaultRateLimitWindowSeconds = 60

	// DefaultRateLimitMaxRequests is the request ceiling per window.
	DefaultRateLimitMaxRequests = 120
)

// DefaultAllowedRoles is the role allow list applied when none is configured.
// The policy invariant requires a non-empty set.
var DefaultAllowedRoles = []string{"Mcp.User"}

// DefaultAllowedScopes is the scope allow list applied when none is configured.
var DefaultAllowedScopes = []string{"mcp.access"}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
			Mode: ModeStateful,
			RateLimit: RateLimitConfig{
				WindowSeconds: DefaultRateLimitWindowSeconds,
				MaxRequests:   DefaultRateLimitMaxRequests,
			},
		},
		Auth: AuthConfig{
			IssuerBase: DefaultIssuerBase,
		},
		Policy: PolicyConfig{
			AllowedRoles:  append([]string(nil), DefaultAllowedRoles...),
			AllowedScopes: append([]string(nil), DefaultAllowedScopes...),
		},
	}
}

// DerivedIssuers returns the accepted issuer set for the auth config,
// honoring explicit overrides first.
func (a AuthConfig) DerivedIssuers() []string {
	if len(a.Issuers) > 0 {
		return a.Issuers
	}

	base := a.IssuerBase
	if base == "" {
		base = DefaultIssuerBase
	}

	issuers := []string{fmt.Sprintf("%s/%s/v2.0", base, a.TenantID)}
	if a.AcceptLegacyIssuer {
		issuers = append(issuers, fmt.Sprintf("https://sts.windows.net/%s/", a.TenantID))
	}
	return issuers
}

// DerivedKeySetURLs returns the ordered key-set sources for the auth config.
// The primary v2.0 endpoint is always first; the legacy endpoint is the
// fallback.
func (a AuthConfig) DerivedKeySetURLs() []string {
	if len(a.KeySetURLs) > 0 {
		return a.KeySetURLs
	}

	base := a.IssuerBase
	if base == "" {
		base = DefaultIssuerBase
	}

	return []string{
		fmt.Sprintf("%s/%s/discovery/v2.0/keys", base, a.TenantID),
		fmt.Sprintf("%s/%s/discovery/keys", base, a.TenantID),
	}
}
