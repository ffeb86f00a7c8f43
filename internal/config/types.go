package config

// ServeMode selects how inbound MCP requests are mapped onto protocol
// engine instances.
type ServeMode string

const (
	// ModeStateful multiplexes many client sessions over the endpoint via
	// the session registry. Session IDs are server-generated and required
	// after the initialize handshake.
	ModeStateful ServeMode = "stateful"

	// ModeStateless creates a fresh, unregistered engine for every request.
	// No session IDs are issued or accepted.
	ModeStateless ServeMode = "stateless"

	// ModeShared routes every request into a single shared engine instance.
	ModeShared ServeMode = "shared"
)

// Config is the top-level configuration for deskhub.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Policy PolicyConfig `yaml:"policy"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string    `yaml:"host,omitempty"`
	Port int       `yaml:"port,omitempty"`
	Mode ServeMode `yaml:"mode,omitempty"`

	// CORSOrigins lists the origins allowed to reach the MCP endpoint from
	// a browser context. Empty means no cross-origin access.
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`

	// RateLimit bounds the request rate per remote address.
	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// WindowSeconds is the refill window for the bucket.
	WindowSeconds int `yaml:"windowSeconds,omitempty"`
	// MaxRequests is the ceiling of requests per window.
	MaxRequests int `yaml:"maxRequests,omitempty"`
}

// AuthConfig configures token verification against the identity provider.
type AuthConfig struct {
	// TenantID identifies the identity provider tenant. Key-set and issuer
	// URLs are derived from it unless overridden below.
	TenantID string `yaml:"tenantId"`

	// Audience is the expected aud claim, exact match.
	Audience string `yaml:"audience"`

	// SecondaryAudience is an optional additional accepted aud value, used
	// during audience migrations.
	SecondaryAudience string `yaml:"secondaryAudience,omitempty"`

	// Issuers overrides the accepted issuer set. When empty, the v2 issuer
	// derived from IssuerBase and TenantID is used, plus the legacy v1 form
	// when AcceptLegacyIssuer is set.
	Issuers []string `yaml:"issuers,omitempty"`

	// AcceptLegacyIssuer additionally accepts the v1 issuer form.
	AcceptLegacyIssuer bool `yaml:"acceptLegacyIssuer,omitempty"`

	// IssuerBase is the identity provider base URL used to derive issuer
	// and key-set endpoints for the tenant.
	IssuerBase string `yaml:"issuerBase,omitempty"`

	// KeySetURLs overrides the ordered key-set sources. When empty, the
	// primary (v2.0) and legacy discovery endpoints are derived from
	// IssuerBase and TenantID.
	KeySetURLs []string `yaml:"keySetUrls,omitempty"`
}

// PolicyConfig configures the role/scope allow lists. Matching is
// case-insensitive; a token passes when any role OR any scope matches.
type PolicyConfig struct {
	AllowedRoles  []string `yaml:"allowedRoles,omitempty"`
	AllowedScopes []string `yaml:"allowedScopes,omitempty"`
}
