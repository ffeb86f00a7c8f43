// Package keyset resolves token signing keys from remote JWKS endpoints.
//
// The resolver walks an ordered list of key-set sources: the tenant's
// current discovery endpoint first, the legacy endpoint as a fallback. Keys
// are cached by identifier after the first successful fetch. Failed
// resolution is safe by construction: the token verifier rejects any token
// whose key cannot be resolved.
package keyset
