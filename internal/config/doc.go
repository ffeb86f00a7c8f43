// Package config defines the deskhub configuration surface: the HTTP
// server, token verification against the identity provider tenant, and the
// role/scope authorization policy.
//
// Configuration is resolved once at startup from defaults, an optional YAML
// file, and environment overrides, then validated. Malformed configuration
// aborts startup; nothing is validated lazily at first request.
package config
