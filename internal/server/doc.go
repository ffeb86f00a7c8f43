// Package server assembles the HTTP surface of deskhub.
//
// A single /mcp endpoint accepts JSON-RPC POST bodies behind a middleware
// chain of panic recovery, security headers, CORS, per-client rate limiting,
// and the bearer-token auth gate. Depending on the configured serving mode
// the endpoint either multiplexes registered sessions (stateful), builds a
// throwaway engine per request (stateless), or funnels everything into one
// engine (shared). DELETE /mcp tears a session down, and /health answers
// without authentication.
package server
