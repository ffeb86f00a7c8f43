// Package session manages the logical client sessions multiplexed over the
// single tool endpoint.
//
// Each Session owns one protocol engine instance plus a streamable HTTP
// transport adapter. The adapter completes the handshake by generating a
// server-side random identifier on the first initialize request and reports
// the two lifecycle transitions (ready, closed) back to the Registry through
// hooks, so the registry map only ever holds sessions that finished their
// handshake and have not closed.
//
// Clients resume a session by echoing the Mcp-Session-Id response header on
// subsequent requests. Identifiers the registry does not know yield a
// NotFoundError, which the server layer maps to JSON-RPC code -32001.
package session
