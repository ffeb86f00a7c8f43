// Package engine builds the MCP protocol engine that serves the deskhub
// demo tool surface: order lookup, ticket lookup, and support email
// rendering. The tools are simulated responders with deterministic shapes
// and random values; the interesting machinery lives in front of them.
package engine
