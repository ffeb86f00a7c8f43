// Package auth implements the bearer-token gate in front of the MCP
// endpoint: token verification against the identity provider's rotating
// key sets, the role/scope authorization policy, and the HTTP middleware
// composing the two.
//
// The gate maps every verification failure to a single unauthenticated
// response; the specific reason is logged server-side. Policy denials are
// distinct (403) and carry an expected-vs-actual diagnostic body, which is
// acceptable for this demo posture.
package auth
