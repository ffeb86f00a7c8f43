package session

import (
	"errors"
	"fmt"
)

// SessionIDHeader carries the session identifier on requests and responses.
const SessionIDHeader = "Mcp-Session-Id"

// ErrSessionClosed is returned when a request reaches a session after its
// transport already signalled closure.
var ErrSessionClosed = errors.New("session closed")

// NotFoundError indicates a client supplied a session identifier the
// registry does not know. The server maps this to JSON-RPC code -32001.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// IsNotFound reports whether err is a session-not-found error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
