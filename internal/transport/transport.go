// Package transport delivers rendered messages through a configured
// backend. A Transport opens Connections; a Connection sends any number of
// messages before it is closed.
package transport

import (
	"context"

	"github.com/sungwon/post-office/internal/mail"
)

// Transport opens connections to one delivery backend.
type Transport interface {
	// Name returns the backend alias the transport was registered under.
	Name() string
	// Open establishes a connection. Failures are reported as *Error.
	Open(ctx context.Context) (Connection, error)
}

// Connection sends messages over an open session. It is used by a single
// goroutine at a time.
type Connection interface {
	// Send delivers msg. Subject and bodies must already be rendered and
	// attachment content loaded.
	Send(ctx context.Context, msg *mail.Message) error
	// Close ends the session.
	Close() error
}
