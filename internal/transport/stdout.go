package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sungwon/post-office/internal/mail"
)

// Stdout prints a summary of each message instead of delivering it.
// Intended for development.
type Stdout struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewStdout creates a Stdout transport writing to os.Stdout.
func NewStdout(name string) *Stdout {
	return NewStdoutWriter(name, os.Stdout)
}

// NewStdoutWriter creates a Stdout transport writing to w.
func NewStdoutWriter(name string, w io.Writer) *Stdout {
	return &Stdout{name: name, w: w}
}

func (s *Stdout) Name() string { return s.name }

func (s *Stdout) Open(_ context.Context) (Connection, error) {
	return stdoutConn{s}, nil
}

type stdoutConn struct {
	s *Stdout
}

func (c stdoutConn) Send(_ context.Context, msg *mail.Message) error {
	var b strings.Builder
	b.WriteString("--- stdout transport: message ---\n")
	fmt.Fprintf(&b, "ID:       %s\n", msg.ID)
	fmt.Fprintf(&b, "From:     %s\n", msg.From)
	fmt.Fprintf(&b, "To:       %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject:  %s\n", msg.Subject)
	fmt.Fprintf(&b, "Priority: %s\n", msg.Priority)
	for k, v := range msg.Headers {
		fmt.Fprintf(&b, "Header:   %s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "Body:     (%d bytes text, %d bytes html)\n", len(msg.Body), len(msg.HTMLBody))
	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "Attach:   %s (%s, %d bytes)\n", a.Name, a.ContentType, len(a.Content))
	}
	b.WriteString("--- end ---\n")

	// Connections from parallel workers share the writer.
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, err := io.WriteString(c.s.w, b.String()); err != nil {
		return &Error{Transport: c.s.name, Op: OpSend, Message: err.Error(), Err: err}
	}
	return nil
}

func (stdoutConn) Close() error { return nil }
