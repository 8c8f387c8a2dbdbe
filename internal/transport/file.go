package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sungwon/post-office/internal/mail"
)

// File writes each message as an .eml file into a directory. Intended for
// development and for inspecting rendered output.
type File struct {
	name string
	dir  string
	now  func() time.Time
}

// NewFile creates a File transport writing into dir.
func NewFile(name, dir string) *File {
	return &File{name: name, dir: dir, now: time.Now}
}

func (f *File) Name() string { return f.name }

// Open verifies the output directory is writable.
func (f *File) Open(_ context.Context) (Connection, error) {
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return nil, &Error{Transport: f.name, Op: OpOpen, Message: err.Error(), Err: err}
	}
	return fileConn{f}, nil
}

type fileConn struct {
	f *File
}

// Send writes <timestamp>_<message-id>.eml.
func (c fileConn) Send(_ context.Context, msg *mail.Message) error {
	now := c.f.now()
	raw, err := Build(msg, now)
	if err != nil {
		return &Error{Transport: c.f.name, Op: OpSend, Message: err.Error(), Permanent: true, Err: err}
	}

	name := fmt.Sprintf("%s_%s.eml", now.Format("20060102_150405"), msg.ID)
	path := filepath.Join(c.f.dir, name)
	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return &Error{Transport: c.f.name, Op: OpSend, Message: err.Error(), Err: err}
	}
	return nil
}

func (fileConn) Close() error { return nil }
