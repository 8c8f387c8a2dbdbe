package transport

import (
	"errors"
	"fmt"
	"net"
)

// Operation names used in Error.Op.
const (
	OpOpen = "open"
	OpSend = "send"
)

// Error is a classified delivery failure.
type Error struct {
	// Transport is the backend alias that failed.
	Transport string
	// Op is the step that failed: OpOpen or OpSend.
	Op string
	// Code is the SMTP reply code or HTTP status, or 0 when the failure had
	// none.
	Code int
	// Message describes the failure.
	Message string
	// Permanent indicates the message will not succeed on a later attempt.
	Permanent bool
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s: %d %s", e.Transport, e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Transport, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Permanent
	}
	return false
}

// Kind returns a short classification of err suitable for the
// exception_type column, such as "send_permanent" or "open_transient".
// Unclassified errors yield "unknown".
func Kind(err error) string {
	var te *Error
	if !errors.As(err, &te) {
		return "unknown"
	}
	if te.Permanent {
		return te.Op + "_permanent"
	}
	return te.Op + "_transient"
}

// classifyCode maps an SMTP reply code to permanence. 5xx replies are
// permanent; everything else may succeed later.
func classifyCode(code int) bool {
	return code >= 500 && code < 600
}

// wrapNetError converts a low-level error into a transient *Error unless
// it is already classified.
func wrapNetError(transport, op string, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	msg := err.Error()
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		msg = "timeout: " + msg
	}
	return &Error{Transport: transport, Op: op, Message: msg, Err: err}
}
