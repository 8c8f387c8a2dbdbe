package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/templates"
	"github.com/sungwon/post-office/internal/transport"
)

// StoreError reports that the outcome of a delivery could not be recorded.
// It stops the worker that hit it.
type StoreError struct {
	MessageID uuid.UUID
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record delivery of message %s: %v", e.MessageID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

var (
	errLoadAttachment = errors.New("load attachment")
	errNoResolver     = errors.New("no template resolver configured")
)

// Exception types stored in DeliveryLog.ExceptionType for failures that
// happen before the transport is reached.
const (
	ExceptionTemplateNotFound = "template_not_found"
	ExceptionRender           = "render"
	ExceptionAttachment       = "attachment"
	ExceptionUnknownBackend   = "unknown_backend"
)

// exceptionType classifies a delivery failure.
func exceptionType(err error) string {
	switch {
	case errors.Is(err, mail.ErrTemplateNotFound):
		return ExceptionTemplateNotFound
	case errors.Is(err, templates.ErrRender), errors.Is(err, errNoResolver):
		return ExceptionRender
	case errors.Is(err, errLoadAttachment):
		return ExceptionAttachment
	case errors.Is(err, transport.ErrUnknownBackend):
		return ExceptionUnknownBackend
	default:
		return transport.Kind(err)
	}
}
