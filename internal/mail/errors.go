package mail

import "errors"

var (
	// ErrConflictingArguments is returned when a template is supplied together
	// with an explicit subject, body or HTML body.
	ErrConflictingArguments = errors.New("template cannot be combined with subject, body or html body")
	// ErrTemplateNotFound is returned when no template matches the requested
	// name and language.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateExists is returned when a template with the same name and
	// language is already stored.
	ErrTemplateExists = errors.New("template already exists")
	// ErrMessageNotFound is returned by stores when a message ID is unknown.
	ErrMessageNotFound = errors.New("message not found")
	// ErrInvalidPriority is returned by ParsePriority for unknown names.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrNoRecipients is returned when a message has no recipient.
	ErrNoRecipients = errors.New("no recipients")
	// ErrNoSender is returned when neither the message nor the configuration
	// provides a sender address.
	ErrNoSender = errors.New("no sender")
	// ErrInvalidAddress is wrapped by address validation failures.
	ErrInvalidAddress = errors.New("invalid address")
)
