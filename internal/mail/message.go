package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority orders queued messages. Higher values are dispatched first.
type Priority int16

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
	// PriorityNow bypasses the queue: the message is dispatched as soon as it
	// is composed and is never selected by the bulk path.
	PriorityNow Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityNow:
		return "now"
	default:
		return fmt.Sprintf("priority(%d)", int16(p))
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityNow
}

// ParsePriority converts a priority name into a Priority. An empty name
// yields def.
func ParsePriority(name string, def Priority) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return def, nil
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "now":
		return PriorityNow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, name)
	}
}

// Status is the lifecycle marker of a message. StatusNone means the message
// is not managed by the queue.
type Status string

const (
	StatusNone   Status = ""
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// InitialStatus returns the status a freshly composed message starts with.
func InitialStatus(p Priority) Status {
	if p == PriorityNow {
		return StatusNone
	}
	return StatusQueued
}

// Message is a single email unit of work.
type Message struct {
	ID       uuid.UUID
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
	Headers  map[string]string

	Priority      Priority
	Status        Status
	ScheduledTime *time.Time

	// Template, Language and Context are set only when rendering is
	// deferred until delivery.
	Template string
	Language string
	Context  map[string]any

	// Backend selects the transport alias. Empty means the default backend.
	Backend     string
	Attachments []Attachment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Persisted reports whether the message has been written to the store.
func (m *Message) Persisted() bool {
	return m.ID != uuid.Nil
}

// Deferred reports whether the message carries a template that still has
// to be rendered.
func (m *Message) Deferred() bool {
	return m.Template != ""
}

// Due reports whether the message is eligible for bulk dispatch at now.
func (m *Message) Due(now time.Time) bool {
	if m.Status != StatusQueued {
		return false
	}
	return m.ScheduledTime == nil || !m.ScheduledTime.After(now)
}

// DeliveryLog records the outcome of one dispatch attempt.
type DeliveryLog struct {
	ID            int64
	MessageID     uuid.UUID
	Status        Status
	ExceptionType string
	Message       string
	CreatedAt     time.Time
}

// Template holds renderable subject and body text. Language is empty for
// the default variant; localized variants point at it via DefaultTemplateID.
type Template struct {
	ID                int64
	Name              string
	Description       string
	Subject           string
	Content           string
	HTMLContent       string
	Language          string
	DefaultTemplateID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Attachment is a file linked to one or more messages. Content is loaded
// from the blob store by Key at send time.
type Attachment struct {
	ID          int64
	Name        string
	ContentType string
	Key         string
	Content     []byte
}
