// Package compose builds messages from explicit content or from a template
// and context, applies the priority status rule and persists the result.
package compose

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/metrics"
	"github.com/sungwon/post-office/internal/msgstore"
	"github.com/sungwon/post-office/internal/templates"
	"github.com/sungwon/post-office/internal/transport"
)

// Store persists composed messages and their attachments.
type Store interface {
	CreateMessage(ctx context.Context, msg *mail.Message) error
	CreateAttachment(ctx context.Context, a *mail.Attachment) error
}

// TemplateResolver looks up templates by name and language.
type TemplateResolver interface {
	Resolve(ctx context.Context, name, language string) (*mail.Template, error)
}

// BlobStore receives uploaded attachment content.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// Dispatcher sends a single message immediately.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *mail.Message, conn transport.Connection) (mail.Status, error)
}

// Params describes one message to compose.
type Params struct {
	From     string
	To       []string
	Template string
	Language string
	Context  map[string]any
	Subject  string
	Body     string
	HTMLBody string
	Headers  map[string]string
	Priority mail.Priority
	// ScheduledTime delays bulk dispatch until the given time.
	ScheduledTime *time.Time
	Backend       string
	// RenderOnDelivery stores the template reference and context instead
	// of rendered content.
	RenderOnDelivery bool
	Attachments      []mail.Attachment
	// Commit persists the message. When false the message is built but
	// not stored and its ID stays zero.
	Commit bool
}

// Upload is attachment content supplied with a send request.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// SendParams describes a send to one or more recipients. Params.To and
// Params.Attachments are ignored; Recipients and Uploads are used instead.
type SendParams struct {
	Params
	Recipients []string
	Uploads    []Upload
	// Source labels the entry point for metrics, such as "api" or "smtp".
	Source string
}

// Options configures a Composer.
type Options struct {
	// DefaultFrom is used when a message has no sender.
	DefaultFrom string
	// DefaultPriority is used by ParsePriority for empty names.
	DefaultPriority mail.Priority
}

// Composer builds and stores messages.
type Composer struct {
	store      Store
	templates  TemplateResolver
	blobs      BlobStore
	dispatcher Dispatcher
	opts       Options
	log        zerolog.Logger
}

// New creates a Composer. blobs may be nil when attachments are not used;
// dispatcher may be nil when priority now is not used.
func New(store Store, resolver TemplateResolver, blobs BlobStore, dispatcher Dispatcher, opts Options, log zerolog.Logger) *Composer {
	return &Composer{
		store:      store,
		templates:  resolver,
		blobs:      blobs,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
	}
}

// ParsePriority parses a priority name, falling back to the configured
// default for an empty name.
func (c *Composer) ParsePriority(name string) (mail.Priority, error) {
	return mail.ParsePriority(name, c.opts.DefaultPriority)
}

// Compose builds a message from p and persists it when p.Commit is set.
func (c *Composer) Compose(ctx context.Context, p Params) (*mail.Message, error) {
	if p.Template != "" && (p.Subject != "" || p.Body != "" || p.HTMLBody != "") {
		return nil, mail.ErrConflictingArguments
	}
	if !p.Priority.Valid() {
		return nil, fmt.Errorf("%w: %d", mail.ErrInvalidPriority, p.Priority)
	}

	msg, err := c.envelope(p)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Template != "" && p.RenderOnDelivery:
		if _, err := c.resolve(ctx, p.Template, p.Language); err != nil {
			return nil, err
		}
		msg.Template = p.Template
		msg.Language = p.Language
		msg.Context = p.Context
	case p.Template != "":
		t, err := c.resolve(ctx, p.Template, p.Language)
		if err != nil {
			return nil, err
		}
		r, err := templates.Render(t, p.Context)
		if err != nil {
			return nil, err
		}
		msg.Subject, msg.Body, msg.HTMLBody = r.Subject, r.Body, r.HTML
	case len(p.Context) > 0:
		r, err := templates.RenderStrings(p.Subject, p.Body, p.HTMLBody, p.Context)
		if err != nil {
			return nil, err
		}
		msg.Subject, msg.Body, msg.HTMLBody = r.Subject, r.Body, r.HTML
	default:
		msg.Subject, msg.Body, msg.HTMLBody = p.Subject, p.Body, p.HTMLBody
	}

	if !p.Commit {
		return msg, nil
	}
	if err := c.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (c *Composer) envelope(p Params) (*mail.Message, error) {
	from := p.From
	if from == "" {
		from = c.opts.DefaultFrom
	}
	if from == "" {
		return nil, mail.ErrNoSender
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, err
	}
	if len(p.To) == 0 {
		return nil, mail.ErrNoRecipients
	}
	to := make([]string, 0, len(p.To))
	for _, r := range p.To {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, err
		}
		to = append(to, addr)
	}

	return &mail.Message{
		From:          from,
		To:            to,
		Headers:       p.Headers,
		Priority:      p.Priority,
		Status:        mail.InitialStatus(p.Priority),
		ScheduledTime: p.ScheduledTime,
		Backend:       p.Backend,
		Attachments:   p.Attachments,
	}, nil
}

func (c *Composer) resolve(ctx context.Context, name, language string) (*mail.Template, error) {
	if c.templates == nil {
		return nil, fmt.Errorf("%w: %s", mail.ErrTemplateNotFound, name)
	}
	return c.templates.Resolve(ctx, name, language)
}

// Send composes one message per recipient. Uploads are stored once and
// linked to every message. Messages with priority now are dispatched
// before Send returns; their delivery outcome is recorded on the message.
func (c *Composer) Send(ctx context.Context, sp SendParams) ([]*mail.Message, error) {
	if len(sp.Recipients) == 0 {
		return nil, mail.ErrNoRecipients
	}

	p := sp.Params
	atts, err := c.upload(ctx, sp.Uploads, p.Commit)
	if err != nil {
		return nil, err
	}
	p.Attachments = atts

	msgs := make([]*mail.Message, 0, len(sp.Recipients))
	for _, r := range sp.Recipients {
		p.To = []string{r}
		msg, err := c.Compose(ctx, p)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
		if p.Commit {
			metrics.MessagesQueuedTotal.WithLabelValues(p.Priority.String(), source(sp.Source)).Inc()
		}
	}

	c.log.Debug().
		Int("messages", len(msgs)).
		Int("attachments", len(atts)).
		Str("priority", p.Priority.String()).
		Bool("commit", p.Commit).
		Msg("messages composed")

	if p.Priority != mail.PriorityNow {
		return msgs, nil
	}
	if c.dispatcher == nil {
		return msgs, fmt.Errorf("dispatch now: no dispatcher configured")
	}
	for _, msg := range msgs {
		if _, err := c.dispatcher.Dispatch(ctx, msg, nil); err != nil {
			return msgs, fmt.Errorf("dispatch now: %w", err)
		}
	}
	return msgs, nil
}

// SendMany runs Send for each entry in order and returns every message
// created. It stops at the first error.
func (c *Composer) SendMany(ctx context.Context, batch []SendParams) ([]*mail.Message, error) {
	var out []*mail.Message
	for i, sp := range batch {
		msgs, err := c.Send(ctx, sp)
		out = append(out, msgs...)
		if err != nil {
			return out, fmt.Errorf("send entry %d: %w", i, err)
		}
	}
	return out, nil
}

// upload stores each upload once. Uncommitted sends keep the content
// inline instead of writing it to the blob store.
func (c *Composer) upload(ctx context.Context, uploads []Upload, commit bool) ([]mail.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	atts := make([]mail.Attachment, 0, len(uploads))
	for _, u := range uploads {
		a := mail.Attachment{Name: u.Name, ContentType: u.ContentType}
		if !commit {
			a.Content = u.Content
			atts = append(atts, a)
			continue
		}
		if c.blobs == nil {
			return nil, fmt.Errorf("store attachment %s: no blob store configured", u.Name)
		}
		a.Key = msgstore.NewKey(u.Name)
		if err := c.blobs.Put(ctx, a.Key, u.ContentType, u.Content); err != nil {
			return nil, fmt.Errorf("store attachment %s: %w", u.Name, err)
		}
		if err := c.store.CreateAttachment(ctx, &a); err != nil {
			return nil, fmt.Errorf("create attachment %s: %w", u.Name, err)
		}
		atts = append(atts, a)
	}
	return atts, nil
}

func source(s string) string {
	if s == "" {
		return "other"
	}
	return s
}
