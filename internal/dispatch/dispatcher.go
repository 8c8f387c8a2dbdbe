// Package dispatch selects due queued messages and delivers them through
// their transports, recording one delivery log per attempt.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/metrics"
	"github.com/sungwon/post-office/internal/templates"
	"github.com/sungwon/post-office/internal/transport"
)

// DefaultBatchSize caps the number of messages selected per cycle.
const DefaultBatchSize = 5000

// Store is the persistence the dispatcher needs.
type Store interface {
	FindQueued(ctx context.Context, now time.Time, limit int) ([]*mail.Message, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status mail.Status) error
	AppendLog(ctx context.Context, entry *mail.DeliveryLog) error
}

// Recorder is implemented by stores that can update a status and append
// its log entry in one transaction. Dispatch prefers it when available.
type Recorder interface {
	RecordDelivery(ctx context.Context, id uuid.UUID, status mail.Status, entry *mail.DeliveryLog) error
}

// Transports looks up a transport by backend alias.
type Transports interface {
	Get(alias string) (transport.Transport, error)
}

// TemplateResolver resolves deferred templates at send time.
type TemplateResolver interface {
	Resolve(ctx context.Context, name, language string) (*mail.Template, error)
}

// BlobStore loads attachment content.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Options configures a Dispatcher.
type Options struct {
	// BatchSize caps selection per cycle. Zero means DefaultBatchSize.
	BatchSize int
	// Templates renders messages stored with deferred templates.
	Templates TemplateResolver
	// Blobs loads attachment content by key.
	Blobs BlobStore
}

// Result summarizes one dispatch cycle.
type Result struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Dispatcher delivers messages.
type Dispatcher struct {
	store      Store
	transports Transports
	templates  TemplateResolver
	blobs      BlobStore
	batchSize  int
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a Dispatcher.
func New(store Store, transports Transports, opts Options, log zerolog.Logger) *Dispatcher {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Dispatcher{
		store:      store,
		transports: transports,
		templates:  opts.Templates,
		blobs:      opts.Blobs,
		batchSize:  batch,
		now:        time.Now,
		log:        log,
	}
}

// DispatchQueued sends every queued message that is due, spread across
// workers goroutines. Each worker reuses one connection per backend for
// its whole partition.
//
// Delivery failures are recorded on the message and never returned. The
// returned error is non-nil only when selection fails, ctx is cancelled, or
// a worker could not record an outcome; in the latter two cases the counts
// cover what was done. Cancellation takes effect between messages.
func (d *Dispatcher) DispatchQueued(ctx context.Context, workers int) (Result, error) {
	start := d.now()

	msgs, err := d.store.FindQueued(ctx, start, d.batchSize)
	if err != nil {
		metrics.DispatchCyclesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("select queued messages: %w", err)
	}
	metrics.DispatchSelected.Set(float64(len(msgs)))

	if len(msgs) == 0 {
		metrics.DispatchCyclesTotal.WithLabelValues("empty").Inc()
		d.log.Info().
			Int("attempted", 0).
			Int("sent", 0).
			Int("failed", 0).
			Msg("no queued messages to send")
		return Result{}, nil
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(msgs) {
		workers = len(msgs)
	}

	d.log.Info().
		Int("messages", len(msgs)).
		Int("workers", workers).
		Msg("dispatching queued messages")

	results := make([]Result, workers)
	errs := make([]error, workers)
	var g errgroup.Group
	for k, part := range Split(msgs, workers) {
		g.Go(func() error {
			results[k], errs[k] = d.sendBulk(ctx, k, part)
			return errs[k]
		})
	}
	_ = g.Wait()

	total := Result{Attempted: len(msgs)}
	for _, r := range results {
		total.Sent += r.Sent
		total.Failed += r.Failed
	}
	err = errors.Join(errs...)

	elapsed := d.now().Sub(start)
	metrics.DispatchCycleDuration.Observe(elapsed.Seconds())

	ev := d.log.Info()
	result := "ok"
	if err != nil {
		ev = d.log.Error().Err(err)
		result = "error"
	}
	metrics.DispatchCyclesTotal.WithLabelValues(result).Inc()
	ev.Int("attempted", total.Attempted).
		Int("sent", total.Sent).
		Int("failed", total.Failed).
		Dur("elapsed", elapsed).
		Msg("dispatch cycle finished")

	return total, err
}

// sendBulk delivers one partition sequentially. Connections are opened
// lazily per backend and closed once when the partition is done. A backend
// whose connection cannot be opened falls back to a fresh connection per
// message.
func (d *Dispatcher) sendBulk(ctx context.Context, worker int, msgs []*mail.Message) (Result, error) {
	log := d.log.With().Int("worker", worker).Logger()
	conns := make(map[string]transport.Connection)
	unavailable := make(map[string]bool)

	defer func() {
		for alias, c := range conns {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("backend", alias).Msg("failed to close connection")
			}
		}
	}()

	var r Result
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			log.Info().
				Int("remaining", len(msgs)-r.Attempted).
				Msg("stopping worker after cancellation")
			return r, fmt.Errorf("dispatch cancelled: %w", err)
		}

		alias := backendAlias(msg)
		conn, ok := conns[alias]
		if !ok && !unavailable[alias] {
			var err error
			conn, err = d.open(ctx, alias)
			if err != nil {
				unavailable[alias] = true
				metrics.ConnectionOpenFailuresTotal.WithLabelValues(alias).Inc()
				log.Warn().
					Err(err).
					Str("backend", alias).
					Msg("shared connection unavailable, using one connection per message")
			} else {
				conns[alias] = conn
			}
		}

		status, err := d.Dispatch(ctx, msg, conn)
		r.Attempted++
		switch status {
		case mail.StatusSent:
			r.Sent++
		case mail.StatusFailed:
			r.Failed++
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("message_id", msg.ID.String()).
				Int("remaining", len(msgs)-r.Attempted).
				Msg("stopping worker after store failure")
			return r, err
		}
	}
	return r, nil
}

func (d *Dispatcher) open(ctx context.Context, alias string) (transport.Connection, error) {
	t, err := d.transports.Get(alias)
	if err != nil {
		return nil, err
	}
	return t.Open(ctx)
}

// Dispatch delivers a single message and records the outcome. When conn is
// nil a connection is opened for this message and closed afterwards.
//
// Rendering, attachment and transport failures mark the message failed and
// are not returned. The error is non-nil only when the outcome could not be
// recorded, and is then a *StoreError.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *mail.Message, conn transport.Connection) (mail.Status, error) {
	alias := backendAlias(msg)
	start := time.Now()
	sendErr := d.deliver(ctx, msg, conn)
	metrics.MessageSendDuration.WithLabelValues(alias).Observe(time.Since(start).Seconds())

	status := mail.StatusSent
	entry := &mail.DeliveryLog{MessageID: msg.ID, Status: mail.StatusSent}
	if sendErr != nil {
		status = mail.StatusFailed
		entry.Status = mail.StatusFailed
		entry.ExceptionType = exceptionType(sendErr)
		entry.Message = sendErr.Error()

		d.log.Warn().
			Err(sendErr).
			Str("message_id", msg.ID.String()).
			Str("backend", alias).
			Str("exception_type", entry.ExceptionType).
			Msg("message delivery failed")
	} else {
		d.log.Debug().
			Str("message_id", msg.ID.String()).
			Str("backend", alias).
			Msg("message sent")
	}
	metrics.MessagesDispatchedTotal.WithLabelValues(alias, string(status)).Inc()

	// The outcome is recorded even after cancellation; a delivered message
	// left queued would be sent again by the next cycle.
	if msg.Persisted() {
		if err := d.record(context.WithoutCancel(ctx), msg.ID, status, entry); err != nil {
			return status, &StoreError{MessageID: msg.ID, Err: err}
		}
	}
	msg.Status = status
	return status, nil
}

func (d *Dispatcher) record(ctx context.Context, id uuid.UUID, status mail.Status, entry *mail.DeliveryLog) error {
	if rec, ok := d.store.(Recorder); ok {
		return rec.RecordDelivery(ctx, id, status, entry)
	}
	if err := d.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	return d.store.AppendLog(ctx, entry)
}

func (d *Dispatcher) deliver(ctx context.Context, msg *mail.Message, conn transport.Connection) error {
	prepared, err := d.prepare(ctx, msg)
	if err != nil {
		return err
	}

	if conn == nil {
		c, err := d.open(ctx, backendAlias(msg))
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				d.log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("failed to close connection")
			}
		}()
		conn = c
	}

	return conn.Send(ctx, prepared)
}

// prepare returns a copy of msg with deferred templates rendered and
// attachment content loaded. msg itself is not modified.
func (d *Dispatcher) prepare(ctx context.Context, msg *mail.Message) (*mail.Message, error) {
	out := *msg

	if msg.Deferred() {
		if d.templates == nil {
			return nil, errNoResolver
		}
		t, err := d.templates.Resolve(ctx, msg.Template, msg.Language)
		if err != nil {
			return nil, err
		}
		rendered, err := templates.Render(t, msg.Context)
		if err != nil {
			return nil, err
		}
		out.Subject = rendered.Subject
		out.Body = rendered.Body
		out.HTMLBody = rendered.HTML
	}

	if len(msg.Attachments) > 0 {
		out.Attachments = make([]mail.Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			if a.Content == nil && a.Key != "" {
				if d.blobs == nil {
					return nil, fmt.Errorf("%w %s: no blob store configured", errLoadAttachment, a.Name)
				}
				data, err := d.blobs.Get(ctx, a.Key)
				if err != nil {
					return nil, fmt.Errorf("%w %s: %w", errLoadAttachment, a.Name, err)
				}
				a.Content = data
			}
			out.Attachments[i] = a
		}
	}
	return &out, nil
}

func backendAlias(msg *mail.Message) string {
	if msg.Backend == "" {
		return transport.DefaultAlias
	}
	return msg.Backend
}
