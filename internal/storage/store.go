package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungwon/post-office/internal/mail"
)

// Store maps the mail domain onto the PostgreSQL tables. It is safe for
// concurrent use by multiple dispatch workers.
type Store struct {
	pool    *pgxpool.Pool
	queries *Queries
}

// NewStore returns a Store backed by db.
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool, queries: New(db.Pool)}
}

// CreateMessage inserts msg and links its attachments in one transaction.
// Attachments without an ID must have been created with CreateAttachment.
func (s *Store) CreateMessage(ctx context.Context, msg *mail.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	params, err := toCreateMessageParams(msg)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(q *Queries) error {
		row, err := q.CreateMessage(ctx, params)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		for _, a := range msg.Attachments {
			if err := q.LinkMessageAttachment(ctx, LinkMessageAttachmentParams{
				MessageID:    row.ID,
				AttachmentID: a.ID,
			}); err != nil {
				return fmt.Errorf("link attachment %d: %w", a.ID, err)
			}
		}
		msg.CreatedAt = row.CreatedAt.Time
		msg.UpdatedAt = row.UpdatedAt.Time
		return nil
	})
}

// CreateAttachment records attachment metadata and sets a.ID.
func (s *Store) CreateAttachment(ctx context.Context, a *mail.Attachment) error {
	row, err := s.queries.CreateAttachment(ctx, CreateAttachmentParams{
		Name:        a.Name,
		ContentType: a.ContentType,
		StorageKey:  a.Key,
	})
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	a.ID = row.ID
	return nil
}

// GetMessage returns the message with its attachment metadata.
func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*mail.Message, error) {
	row, err := s.queries.GetMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mail.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	msg, err := toMailMessage(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, []*mail.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListDeliveryLogs returns the delivery history of a message, oldest first.
func (s *Store) ListDeliveryLogs(ctx context.Context, id uuid.UUID) ([]mail.DeliveryLog, error) {
	rows, err := s.queries.ListDeliveryLogsByMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	logs := make([]mail.DeliveryLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, mail.DeliveryLog{
			ID:            r.ID,
			MessageID:     r.MessageID,
			Status:        mail.Status(r.Status),
			ExceptionType: r.ExceptionType,
			Message:       r.Message,
			CreatedAt:     r.CreatedAt.Time,
		})
	}
	return logs, nil
}

// FindQueued returns up to limit queued messages that are due at now,
// highest priority first.
func (s *Store) FindQueued(ctx context.Context, now time.Time, limit int) ([]*mail.Message, error) {
	rows, err := s.queries.ListQueuedMessages(ctx, ListQueuedMessagesParams{
		Now:   pgtype.Timestamptz{Time: now, Valid: true},
		Limit: int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list queued messages: %w", err)
	}

	msgs := make([]*mail.Message, 0, len(rows))
	for _, r := range rows {
		msg, err := toMailMessage(r)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := s.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateStatus sets the status of a message.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status mail.Status) error {
	return updateStatus(ctx, s.queries, id, status)
}

// AppendLog appends a delivery log entry.
func (s *Store) AppendLog(ctx context.Context, entry *mail.DeliveryLog) error {
	return appendLog(ctx, s.queries, entry)
}

// RecordDelivery updates the message status and appends the matching log
// entry atomically.
func (s *Store) RecordDelivery(ctx context.Context, id uuid.UUID, status mail.Status, entry *mail.DeliveryLog) error {
	return s.inTx(ctx, func(q *Queries) error {
		if err := updateStatus(ctx, q, id, status); err != nil {
			return err
		}
		return appendLog(ctx, q, entry)
	})
}

// GetTemplate returns the template with the exact name and language.
func (s *Store) GetTemplate(ctx context.Context, name, language string) (*mail.Template, error) {
	row, err := s.queries.GetTemplateByNameAndLanguage(ctx, GetTemplateByNameAndLanguageParams{
		Name:     name,
		Language: language,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mail.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return toMailTemplate(row), nil
}

// CreateTemplate inserts t and sets its ID and timestamps.
func (s *Store) CreateTemplate(ctx context.Context, t *mail.Template) error {
	var def pgtype.Int8
	if t.DefaultTemplateID != nil {
		def = pgtype.Int8{Int64: *t.DefaultTemplateID, Valid: true}
	}
	row, err := s.queries.CreateTemplate(ctx, CreateTemplateParams{
		Name:              t.Name,
		Description:       t.Description,
		Subject:           t.Subject,
		Content:           t.Content,
		HtmlContent:       t.HTMLContent,
		Language:          t.Language,
		DefaultTemplateID: def,
	})
	if err != nil {
		switch {
		case errorIs(err, codeUniqueViolation):
			return fmt.Errorf("%w: %s (language %q)", mail.ErrTemplateExists, t.Name, t.Language)
		case errorIs(err, codeForeignKeyViolation):
			return fmt.Errorf("%w: default template %d", mail.ErrTemplateNotFound, *t.DefaultTemplateID)
		}
		return fmt.Errorf("insert template: %w", err)
	}
	t.ID = row.ID
	t.CreatedAt = row.CreatedAt.Time
	t.UpdatedAt = row.UpdatedAt.Time
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) loadAttachments(ctx context.Context, msgs []*mail.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(msgs))
	byID := make(map[uuid.UUID]*mail.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	rows, err := s.queries.ListAttachmentsByMessages(ctx, ids)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	for _, r := range rows {
		if m, ok := byID[r.MessageID]; ok {
			m.Attachments = append(m.Attachments, mail.Attachment{
				ID:          r.Attachment.ID,
				Name:        r.Attachment.Name,
				ContentType: r.Attachment.ContentType,
				Key:         r.Attachment.StorageKey,
			})
		}
	}
	return nil
}

func updateStatus(ctx context.Context, q *Queries, id uuid.UUID, status mail.Status) error {
	n, err := q.UpdateMessageStatus(ctx, UpdateMessageStatusParams{
		ID:     id,
		Status: statusText(status),
	})
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if n == 0 {
		return mail.ErrMessageNotFound
	}
	return nil
}

func appendLog(ctx context.Context, q *Queries, entry *mail.DeliveryLog) error {
	row, err := q.CreateDeliveryLog(ctx, CreateDeliveryLogParams{
		MessageID:     entry.MessageID,
		Status:        string(entry.Status),
		ExceptionType: entry.ExceptionType,
		Message:       entry.Message,
	})
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt.Time
	return nil
}

func statusText(s mail.Status) pgtype.Text {
	return pgtype.Text{String: string(s), Valid: s != mail.StatusNone}
}

func toCreateMessageParams(msg *mail.Message) (CreateMessageParams, error) {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return CreateMessageParams{}, fmt.Errorf("encode headers: %w", err)
	}

	var contextJSON []byte
	if msg.Context != nil {
		contextJSON, err = json.Marshal(msg.Context)
		if err != nil {
			return CreateMessageParams{}, fmt.Errorf("encode template context: %w", err)
		}
	}

	var scheduled pgtype.Timestamptz
	if msg.ScheduledTime != nil {
		scheduled = pgtype.Timestamptz{Time: *msg.ScheduledTime, Valid: true}
	}

	return CreateMessageParams{
		ID:            msg.ID,
		FromEmail:     msg.From,
		ToEmails:      msg.To,
		Subject:       msg.Subject,
		Body:          msg.Body,
		HtmlBody:      msg.HTMLBody,
		Headers:       headersJSON,
		Priority:      int16(msg.Priority),
		Status:        statusText(msg.Status),
		ScheduledTime: scheduled,
		TemplateName:  msg.Template,
		Language:      msg.Language,
		Context:       contextJSON,
		BackendAlias:  msg.Backend,
	}, nil
}

func toMailMessage(row Message) (*mail.Message, error) {
	msg := &mail.Message{
		ID:        row.ID,
		From:      row.FromEmail,
		To:        row.ToEmails,
		Subject:   row.Subject,
		Body:      row.Body,
		HTMLBody:  row.HtmlBody,
		Priority:  mail.Priority(row.Priority),
		Template:  row.TemplateName,
		Language:  row.Language,
		Backend:   row.BackendAlias,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.Status.Valid {
		msg.Status = mail.Status(row.Status.String)
	}
	if row.ScheduledTime.Valid {
		t := row.ScheduledTime.Time
		msg.ScheduledTime = &t
	}
	if len(row.Headers) > 0 {
		if err := json.Unmarshal(row.Headers, &msg.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of message %s: %w", row.ID, err)
		}
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &msg.Context); err != nil {
			return nil, fmt.Errorf("decode template context of message %s: %w", row.ID, err)
		}
	}
	return msg, nil
}

func toMailTemplate(row Template) *mail.Template {
	t := &mail.Template{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Subject:     row.Subject,
		Content:     row.Content,
		HTMLContent: row.HtmlContent,
		Language:    row.Language,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
	if row.DefaultTemplateID.Valid {
		id := row.DefaultTemplateID.Int64
		t.DefaultTemplateID = &id
	}
	return t
}
