package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const messageColumns = `id, from_email, to_emails, subject, body, html_body, headers, priority, status,
    scheduled_time, template_name, language, context, backend_alias, created_at, updated_at`

func scanMessage(row pgx.Row) (Message, error) {
	var i Message
	err := row.Scan(
		&i.ID,
		&i.FromEmail,
		&i.ToEmails,
		&i.Subject,
		&i.Body,
		&i.HtmlBody,
		&i.Headers,
		&i.Priority,
		&i.Status,
		&i.ScheduledTime,
		&i.TemplateName,
		&i.Language,
		&i.Context,
		&i.BackendAlias,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMessage = `INSERT INTO messages (
    id, from_email, to_emails, subject, body, html_body, headers, priority, status,
    scheduled_time, template_name, language, context, backend_alias
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)
RETURNING ` + messageColumns

type CreateMessageParams struct {
	ID            uuid.UUID          `json:"id"`
	FromEmail     string             `json:"from_email"`
	ToEmails      []string           `json:"to_emails"`
	Subject       string             `json:"subject"`
	Body          string             `json:"body"`
	HtmlBody      string             `json:"html_body"`
	Headers       []byte             `json:"headers"`
	Priority      int16              `json:"priority"`
	Status        pgtype.Text        `json:"status"`
	ScheduledTime pgtype.Timestamptz `json:"scheduled_time"`
	TemplateName  string             `json:"template_name"`
	Language      string             `json:"language"`
	Context       []byte             `json:"context"`
	BackendAlias  string             `json:"backend_alias"`
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage,
		arg.ID,
		arg.FromEmail,
		arg.ToEmails,
		arg.Subject,
		arg.Body,
		arg.HtmlBody,
		arg.Headers,
		arg.Priority,
		arg.Status,
		arg.ScheduledTime,
		arg.TemplateName,
		arg.Language,
		arg.Context,
		arg.BackendAlias,
	)
	return scanMessage(row)
}

const getMessageByID = `SELECT ` + messageColumns + `
FROM messages
WHERE id = $1`

func (q *Queries) GetMessageByID(ctx context.Context, id uuid.UUID) (Message, error) {
	row := q.db.QueryRow(ctx, getMessageByID, id)
	return scanMessage(row)
}

const listQueuedMessages = `SELECT ` + messageColumns + `
FROM messages
WHERE status = 'queued'
  AND (scheduled_time IS NULL OR scheduled_time <= $1)
ORDER BY priority DESC
LIMIT $2`

type ListQueuedMessagesParams struct {
	Now   pgtype.Timestamptz `json:"now"`
	Limit int32              `json:"limit"`
}

func (q *Queries) ListQueuedMessages(ctx context.Context, arg ListQueuedMessagesParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listQueuedMessages, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		i, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateMessageStatus = `UPDATE messages
SET status = $2, updated_at = now()
WHERE id = $1`

type UpdateMessageStatusParams struct {
	ID     uuid.UUID   `json:"id"`
	Status pgtype.Text `json:"status"`
}

func (q *Queries) UpdateMessageStatus(ctx context.Context, arg UpdateMessageStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateMessageStatus, arg.ID, arg.Status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createDeliveryLog = `INSERT INTO delivery_logs (message_id, status, exception_type, message)
VALUES ($1, $2, $3, $4)
RETURNING id, message_id, status, exception_type, message, created_at`

type CreateDeliveryLogParams struct {
	MessageID     uuid.UUID `json:"message_id"`
	Status        string    `json:"status"`
	ExceptionType string    `json:"exception_type"`
	Message       string    `json:"message"`
}

func (q *Queries) CreateDeliveryLog(ctx context.Context, arg CreateDeliveryLogParams) (DeliveryLog, error) {
	row := q.db.QueryRow(ctx, createDeliveryLog,
		arg.MessageID,
		arg.Status,
		arg.ExceptionType,
		arg.Message,
	)
	var i DeliveryLog
	err := row.Scan(
		&i.ID,
		&i.MessageID,
		&i.Status,
		&i.ExceptionType,
		&i.Message,
		&i.CreatedAt,
	)
	return i, err
}

const listDeliveryLogsByMessage = `SELECT id, message_id, status, exception_type, message, created_at
FROM delivery_logs
WHERE message_id = $1
ORDER BY created_at, id`

func (q *Queries) ListDeliveryLogsByMessage(ctx context.Context, messageID uuid.UUID) ([]DeliveryLog, error) {
	rows, err := q.db.Query(ctx, listDeliveryLogsByMessage, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeliveryLog
	for rows.Next() {
		var i DeliveryLog
		if err := rows.Scan(
			&i.ID,
			&i.MessageID,
			&i.Status,
			&i.ExceptionType,
			&i.Message,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
