package storage

import (
	"context"

	"github.com/google/uuid"
)

const createAttachment = `INSERT INTO attachments (name, content_type, storage_key)
VALUES ($1, $2, $3)
RETURNING id, name, content_type, storage_key, created_at`

type CreateAttachmentParams struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
}

func (q *Queries) CreateAttachment(ctx context.Context, arg CreateAttachmentParams) (Attachment, error) {
	row := q.db.QueryRow(ctx, createAttachment, arg.Name, arg.ContentType, arg.StorageKey)
	var i Attachment
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.ContentType,
		&i.StorageKey,
		&i.CreatedAt,
	)
	return i, err
}

const linkMessageAttachment = `INSERT INTO message_attachments (message_id, attachment_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

type LinkMessageAttachmentParams struct {
	MessageID    uuid.UUID `json:"message_id"`
	AttachmentID int64     `json:"attachment_id"`
}

func (q *Queries) LinkMessageAttachment(ctx context.Context, arg LinkMessageAttachmentParams) error {
	_, err := q.db.Exec(ctx, linkMessageAttachment, arg.MessageID, arg.AttachmentID)
	return err
}

const listAttachmentsByMessages = `SELECT ma.message_id, a.id, a.name, a.content_type, a.storage_key, a.created_at
FROM message_attachments ma
JOIN attachments a ON a.id = ma.attachment_id
WHERE ma.message_id = ANY($1::uuid[])
ORDER BY ma.message_id, a.id`

type ListAttachmentsByMessagesRow struct {
	MessageID  uuid.UUID  `json:"message_id"`
	Attachment Attachment `json:"attachment"`
}

func (q *Queries) ListAttachmentsByMessages(ctx context.Context, messageIds []uuid.UUID) ([]ListAttachmentsByMessagesRow, error) {
	rows, err := q.db.Query(ctx, listAttachmentsByMessages, messageIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAttachmentsByMessagesRow
	for rows.Next() {
		var i ListAttachmentsByMessagesRow
		if err := rows.Scan(
			&i.MessageID,
			&i.Attachment.ID,
			&i.Attachment.Name,
			&i.Attachment.ContentType,
			&i.Attachment.StorageKey,
			&i.Attachment.CreatedAt,
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
