package storage

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Message struct {
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
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

type DeliveryLog struct {
	ID            int64              `json:"id"`
	MessageID     uuid.UUID          `json:"message_id"`
	Status        string             `json:"status"`
	ExceptionType string             `json:"exception_type"`
	Message       string             `json:"message"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type Template struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Subject           string             `json:"subject"`
	Content           string             `json:"content"`
	HtmlContent       string             `json:"html_content"`
	Language          string             `json:"language"`
	DefaultTemplateID pgtype.Int8        `json:"default_template_id"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type Attachment struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	ContentType string             `json:"content_type"`
	StorageKey  string             `json:"storage_key"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}
