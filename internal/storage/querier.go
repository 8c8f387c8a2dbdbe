package storage

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	CreateAttachment(ctx context.Context, arg CreateAttachmentParams) (Attachment, error)
	CreateDeliveryLog(ctx context.Context, arg CreateDeliveryLogParams) (DeliveryLog, error)
	CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error)
	CreateTemplate(ctx context.Context, arg CreateTemplateParams) (Template, error)
	GetMessageByID(ctx context.Context, id uuid.UUID) (Message, error)
	GetTemplateByNameAndLanguage(ctx context.Context, arg GetTemplateByNameAndLanguageParams) (Template, error)
	LinkMessageAttachment(ctx context.Context, arg LinkMessageAttachmentParams) error
	ListAttachmentsByMessages(ctx context.Context, messageIds []uuid.UUID) ([]ListAttachmentsByMessagesRow, error)
	ListDeliveryLogsByMessage(ctx context.Context, messageID uuid.UUID) ([]DeliveryLog, error)
	ListQueuedMessages(ctx context.Context, arg ListQueuedMessagesParams) ([]Message, error)
	UpdateMessageStatus(ctx context.Context, arg UpdateMessageStatusParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
