package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/sungwon/post-office/internal/compose"
	"github.com/sungwon/post-office/internal/mail"
)

// mockSender implements Sender for testing.
type mockSender struct {
	sendFn     func(ctx context.Context, sp compose.SendParams) ([]*mail.Message, error)
	sendManyFn func(ctx context.Context, batch []compose.SendParams) ([]*mail.Message, error)
}

func (m *mockSender) Send(ctx context.Context, sp compose.SendParams) ([]*mail.Message, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, sp)
	}
	return queuedMessages(sp), nil
}

func (m *mockSender) SendMany(ctx context.Context, batch []compose.SendParams) ([]*mail.Message, error) {
	if m.sendManyFn != nil {
		return m.sendManyFn(ctx, batch)
	}
	var out []*mail.Message
	for _, sp := range batch {
		out = append(out, queuedMessages(sp)...)
	}
	return out, nil
}

func (m *mockSender) ParsePriority(name string) (mail.Priority, error) {
	return mail.ParsePriority(name, mail.PriorityMedium)
}

// queuedMessages builds the messages a committed Send would return.
func queuedMessages(sp compose.SendParams) []*mail.Message {
	out := make([]*mail.Message, 0, len(sp.Recipients))
	for _, r := range sp.Recipients {
		msg := &mail.Message{
			From:     sp.From,
			To:       []string{r},
			Subject:  sp.Subject,
			Priority: sp.Priority,
			Status:   mail.InitialStatus(sp.Priority),
		}
		if sp.Commit {
			msg.ID = uuid.New()
		}
		out = append(out, msg)
	}
	return out
}

// mockReader implements MessageReader for testing.
type mockReader struct {
	getMessageFn       func(ctx context.Context, id uuid.UUID) (*mail.Message, error)
	listDeliveryLogsFn func(ctx context.Context, id uuid.UUID) ([]mail.DeliveryLog, error)
}

func (m *mockReader) GetMessage(ctx context.Context, id uuid.UUID) (*mail.Message, error) {
	if m.getMessageFn != nil {
		return m.getMessageFn(ctx, id)
	}
	return nil, mail.ErrMessageNotFound
}

func (m *mockReader) ListDeliveryLogs(ctx context.Context, id uuid.UUID) ([]mail.DeliveryLog, error) {
	if m.listDeliveryLogsFn != nil {
		return m.listDeliveryLogsFn(ctx, id)
	}
	return nil, nil
}

// mockTemplateStore implements TemplateStore for testing.
type mockTemplateStore struct {
	createTemplateFn func(ctx context.Context, t *mail.Template) error
}

func (m *mockTemplateStore) CreateTemplate(ctx context.Context, t *mail.Template) error {
	if m.createTemplateFn != nil {
		return m.createTemplateFn(ctx, t)
	}
	t.ID = 1
	return nil
}

// mockInvalidator records invalidated templates.
type mockInvalidator struct {
	calls []string
}

func (m *mockInvalidator) Invalidate(_ context.Context, name, language string) {
	m.calls = append(m.calls, name+"/"+language)
}
