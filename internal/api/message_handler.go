package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungwon/post-office/internal/compose"
	"github.com/sungwon/post-office/internal/logger"
	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/templates"
)

// maxBulkEntries caps the number of entries in one bulk request.
const maxBulkEntries = 1000

// Sender composes and queues messages.
type Sender interface {
	Send(ctx context.Context, sp compose.SendParams) ([]*mail.Message, error)
	SendMany(ctx context.Context, batch []compose.SendParams) ([]*mail.Message, error)
	ParsePriority(name string) (mail.Priority, error)
}

// MessageReader loads stored messages and their delivery history.
type MessageReader interface {
	GetMessage(ctx context.Context, id uuid.UUID) (*mail.Message, error)
	ListDeliveryLogs(ctx context.Context, id uuid.UUID) ([]mail.DeliveryLog, error)
}

// attachmentRequest carries attachment content as base64 in JSON.
type attachmentRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// sendRequest is the JSON body for queueing a message.
type sendRequest struct {
	From             string              `json:"from"`
	To               []string            `json:"to"`
	Template         string              `json:"template"`
	Language         string              `json:"language"`
	Context          map[string]any      `json:"context"`
	Subject          string              `json:"subject"`
	Body             string              `json:"body"`
	HTMLBody         string              `json:"html_body"`
	Headers          map[string]string   `json:"headers"`
	Priority         string              `json:"priority"`
	ScheduledTime    *time.Time          `json:"scheduled_time"`
	Backend          string              `json:"backend"`
	RenderOnDelivery bool                `json:"render_on_delivery"`
	Attachments      []attachmentRequest `json:"attachments"`
	// Commit defaults to true. When false the message is built and returned
	// without being stored.
	Commit *bool `json:"commit"`
}

// bulkSendRequest is the JSON body for queueing several messages.
type bulkSendRequest struct {
	Messages []sendRequest `json:"messages"`
}

// deliveryLogResponse is one delivery attempt in a message response.
type deliveryLogResponse struct {
	Status        string `json:"status"`
	ExceptionType string `json:"exception_type,omitempty"`
	Message       string `json:"message,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// messageResponse is the JSON representation of a message.
type messageResponse struct {
	ID            *uuid.UUID            `json:"id"`
	From          string                `json:"from"`
	To            []string              `json:"to"`
	Subject       string                `json:"subject"`
	Template      string                `json:"template,omitempty"`
	Language      string                `json:"language,omitempty"`
	Priority      string                `json:"priority"`
	Status        string                `json:"status,omitempty"`
	ScheduledTime *string               `json:"scheduled_time,omitempty"`
	Backend       string                `json:"backend,omitempty"`
	Attachments   []string              `json:"attachments,omitempty"`
	CreatedAt     string                `json:"created_at,omitempty"`
	Logs          []deliveryLogResponse `json:"logs,omitempty"`
}

// validate returns every structural problem with the request.
func (req sendRequest) validate(prefix string) []string {
	var errs []string
	if len(req.To) == 0 {
		errs = append(errs, prefix+"to is required")
	}
	for i, a := range req.Attachments {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("%sattachments[%d].name is required", prefix, i))
		}
	}
	return errs
}

// toSendParams converts a request to composer parameters.
func (req sendRequest) toSendParams(priority mail.Priority) compose.SendParams {
	commit := true
	if req.Commit != nil {
		commit = *req.Commit
	}

	uploads := make([]compose.Upload, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		uploads = append(uploads, compose.Upload{
			Name:        a.Name,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}

	return compose.SendParams{
		Params: compose.Params{
			From:             req.From,
			Template:         req.Template,
			Language:         req.Language,
			Context:          req.Context,
			Subject:          req.Subject,
			Body:             req.Body,
			HTMLBody:         req.HTMLBody,
			Headers:          req.Headers,
			Priority:         priority,
			ScheduledTime:    req.ScheduledTime,
			Backend:          req.Backend,
			RenderOnDelivery: req.RenderOnDelivery,
			Commit:           commit,
		},
		Recipients: req.To,
		Uploads:    uploads,
		Source:     "api",
	}
}

// toMessageResponse converts a mail.Message to a messageResponse.
func toMessageResponse(msg *mail.Message) messageResponse {
	resp := messageResponse{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Template: msg.Template,
		Language: msg.Language,
		Priority: msg.Priority.String(),
		Status:   string(msg.Status),
		Backend:  msg.Backend,
	}
	if msg.Persisted() {
		id := msg.ID
		resp.ID = &id
	}
	if msg.ScheduledTime != nil {
		s := formatTime(*msg.ScheduledTime)
		resp.ScheduledTime = &s
	}
	if !msg.CreatedAt.IsZero() {
		resp.CreatedAt = formatTime(msg.CreatedAt)
	}
	for _, a := range msg.Attachments {
		resp.Attachments = append(resp.Attachments, a.Name)
	}
	return resp
}

func toMessageResponses(msgs []*mail.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

// SendMessageHandler handles POST /api/v1/messages.
// Creates one message per recipient and returns them with 201.
func SendMessageHandler(sender Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if errs := req.validate(""); len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		priority, err := sender.ParsePriority(req.Priority)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		msgs, err := sender.Send(r.Context(), req.toSendParams(priority))
		if err != nil {
			respondSendError(w, r, err)
			return
		}

		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"messages": toMessageResponses(msgs),
		})
	}
}

// BulkSendHandler handles POST /api/v1/messages/bulk.
// Entries are processed in order; processing stops at the first failure and
// the messages created before it are reported with the error.
func BulkSendHandler(sender Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Messages) == 0 {
			respondValidationErrors(w, []string{"messages is required"})
			return
		}
		if len(req.Messages) > maxBulkEntries {
			respondValidationErrors(w, []string{fmt.Sprintf("messages exceeds limit of %d", maxBulkEntries)})
			return
		}

		batch := make([]compose.SendParams, 0, len(req.Messages))
		var errs []string
		for i, entry := range req.Messages {
			errs = append(errs, entry.validate(fmt.Sprintf("messages[%d].", i))...)
			priority, err := sender.ParsePriority(entry.Priority)
			if err != nil {
				errs = append(errs, fmt.Sprintf("messages[%d].priority: %v", i, err))
				continue
			}
			batch = append(batch, entry.toSendParams(priority))
		}
		if len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		msgs, err := sender.SendMany(r.Context(), batch)
		if err != nil {
			status, message := sendErrorStatus(err)
			if status == http.StatusInternalServerError {
				l := logger.FromContext(r.Context())
				l.Error().Err(err).Int("created", len(msgs)).Msg("bulk send failed")
			}
			respondJSON(w, status, map[string]interface{}{
				"error":    message,
				"messages": toMessageResponses(msgs),
			})
			return
		}

		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"messages": toMessageResponses(msgs),
		})
	}
}

// GetMessageHandler handles GET /api/v1/messages/{id}.
// Returns the message with its delivery logs.
func GetMessageHandler(reader MessageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid message ID")
			return
		}

		msg, err := reader.GetMessage(r.Context(), id)
		if err != nil {
			if errors.Is(err, mail.ErrMessageNotFound) {
				respondError(w, http.StatusNotFound, "message not found")
				return
			}
			l := logger.FromContext(r.Context())
			l.Error().Err(err).Str("message_id", id.String()).Msg("get message failed")
			respondError(w, http.StatusInternalServerError, "failed to get message")
			return
		}

		logs, err := reader.ListDeliveryLogs(r.Context(), id)
		if err != nil {
			l := logger.FromContext(r.Context())
			l.Error().Err(err).Str("message_id", id.String()).Msg("list delivery logs failed")
			respondError(w, http.StatusInternalServerError, "failed to get message")
			return
		}

		resp := toMessageResponse(msg)
		for _, entry := range logs {
			resp.Logs = append(resp.Logs, deliveryLogResponse{
				Status:        string(entry.Status),
				ExceptionType: entry.ExceptionType,
				Message:       entry.Message,
				CreatedAt:     formatTime(entry.CreatedAt),
			})
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// sendErrorStatus maps composer errors to an HTTP status and client message.
func sendErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, mail.ErrConflictingArguments),
		errors.Is(err, mail.ErrInvalidPriority),
		errors.Is(err, mail.ErrInvalidAddress),
		errors.Is(err, mail.ErrNoRecipients),
		errors.Is(err, mail.ErrNoSender),
		errors.Is(err, templates.ErrRender):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, mail.ErrTemplateNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "failed to send message"
	}
}

func respondSendError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := sendErrorStatus(err)
	if status == http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		l.Error().Err(err).Msg("send failed")
	}
	respondError(w, status, message)
}
