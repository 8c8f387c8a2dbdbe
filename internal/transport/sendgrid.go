package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sungwon/post-office/internal/mail"
)

const (
	sendgridDefaultEndpoint = "https://api.sendgrid.com"
	sendgridSendPath        = "/v3/mail/send"
)

// NewSendGrid creates a transport for the SendGrid v3 Mail Send API.
func NewSendGrid(name string, cfg Config, client *http.Client) *HTTPAPI {
	endpoint := endpointOr(cfg.Endpoint, sendgridDefaultEndpoint)
	apiKey := cfg.APIKey
	return &HTTPAPI{
		name:   name,
		client: client,
		build: func(msg *mail.Message) (apiRequest, error) {
			body, err := json.Marshal(sendgridPayloadFor(msg))
			if err != nil {
				return apiRequest{}, fmt.Errorf("marshal request: %w", err)
			}
			header := http.Header{}
			header.Set("Authorization", "Bearer "+apiKey)
			header.Set("Content-Type", "application/json")
			return apiRequest{
				method: http.MethodPost,
				url:    endpoint + sendgridSendPath,
				header: header,
				body:   body,
			}, nil
		},
	}
}

// sendgridPayload matches the SendGrid v3 mail/send JSON schema.
type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridEmail             `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
	Headers          map[string]string         `json:"headers,omitempty"`
	Attachments      []sendgridAttachment      `json:"attachments,omitempty"`
}

type sendgridPersonalization struct {
	To []sendgridEmail `json:"to"`
}

type sendgridEmail struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridAttachment struct {
	Content     string `json:"content"` // base64
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

func sendgridPayloadFor(msg *mail.Message) sendgridPayload {
	tos := make([]sendgridEmail, len(msg.To))
	for i, addr := range msg.To {
		tos[i] = sendgridEmail{Email: addr}
	}

	// SendGrid requires text/plain before text/html and at least one part.
	var content []sendgridContent
	if msg.Body != "" || msg.HTMLBody == "" {
		content = append(content, sendgridContent{Type: "text/plain", Value: msg.Body})
	}
	if msg.HTMLBody != "" {
		content = append(content, sendgridContent{Type: "text/html", Value: msg.HTMLBody})
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{To: tos}},
		From:             sendgridEmail{Email: msg.From},
		Subject:          msg.Subject,
		Content:          content,
		Headers:          msg.Headers,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, sendgridAttachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.Name,
			Disposition: "attachment",
		})
	}
	return payload
}
