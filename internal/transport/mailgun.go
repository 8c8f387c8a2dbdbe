package transport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/sungwon/post-office/internal/mail"
)

const mailgunDefaultEndpoint = "https://api.mailgun.net"

// NewMailgun creates a transport for the Mailgun messages API. Requests are
// sent as multipart forms so attachments travel with the message.
func NewMailgun(name string, cfg Config, client *http.Client) *HTTPAPI {
	url := fmt.Sprintf("%s/v3/%s/messages", endpointOr(cfg.Endpoint, mailgunDefaultEndpoint), cfg.Domain)
	apiKey := cfg.APIKey
	return &HTTPAPI{
		name:   name,
		client: client,
		build: func(msg *mail.Message) (apiRequest, error) {
			body, contentType, err := mailgunForm(msg)
			if err != nil {
				return apiRequest{}, err
			}
			header := http.Header{}
			header.Set("Authorization", "Basic "+basicAuth("api", apiKey))
			header.Set("Content-Type", contentType)
			return apiRequest{
				method: http.MethodPost,
				url:    url,
				header: header,
				body:   body,
			}, nil
		},
	}
}

func mailgunForm(msg *mail.Message) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{{"from", msg.From}, {"subject", msg.Subject}}
	for _, to := range msg.To {
		fields = append(fields, [2]string{"to", to})
	}
	if msg.Body != "" {
		fields = append(fields, [2]string{"text", msg.Body})
	}
	if msg.HTMLBody != "" {
		fields = append(fields, [2]string{"html", msg.HTMLBody})
	}
	for k, v := range msg.Headers {
		fields = append(fields, [2]string{"h:" + k, v})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	for _, a := range msg.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, a.Name))
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := part.Write(a.Content); err != nil {
			return nil, "", fmt.Errorf("write attachment %s: %w", a.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// basicAuth encodes credentials for HTTP Basic Authentication.
func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
