package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/sungwon/post-office/internal/mail"
)

// maxErrorBody caps how much of an error response is kept in the log.
const maxErrorBody = 4 << 10

// apiRequest is a provider-specific HTTP request for one message.
type apiRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
}

// requestBuilder turns a message into the provider's send request.
type requestBuilder func(msg *mail.Message) (apiRequest, error)

// HTTPAPI delivers through an email provider's HTTP API. Connections share
// the transport's http.Client, so keep-alive sessions are reused across
// sends and workers.
type HTTPAPI struct {
	name   string
	client *http.Client
	build  requestBuilder
}

func (t *HTTPAPI) Name() string { return t.name }

// Open returns a connection without contacting the provider; HTTP sessions
// are established lazily by the client.
func (t *HTTPAPI) Open(_ context.Context) (Connection, error) {
	return apiConn{t}, nil
}

type apiConn struct {
	t *HTTPAPI
}

func (c apiConn) Send(ctx context.Context, msg *mail.Message) error {
	if len(msg.To) == 0 {
		return &Error{Transport: c.t.name, Op: OpSend, Message: "no recipients", Permanent: true}
	}

	ar, err := c.t.build(msg)
	if err != nil {
		return &Error{Transport: c.t.name, Op: OpSend, Message: err.Error(), Permanent: true, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, ar.method, ar.url, bytes.NewReader(ar.body))
	if err != nil {
		return &Error{Transport: c.t.name, Op: OpSend, Message: err.Error(), Permanent: true, Err: err}
	}
	req.Header = ar.header

	resp, err := c.t.client.Do(req)
	if err != nil {
		return wrapNetError(c.t.name, OpSend, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &Error{
		Transport: c.t.name,
		Op:        OpSend,
		Code:      resp.StatusCode,
		Message:   strings.TrimSpace(string(body)),
		Permanent: classifyHTTPStatus(resp.StatusCode, string(body)),
	}
}

func (apiConn) Close() error { return nil }

// classifyHTTPStatus reports whether a provider error response is permanent.
// Rate limiting and most server errors may succeed later; client errors
// other than ambiguous 400s will not.
func classifyHTTPStatus(status int, body string) bool {
	switch {
	case status == http.StatusBadRequest:
		return containsAny(body, permanentRequestPatterns)
	case status == http.StatusTooManyRequests:
		return false
	case status >= 500:
		return containsAny(body, permanentServerPatterns)
	default:
		return status >= 400 && status < 500
	}
}

var permanentRequestPatterns = []string{
	"invalid recipient",
	"invalid email",
	"does not exist",
	"mailbox not found",
	"recipient rejected",
	"bad request",
	"validation error",
	"invalid address",
}

var permanentServerPatterns = []string{
	"invalid api key",
	"authentication failed",
	"account suspended",
	"account disabled",
	"unauthorized",
}

func containsAny(body string, patterns []string) bool {
	lower := strings.ToLower(body)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

func endpointOr(endpoint, def string) string {
	if endpoint == "" {
		return def
	}
	return strings.TrimRight(endpoint, "/")
}

