package transport

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/post-office/internal/mail"
)

var testDate = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func parseBuilt(t *testing.T, msg *mail.Message) *netmail.Message {
	t.Helper()
	raw, err := Build(msg, testDate)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v\n%s", err, raw)
	}
	return parsed
}

func TestBuild_PlainText(t *testing.T) {
	id := uuid.New()
	parsed := parseBuilt(t, &mail.Message{
		ID:      id,
		From:    "sender@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Grüße",
		Body:    "hello",
		Headers: map[string]string{"Reply-To": "r@example.com", "Subject": "ignored"},
	})

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "Grüße" {
		t.Errorf("Subject = %q", subject)
	}
	if got := parsed.Header.Get("To"); got != "a@example.com, b@example.com" {
		t.Errorf("To = %q", got)
	}
	if got := parsed.Header.Get("Reply-To"); got != "r@example.com" {
		t.Errorf("Reply-To = %q", got)
	}
	if got := parsed.Header.Get("Message-Id"); got != "<"+id.String()+"@example.com>" {
		t.Errorf("Message-ID = %q", got)
	}
	if !strings.HasPrefix(parsed.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", parsed.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(parsed.Body)
	if strings.TrimSpace(string(body)) != "hello" {
		t.Errorf("body = %q", body)
	}
}

func TestBuild_HeaderInjection(t *testing.T) {
	parsed := parseBuilt(t, &mail.Message{
		From:    "sender@example.com",
		To:      []string{"a@example.com"},
		Headers: map[string]string{"X-Tag": "a\r\nBcc: victim@example.com"},
	})
	if parsed.Header.Get("Bcc") != "" {
		t.Error("expected header value line breaks to be stripped")
	}
}

func TestBuild_AlternativeWithAttachment(t *testing.T) {
	parsed := parseBuilt(t, &mail.Message{
		From:     "sender@example.com",
		To:       []string{"a@example.com"},
		Subject:  "Report",
		Body:     "see attached",
		HTMLBody: "<p>see attached</p>",
		Attachments: []mail.Attachment{
			{Name: "report.csv", ContentType: "text/csv", Content: bytes.Repeat([]byte("a,b\n"), 40)},
		},
	})

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/mixed" {
		t.Fatalf("top-level type = %q, want multipart/mixed", mediaType)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	first, err := mr.NextPart()
	if err != nil {
		t.Fatalf("first part: %v", err)
	}
	altType, altParams, _ := mime.ParseMediaType(first.Header.Get("Content-Type"))
	if altType != "multipart/alternative" {
		t.Fatalf("first part type = %q, want multipart/alternative", altType)
	}
	alt := multipart.NewReader(first, altParams["boundary"])
	var types []string
	for {
		p, err := alt.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("alternative part: %v", err)
		}
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		types = append(types, ct)
	}
	if len(types) != 2 || types[0] != "text/plain" || types[1] != "text/html" {
		t.Errorf("alternative parts = %v", types)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "report.csv" {
		t.Errorf("attachment filename = %q", att.FileName())
	}
	// multipart.Part decodes quoted-printable but not base64.
	encoded, _ := io.ReadAll(att)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		if len(line) > 76 {
			t.Errorf("base64 line longer than 76 chars: %d", len(line))
		}
	}
}

func TestBuild_HTMLOnly(t *testing.T) {
	parsed := parseBuilt(t, &mail.Message{
		From:     "sender@example.com",
		To:       []string{"a@example.com"},
		HTMLBody: "<b>hi</b>",
	})
	if !strings.HasPrefix(parsed.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", parsed.Header.Get("Content-Type"))
	}
}

func TestBuild_AlternativeBodies(t *testing.T) {
	parsed := parseBuilt(t, &mail.Message{
		From:     "sender@example.com",
		To:       []string{"a@example.com"},
		Body:     "plain text",
		HTMLBody: "<p>rich text</p>",
	})

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("type = %q, want multipart/alternative", mediaType)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	want := []struct {
		contentType string
		body        string
	}{
		{"text/plain", "plain text"},
		{"text/html", "<p>rich text</p>"},
	}
	for i, w := range want {
		p, err := mr.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		if ct != w.contentType {
			t.Errorf("part %d type = %q, want %q", i, ct, w.contentType)
		}
		// NextPart strips Content-Transfer-Encoding once it has decoded the body.
		var r io.Reader = p
		if p.Header.Get("Content-Transfer-Encoding") == "quoted-printable" {
			r = quotedprintable.NewReader(p)
		}
		body, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		if string(body) != w.body {
			t.Errorf("part %d body = %q, want %q", i, body, w.body)
		}
	}
	if _, err := mr.NextPart(); err != io.EOF {
		t.Errorf("expected exactly two parts, got err %v", err)
	}
}

func TestBuild_AttachmentContent(t *testing.T) {
	content := []byte("binary\x00payload")
	parsed := parseBuilt(t, &mail.Message{
		From: "sender@example.com",
		To:   []string{"a@example.com"},
		Body: "see attached",
		Attachments: []mail.Attachment{
			{Name: "blob.bin", ContentType: "application/octet-stream", Content: content},
		},
	})

	_, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	if _, err := mr.NextPart(); err != nil {
		t.Fatalf("text part: %v", err)
	}
	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "blob.bin" {
		t.Errorf("filename = %q", att.FileName())
	}
	encoded, _ := io.ReadAll(att)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Errorf("attachment content = %q, want %q", decoded, content)
	}
}
