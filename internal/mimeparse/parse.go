// Package mimeparse splits raw RFC 5322 messages received by the SMTP
// ingress into subject, text and HTML bodies, and attachments.
package mimeparse

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
)

// maxDepth bounds multipart nesting.
const maxDepth = 8

// ErrTooDeep is returned for messages nested deeper than maxDepth.
var ErrTooDeep = errors.New("mimeparse: multipart nesting too deep")

// structural headers describe the MIME layout and are rebuilt on delivery.
var structural = map[string]bool{
	"Content-Type":              true,
	"Content-Transfer-Encoding": true,
	"Mime-Version":              true,
}

// Message holds the parts of a parsed message.
type Message struct {
	Subject     string
	Header      mail.Header
	Text        string
	HTML        string
	Attachments []Part
}

// Part is an attachment or inline part.
type Part struct {
	Filename    string
	ContentType string
	Content     []byte
	ContentID   string // for inline images (cid:xxx)
	Inline      bool
}

var decoder = new(mime.WordDecoder)

// Parse parses a raw message. A message without Content-Type is text/plain.
// In multipart bodies the first text/plain and text/html parts become the
// bodies and every other leaf part becomes an attachment.
func Parse(raw []byte) (*Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mimeparse: read message: %w", err)
	}

	out := &Message{
		Header:  msg.Header,
		Subject: decodeWords(msg.Header.Get("Subject")),
	}

	mediaType, params := "text/plain", map[string]string(nil)
	if ct := msg.Header.Get("Content-Type"); ct != "" {
		mediaType, params, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("mimeparse: parse Content-Type: %w", err)
		}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if params["boundary"] == "" {
			return nil, errors.New("mimeparse: multipart message missing boundary")
		}
		if err := out.walk(msg.Body, params["boundary"], 1); err != nil {
			return nil, err
		}
		return out, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("mimeparse: read body: %w", err)
	}
	if mediaType == "text/html" {
		out.HTML = string(body)
	} else {
		out.Text = string(body)
	}
	return out, nil
}

// Headers flattens the header to its first values, dropping structural
// headers and any key for which drop returns true. drop may be nil.
func (m *Message) Headers(drop func(key string) bool) map[string]string {
	out := make(map[string]string)
	keys := make([]string, 0, len(m.Header))
	for k := range m.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ck := textproto.CanonicalMIMEHeaderKey(k)
		if structural[ck] || (drop != nil && drop(ck)) {
			continue
		}
		out[ck] = decodeWords(m.Header.Get(k))
	}
	return out
}

func (m *Message) walk(r io.Reader, boundary string, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	mr := multipart.NewReader(r, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mimeparse: next part: %w", err)
		}

		mediaType := "text/plain"
		var params map[string]string
		if ct := part.Header.Get("Content-Type"); ct != "" {
			if mediaType, params, err = mime.ParseMediaType(ct); err != nil {
				mediaType = "application/octet-stream"
			}
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if params["boundary"] == "" {
				continue
			}
			if err := m.walk(part, params["boundary"], depth+1); err != nil {
				return err
			}
			continue
		}

		body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return fmt.Errorf("mimeparse: read part: %w", err)
		}

		attached := isAttachment(part.Header.Get("Content-Disposition"))
		switch {
		case !attached && mediaType == "text/plain" && m.Text == "":
			m.Text = string(body)
		case !attached && mediaType == "text/html" && m.HTML == "":
			m.HTML = string(body)
		default:
			m.Attachments = append(m.Attachments, newPart(part, mediaType, params, body))
		}
	}
}

func isAttachment(disposition string) bool {
	if disposition == "" {
		return false
	}
	d, _, err := mime.ParseMediaType(disposition)
	return err == nil && strings.EqualFold(d, "attachment")
}

func newPart(part *multipart.Part, mediaType string, params map[string]string, body []byte) Part {
	p := Part{ContentType: mediaType, Content: body}

	if d := part.Header.Get("Content-Disposition"); d != "" {
		if dispType, dispParams, err := mime.ParseMediaType(d); err == nil {
			p.Filename = dispParams["filename"]
			p.Inline = strings.EqualFold(dispType, "inline")
		}
	}
	if p.Filename == "" {
		p.Filename = params["name"]
	}
	p.Filename = decodeWords(p.Filename)

	p.ContentID = strings.Trim(part.Header.Get("Content-Id"), "<>")
	return p
}

// decodeBody reads r, undoing base64 or quoted-printable transfer encoding.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return io.ReadAll(base64.NewDecoder(base64.StdEncoding, r))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}

// decodeWords decodes RFC 2047 encoded-words, returning s unchanged when it
// cannot be decoded.
func decodeWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	d, err := decoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return d
}
