package transport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/post-office/internal/mail"
)

// reservedHeaders are generated by Build and cannot be overridden through
// Message.Headers.
var reservedHeaders = map[string]bool{
	"From":                      true,
	"To":                        true,
	"Subject":                   true,
	"Date":                      true,
	"Mime-Version":              true,
	"Content-Type":              true,
	"Content-Transfer-Encoding": true,
}

type entity struct {
	header textproto.MIMEHeader
	body   []byte
}

// Build renders msg as an RFC 5322 message with a MIME body. Text and HTML
// bodies become multipart/alternative; attachments wrap the result in
// multipart/mixed.
func Build(msg *mail.Message, date time.Time) ([]byte, error) {
	body, err := bodyEntity(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, "From", msg.From)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))

	keys := make([]string, 0, len(msg.Headers))
	hasMessageID := false
	for k := range msg.Headers {
		ck := textproto.CanonicalMIMEHeaderKey(k)
		if reservedHeaders[ck] {
			continue
		}
		if ck == "Message-Id" {
			hasMessageID = true
		}
		keys = append(keys, k)
	}
	if !hasMessageID {
		writeHeader(&buf, "Message-ID", messageID(msg))
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&buf, k, msg.Headers[k])
	}

	writeHeader(&buf, "MIME-Version", "1.0")
	writeEntity(&buf, body)
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	// Strip line breaks so header values cannot inject new fields.
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

func writeEntity(buf *bytes.Buffer, e entity) {
	keys := make([]string, 0, len(e.header))
	for k := range e.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(buf, k, e.header.Get(k))
	}
	buf.WriteString("\r\n")
	buf.Write(e.body)
}

func messageID(msg *mail.Message) string {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	domain := "localhost"
	if at := strings.LastIndex(msg.From, "@"); at >= 0 && at < len(msg.From)-1 {
		domain = strings.TrimRight(msg.From[at+1:], ">")
	}
	return fmt.Sprintf("<%s@%s>", id, domain)
}

func bodyEntity(msg *mail.Message) (entity, error) {
	var content entity
	var err error
	switch {
	case msg.Body != "" && msg.HTMLBody != "":
		content, err = multipartEntity("alternative", []entity{
			textEntity("text/plain", msg.Body),
			textEntity("text/html", msg.HTMLBody),
		})
		if err != nil {
			return entity{}, err
		}
	case msg.HTMLBody != "":
		content = textEntity("text/html", msg.HTMLBody)
	default:
		content = textEntity("text/plain", msg.Body)
	}

	if len(msg.Attachments) == 0 {
		return content, nil
	}

	parts := []entity{content}
	for _, a := range msg.Attachments {
		parts = append(parts, attachmentEntity(a))
	}
	return multipartEntity("mixed", parts)
}

func textEntity(contentType, text string) entity {
	var b bytes.Buffer
	qp := quotedprintable.NewWriter(&b)
	qp.Write([]byte(text)) //nolint:errcheck
	qp.Close()             //nolint:errcheck

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType+"; charset=utf-8")
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	return entity{header: h, body: b.Bytes()}
}

func attachmentEntity(a mail.Attachment) entity {
	ct := a.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(extension(a.Name))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", mime.FormatMediaType(ct, map[string]string{"name": a.Name}))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	h.Set("Content-Transfer-Encoding", "base64")
	return entity{header: h, body: wrapBase64(a.Content)}
}

func multipartEntity(subtype string, parts []entity) (entity, error) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	for _, p := range parts {
		w, err := mw.CreatePart(p.header)
		if err != nil {
			return entity{}, fmt.Errorf("create %s part: %w", subtype, err)
		}
		if _, err := w.Write(p.body); err != nil {
			return entity{}, fmt.Errorf("write %s part: %w", subtype, err)
		}
	}
	if err := mw.Close(); err != nil {
		return entity{}, fmt.Errorf("close %s body: %w", subtype, err)
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", fmt.Sprintf("multipart/%s; boundary=%s", subtype, mw.Boundary()))
	return entity{header: h, body: b.Bytes()}, nil
}

// wrapBase64 encodes data in lines of 76 characters.
func wrapBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.Bytes()
}

func extension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
