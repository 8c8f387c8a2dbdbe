package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/compose"
	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/metrics"
	"github.com/sungwon/post-office/internal/mimeparse"
)

// Control headers set by submitting clients. They steer queueing and are
// removed before the message is stored.
const (
	HeaderPriority  = "X-Post-Office-Priority"
	HeaderScheduled = "X-Post-Office-Scheduled"
	HeaderBackend   = "X-Post-Office-Backend"

	controlPrefix = "X-Post-Office-"
)

// envelope headers are carried by the message fields rather than Headers.
var envelope = map[string]bool{
	"From":       true,
	"To":         true,
	"Cc":         true,
	"Bcc":        true,
	"Subject":    true,
	"Date":       true,
	"Message-Id": true,
}

// Session handles a single SMTP connection and implements the go-smtp Session
// interface. It validates envelope addresses and queues each accepted
// message.
type Session struct {
	ctx        context.Context
	sender     Sender
	log        zerolog.Logger
	backend    *Backend
	from       string
	recipients []string
}

// Mail handles the MAIL FROM command. The sender must be a valid address
// in an allowed domain.
func (s *Session) Mail(from string, _ *gosmtp.MailOptions) error {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		s.log.Warn().Str("from", from).Msg("invalid sender address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 7},
			Message:      "Invalid sender address",
		}
	}

	domain := mail.Domain(addr)
	if !s.domainAllowed(domain) {
		s.log.Warn().
			Str("from", addr).
			Str("domain", domain).
			Strs("allowed", s.backend.opts.AllowedDomains).
			Msg("sender domain not allowed")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "Sender domain not allowed",
		}
	}

	s.from = addr
	s.log.Debug().Str("from", s.from).Msg("MAIL FROM accepted")
	return nil
}

// Rcpt handles the RCPT TO command.
func (s *Session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if limit := s.backend.opts.MaxRecipients; limit > 0 && len(s.recipients) >= limit {
		return &gosmtp.SMTPError{
			Code:         452,
			EnhancedCode: gosmtp.EnhancedCode{4, 5, 3},
			Message:      "Too many recipients",
		}
	}

	addr, err := mail.ParseAddress(to)
	if err != nil {
		s.log.Warn().Str("to", to).Msg("invalid recipient address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "Invalid recipient address",
		}
	}

	s.recipients = append(s.recipients, addr)
	s.log.Debug().Str("to", addr).Msg("RCPT TO accepted")
	return nil
}

// Data handles the DATA command. The message is parsed and one queued
// message is created per envelope recipient.
// Message body content is not logged.
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &gosmtp.SMTPError{
			Code:         503,
			EnhancedCode: gosmtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		s.log.Error().Err(err).Msg("failed to read message data")
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "Error reading message",
		}
	}

	parsed, err := mimeparse.Parse(buf.Bytes())
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to parse message")
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	sp, err := s.sendParams(parsed)
	if err != nil {
		s.log.Warn().Err(err).Msg("invalid control header")
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      err.Error(),
		}
	}

	start := time.Now()
	msgs, err := s.sender.Send(s.ctx, sp)
	metrics.SMTPMessageEnqueueDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return s.sendError(err)
	}

	s.log.Info().
		Str("from", s.from).
		Int("recipient_count", len(s.recipients)).
		Int("messages", len(msgs)).
		Str("priority", sp.Priority.String()).
		Msg("message queued")

	return nil
}

// sendParams maps the parsed message and envelope onto a send request.
func (s *Session) sendParams(parsed *mimeparse.Message) (compose.SendParams, error) {
	priority, err := s.sender.ParsePriority(parsed.Header.Get(HeaderPriority))
	if err != nil {
		return compose.SendParams{}, err
	}

	var scheduled *time.Time
	if v := strings.TrimSpace(parsed.Header.Get(HeaderScheduled)); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return compose.SendParams{}, errors.New("invalid " + HeaderScheduled + " header, expected RFC 3339")
		}
		scheduled = &ts
	}

	uploads := make([]compose.Upload, 0, len(parsed.Attachments))
	for _, a := range parsed.Attachments {
		uploads = append(uploads, compose.Upload{
			Name:        a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}

	headers := parsed.Headers(func(key string) bool {
		return envelope[key] || strings.HasPrefix(key, controlPrefix)
	})

	return compose.SendParams{
		Params: compose.Params{
			From:          s.from,
			Subject:       parsed.Subject,
			Body:          parsed.Text,
			HTMLBody:      parsed.HTML,
			Headers:       headers,
			Priority:      priority,
			ScheduledTime: scheduled,
			Backend:       strings.TrimSpace(parsed.Header.Get(HeaderBackend)),
			Commit:        true,
		},
		Recipients: s.recipients,
		Uploads:    uploads,
		Source:     "smtp",
	}, nil
}

func (s *Session) sendError(err error) error {
	switch {
	case errors.Is(err, mail.ErrInvalidAddress),
		errors.Is(err, mail.ErrNoRecipients),
		errors.Is(err, mail.ErrNoSender):
		s.log.Warn().Err(err).Msg("message rejected")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 0},
			Message:      "Message rejected",
		}
	default:
		s.log.Error().Err(err).Msg("failed to queue message")
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "Error queuing message",
		}
	}
}

// Reset is called between messages in the same session.
func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout is called when the client disconnects. It decrements the backend's
// active session counter and logs the session closure.
func (s *Session) Logout() error {
	s.backend.active.Add(-1)
	metrics.SMTPActiveSessions.Dec()
	s.log.Info().Msg("session closed")
	return nil
}

// domainAllowed checks the sender domain against the allow-list. If no
// domains are configured, all domains are allowed.
func (s *Session) domainAllowed(domain string) bool {
	allowed := s.backend.opts.AllowedDomains
	if len(allowed) == 0 {
		return true
	}
	for _, d := range allowed {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
