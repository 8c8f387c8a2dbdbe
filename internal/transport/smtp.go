package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/sungwon/post-office/internal/mail"
)

// TLS modes for SMTP backends.
const (
	TLSNone     = "none"
	TLSStartTLS = "starttls"
	TLSImplicit = "tls"
)

// SMTP delivers through an SMTP relay using go-smtp.
type SMTP struct {
	name string
	cfg  Config
	now  func() time.Time
}

// NewSMTP creates an SMTP transport registered as name.
func NewSMTP(name string, cfg Config) *SMTP {
	return &SMTP{name: name, cfg: cfg, now: time.Now}
}

func (s *SMTP) Name() string { return s.name }

// Open dials the relay, says hello and authenticates when credentials are
// configured.
func (s *SMTP) Open(ctx context.Context) (Connection, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	tlsConfig := &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}

	var conn net.Conn
	var err error
	if s.cfg.TLS == TLSImplicit {
		d := &tls.Dialer{Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, wrapNetError(s.name, OpOpen, err)
	}

	var c *smtp.Client
	if s.cfg.TLS == TLSStartTLS {
		c, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, s.classify(OpOpen, err)
		}
	} else {
		c = smtp.NewClient(conn)
	}
	c.CommandTimeout = s.cfg.Timeout
	c.SubmissionTimeout = s.cfg.Timeout

	if err := c.Hello(s.cfg.LocalName); err != nil {
		c.Close()
		return nil, s.classify(OpOpen, err)
	}

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, s.classify(OpOpen, err)
		}
	}

	return &smtpConn{transport: s, client: c}, nil
}

// classify converts an SMTP reply into *Error.
func (s *SMTP) classify(op string, err error) error {
	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return &Error{
			Transport: s.name,
			Op:        op,
			Code:      se.Code,
			Message:   se.Message,
			Permanent: classifyCode(se.Code),
			Err:       err,
		}
	}
	return wrapNetError(s.name, op, err)
}

type smtpConn struct {
	transport *SMTP
	client    *smtp.Client
}

func (c *smtpConn) Send(_ context.Context, msg *mail.Message) error {
	if len(msg.To) == 0 {
		return &Error{Transport: c.transport.name, Op: OpSend, Message: mail.ErrNoRecipients.Error(), Permanent: true, Err: mail.ErrNoRecipients}
	}

	raw, err := Build(msg, c.transport.now())
	if err != nil {
		return &Error{Transport: c.transport.name, Op: OpSend, Message: err.Error(), Permanent: true, Err: err}
	}

	if err := c.client.SendMail(msg.From, msg.To, bytes.NewReader(raw)); err != nil {
		// A failed transaction leaves the session mid-command. Reset so the
		// next message on this connection starts clean.
		if rerr := c.client.Reset(); rerr != nil {
			return c.transport.classify(OpSend, fmt.Errorf("%w (reset: %v)", err, rerr))
		}
		return c.transport.classify(OpSend, err)
	}
	return nil
}

func (c *smtpConn) Close() error {
	if err := c.client.Quit(); err != nil {
		c.client.Close()
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}
