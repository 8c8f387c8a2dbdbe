// Package smtp accepts messages over SMTP and queues them through the
// composer.
package smtp

import (
	"context"
	"sync/atomic"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/compose"
	"github.com/sungwon/post-office/internal/logger"
	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/metrics"
)

// Sender queues composed messages.
type Sender interface {
	Send(ctx context.Context, sp compose.SendParams) ([]*mail.Message, error)
	ParsePriority(name string) (mail.Priority, error)
}

// Options configures the ingress policy.
type Options struct {
	MaxConnections int
	MaxRecipients  int
	// AllowedDomains restricts sender domains. Empty allows every domain.
	AllowedDomains []string
}

// Backend implements the go-smtp Backend interface.
// It manages session creation and enforces connection limits.
type Backend struct {
	sender Sender
	opts   Options
	log    zerolog.Logger
	active atomic.Int64
}

// NewBackend creates a new SMTP backend that queues accepted mail through
// sender.
func NewBackend(sender Sender, opts Options, log zerolog.Logger) *Backend {
	return &Backend{
		sender: sender,
		opts:   opts,
		log:    log,
	}
}

// NewSession is called after a client connects. It enforces connection
// limits and creates a new Session for the connection.
func (b *Backend) NewSession(conn *gosmtp.Conn) (gosmtp.Session, error) {
	current := b.active.Add(1)
	if b.opts.MaxConnections > 0 && int(current) > b.opts.MaxConnections {
		b.active.Add(-1)
		metrics.SMTPConnectionsTotal.WithLabelValues("rejected").Inc()
		b.log.Warn().
			Int64("active", current-1).
			Int("max", b.opts.MaxConnections).
			Msg("connection limit reached")
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "Too many connections",
		}
	}
	metrics.SMTPConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.SMTPActiveSessions.Inc()

	correlationID := logger.NewCorrelationID()
	ctx := logger.WithCorrelationID(context.Background(), correlationID)

	sessionLog := b.log.With().
		Str("correlation_id", correlationID).
		Str("remote_addr", remoteAddr(conn)).
		Logger()

	sessionLog.Info().Msg("new SMTP session")

	return &Session{
		ctx:     ctx,
		sender:  b.sender,
		log:     sessionLog,
		backend: b,
	}, nil
}

// ActiveSessions returns the current number of active SMTP sessions.
func (b *Backend) ActiveSessions() int64 {
	return b.active.Load()
}

func remoteAddr(conn *gosmtp.Conn) string {
	if conn == nil || conn.Conn() == nil {
		return ""
	}
	return conn.Conn().RemoteAddr().String()
}
