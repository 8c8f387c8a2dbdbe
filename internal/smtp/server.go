package smtp

import (
	"crypto/tls"
	"fmt"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// ServerConfig holds listener settings for the ingress server.
type ServerConfig struct {
	Addr           string
	Domain         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	MaxRecipients  int
	// CertFile and KeyFile enable STARTTLS when both are set.
	CertFile string
	KeyFile  string
}

// NewServer configures a go-smtp server around backend.
func NewServer(backend *Backend, cfg ServerConfig) *gosmtp.Server {
	s := gosmtp.NewServer(backend)
	s.Addr = cfg.Addr
	s.Domain = cfg.Domain
	s.ReadTimeout = cfg.ReadTimeout
	s.WriteTimeout = cfg.WriteTimeout
	s.MaxMessageBytes = cfg.MaxMessageSize
	s.MaxRecipients = cfg.MaxRecipients
	s.EnableSMTPUTF8 = true
	return s
}

// EnableTLS loads the configured certificate into s for STARTTLS. It is a
// no-op when no certificate is configured.
func EnableTLS(s *gosmtp.Server, cfg ServerConfig) error {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load TLS certificate: %w", err)
	}
	s.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return nil
}
