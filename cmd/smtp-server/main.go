package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sungwon/post-office/internal/bootstrap"
	"github.com/sungwon/post-office/internal/config"
	"github.com/sungwon/post-office/internal/logger"
	smtpserver "github.com/sungwon/post-office/internal/smtp"
)

func main() {
	// Load configuration from the "config" directory.
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}, "smtp-server")
	log.Info().Msg("starting SMTP server")

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer app.Close()

	// Messages received over SMTP are queued through the composer.
	backend := smtpserver.NewBackend(app.Composer, smtpserver.Options{
		MaxConnections: cfg.SMTP.MaxConnections,
		MaxRecipients:  cfg.SMTP.MaxRecipients,
		AllowedDomains: cfg.SMTP.AllowedDomains,
	}, log)

	serverCfg := smtpserver.ServerConfig{
		Addr:           fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
		Domain:         cfg.SMTP.Domain,
		ReadTimeout:    cfg.SMTP.ReadTimeout,
		WriteTimeout:   cfg.SMTP.WriteTimeout,
		MaxMessageSize: cfg.SMTP.MaxMessageSize,
		MaxRecipients:  cfg.SMTP.MaxRecipients,
		CertFile:       cfg.TLS.CertFile,
		KeyFile:        cfg.TLS.KeyFile,
	}
	s := smtpserver.NewServer(backend, serverCfg)
	if err := smtpserver.EnableTLS(s, serverCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to configure TLS")
	}
	if s.TLSConfig != nil {
		log.Info().Msg("STARTTLS enabled")
	}

	// Start listening on the configured address.
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", s.Addr).Msg("failed to listen")
	}

	// Serve connections in a goroutine.
	go func() {
		log.Info().Str("addr", s.Addr).Msg("SMTP server listening")
		if err := s.Serve(ln); err != nil {
			log.Error().Err(err).Msg("SMTP server error")
		}
	}()

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down SMTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("SMTP server shutdown error")
	}

	log.Info().Msg("SMTP server stopped")
}
