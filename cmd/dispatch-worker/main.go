// Command dispatch-worker runs dispatch cycles on a fixed interval until it
// is stopped. It shares the lock with send-queued-mail, so both may be
// deployed against the same queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sungwon/post-office/internal/bootstrap"
	"github.com/sungwon/post-office/internal/config"
	"github.com/sungwon/post-office/internal/dispatch"
	"github.com/sungwon/post-office/internal/logger"
)

func main() {
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
	}, "dispatch-worker")
	log.Info().Msg("starting dispatch worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer app.Close()

	locker, err := bootstrap.NewLocker(cfg.Dispatch, app.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure lock")
	}

	interval := cfg.Dispatch.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	runner := dispatch.NewRunner(app.Dispatcher, locker, cfg.Dispatch.Processes, interval, log)

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down dispatch worker")
	cancel()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("dispatch cycle did not finish before shutdown timeout")
	}

	log.Info().Msg("dispatch worker stopped")
}
