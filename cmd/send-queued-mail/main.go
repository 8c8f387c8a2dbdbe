// Command send-queued-mail runs one dispatch cycle: it sends every queued
// message that is due and exits. Overlapping runs are prevented by a lock.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sungwon/post-office/internal/bootstrap"
	"github.com/sungwon/post-office/internal/config"
	"github.com/sungwon/post-office/internal/dispatch"
	"github.com/sungwon/post-office/internal/logger"
	"github.com/sungwon/post-office/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("send-queued-mail", pflag.ContinueOnError)
	flags.IntP("processes", "p", 1, "number of parallel workers")
	flags.StringP("lockfile", "L", config.DefaultLockfile(), "absolute path of the lock file")
	flags.StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	configPath := flags.String("config", "config", "directory containing config.yaml")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	cfg, err := config.LoadWithFlags(*configPath, flags,
		config.FlagBinding{Flag: "processes", Key: "dispatch.processes"},
		config.FlagBinding{Flag: "lockfile", Key: "dispatch.lockfile"},
		config.FlagBinding{Flag: "log-level", Key: "logging.level"},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}, "send-queued-mail")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return 1
	}
	defer app.Close()

	locker, err := bootstrap.NewLocker(cfg.Dispatch, app.Redis)
	if err != nil {
		log.Error().Err(err).Msg("failed to configure lock")
		return 1
	}

	code := 0
	runner := dispatch.NewRunner(app.Dispatcher, locker, cfg.Dispatch.Processes, 0, log)
	if err := runner.RunOnce(ctx); err != nil {
		code = 1
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			log.Warn().Err(err).Msg("failed to push metrics")
		}
	}
	return code
}
