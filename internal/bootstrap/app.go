// Package bootstrap wires the shared components every command needs from a
// loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/compose"
	"github.com/sungwon/post-office/internal/config"
	"github.com/sungwon/post-office/internal/dispatch"
	"github.com/sungwon/post-office/internal/lock"
	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/msgstore"
	"github.com/sungwon/post-office/internal/storage"
	"github.com/sungwon/post-office/internal/templates"
	"github.com/sungwon/post-office/internal/transport"
)

// App holds the components built from a Config.
type App struct {
	DB         *storage.DB
	Store      *storage.Store
	Redis      *redis.Client // nil when redis.url is empty
	Blobs      msgstore.BlobStore
	Templates  *templates.Resolver
	Transports *transport.Registry
	Dispatcher *dispatch.Dispatcher
	Composer   *compose.Composer
}

// New connects to the database and Redis and builds the dispatcher and
// composer. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	defaultPriority, err := mail.ParsePriority(cfg.Dispatch.DefaultPriority, mail.PriorityMedium)
	if err != nil {
		return nil, fmt.Errorf("dispatch.default_priority: %w", err)
	}

	transports, err := transport.NewRegistryFromConfig(cfg.Backends)
	if err != nil {
		return nil, fmt.Errorf("configure backends: %w", err)
	}

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db, Store: storage.NewStore(db), Transports: transports}
	log.Info().Msg("database connection established")

	var cache templates.Cache
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		app.Redis = redis.NewClient(opts)
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		cache = templates.NewRedisCache(app.Redis, cfg.Templates.CacheTTL)
		log.Info().Msg("redis connection established")
	}
	app.Templates = templates.NewResolver(app.Store, cache, log)

	app.Blobs, err = msgstore.New(ctx, msgstore.Config{
		Type:       cfg.Storage.Type,
		Path:       cfg.Storage.Path,
		S3Bucket:   cfg.Storage.S3Bucket,
		S3Prefix:   cfg.Storage.S3Prefix,
		S3Endpoint: cfg.Storage.S3Endpoint,
		S3Region:   cfg.Storage.S3Region,
	}, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("initialize attachment store: %w", err)
	}
	log.Info().Str("type", cfg.Storage.Type).Msg("attachment store initialized")

	app.Dispatcher = dispatch.New(app.Store, transports, dispatch.Options{
		BatchSize: cfg.Dispatch.BatchSize,
		Templates: app.Templates,
		Blobs:     app.Blobs,
	}, log.With().Str("component", "dispatch").Logger())

	app.Composer = compose.New(app.Store, app.Templates, app.Blobs, app.Dispatcher, compose.Options{
		DefaultFrom:     cfg.Dispatch.DefaultFrom,
		DefaultPriority: defaultPriority,
	}, log.With().Str("component", "compose").Logger())

	log.Info().Strs("backends", transports.Names()).Msg("application initialized")
	return app, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewLocker returns the dispatch lock selected by cfg.LockType. The redis
// lock requires client.
func NewLocker(cfg config.DispatchConfig, client *redis.Client) (lock.Locker, error) {
	switch cfg.LockType {
	case "", "file":
		path := cfg.Lockfile
		if path == "" {
			path = config.DefaultLockfile()
		}
		return lock.NewFileLock(path), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis lock requires redis.url")
		}
		return lock.NewRedisLock(client, cfg.LockKey, cfg.LockTTL), nil
	default:
		return nil, fmt.Errorf("unknown lock type %q", cfg.LockType)
	}
}
