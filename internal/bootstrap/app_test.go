package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/config"
	"github.com/sungwon/post-office/internal/lock"
	"github.com/sungwon/post-office/internal/transport"
)

func TestNewLocker_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch")

	l, err := NewLocker(config.DispatchConfig{LockType: "file", Lockfile: path}, nil)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	fl, ok := l.(*lock.FileLock)
	if !ok {
		t.Fatalf("expected *lock.FileLock, got %T", l)
	}
	if fl.Path() != path+".lock" {
		t.Errorf("expected path %s.lock, got %s", path, fl.Path())
	}
}

func TestNewLocker_DefaultsToFile(t *testing.T) {
	l, err := NewLocker(config.DispatchConfig{}, nil)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	fl, ok := l.(*lock.FileLock)
	if !ok {
		t.Fatalf("expected *lock.FileLock, got %T", l)
	}
	if fl.Path() != config.DefaultLockfile()+".lock" {
		t.Errorf("unexpected default path %s", fl.Path())
	}
}

func TestNewLocker_Redis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	l, err := NewLocker(config.DispatchConfig{LockType: "redis", LockKey: "k", LockTTL: time.Minute}, client)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	if _, ok := l.(*lock.RedisLock); !ok {
		t.Errorf("expected *lock.RedisLock, got %T", l)
	}
}

func TestNewLocker_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DispatchConfig
	}{
		{"redis without client", config.DispatchConfig{LockType: "redis"}},
		{"unknown type", config.DispatchConfig{LockType: "zookeeper"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocker(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_RejectsBadConfigBeforeConnecting(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"bad default priority", config.Config{Dispatch: config.DispatchConfig{DefaultPriority: "urgent"}}},
		{"missing default backend", config.Config{}},
		{"bad database url", config.Config{
			Backends: map[string]transport.Config{"default": {Type: "stdout"}},
			Database: config.DatabaseConfig{URL: "://nope", ConnectTimeout: time.Second},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(context.Background(), &tt.cfg, zerolog.Nop())
			if err == nil {
				app.Close()
				t.Fatal("expected error")
			}
		})
	}
}
