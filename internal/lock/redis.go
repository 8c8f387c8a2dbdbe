package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// extendScript resets the lease only while the key still holds our token.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLock is a lease held in Redis. It lets dispatch cycles on different
// hosts exclude each other. While held, the lease is extended every ttl/3,
// so it only expires after ttl once the holder has died.
type RedisLock struct {
	client redisClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
	stop  context.CancelFunc
	done  chan struct{}
}

// NewRedisLock creates a lock on key with the given lease duration.
func NewRedisLock(client redisClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire redis lock %s: %w", l.key, err)
	}
	if !ok {
		return ErrLocked
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.token = token
	if interval := l.ttl / 3; interval > 0 {
		kctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		l.stop = cancel
		l.done = make(chan struct{})
		go l.keepAlive(kctx, token, interval, l.done)
	}
	return nil
}

// keepAlive extends the lease until ctx is cancelled or the lease is found
// to belong to someone else. Transient errors are retried on the next tick.
func (l *RedisLock) keepAlive(ctx context.Context, token string, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.client.Eval(ctx, extendScript, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	stop, done := l.stop, l.done
	l.token, l.stop, l.done = "", nil, nil
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if stop != nil {
		stop()
		<-done
	}

	n, err := l.client.Eval(ctx, unlockScript, []string{l.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release redis lock %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("release redis lock %s: lease expired", l.key)
	}
	return nil
}
