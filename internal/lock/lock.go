// Package lock prevents overlapping dispatch cycles.
package lock

import (
	"context"
	"errors"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock is held by another process")

// Locker is a non-blocking mutual exclusion lock.
type Locker interface {
	// TryLock acquires the lock or returns ErrLocked immediately.
	TryLock(ctx context.Context) error
	// Unlock releases a lock acquired by TryLock.
	Unlock(ctx context.Context) error
}

var (
	_ Locker = (*FileLock)(nil)
	_ Locker = (*RedisLock)(nil)
)
