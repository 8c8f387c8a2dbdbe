package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/lock"
)

type fakeLocker struct {
	mu        sync.Mutex
	lockErr   error
	unlockErr error
	locks     int
	unlocks   int
}

func (f *fakeLocker) TryLock(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return f.lockErr
	}
	f.locks++
	return nil
}

func (f *fakeLocker) Unlock(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocks++
	return f.unlockErr
}

type fakeCycler struct {
	mu      sync.Mutex
	workers int
	calls   int
	result  Result
	err     error
	onCall  func(n int)
}

func (f *fakeCycler) DispatchQueued(_ context.Context, workers int) (Result, error) {
	f.mu.Lock()
	f.calls++
	f.workers = workers
	n := f.calls
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	return f.result, f.err
}

func TestRunner_RunOnceUnderLock(t *testing.T) {
	l := &fakeLocker{}
	c := &fakeCycler{result: Result{Attempted: 3, Sent: 3}}

	if err := NewRunner(c, l, 4, 0, zerolog.Nop()).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if c.calls != 1 || c.workers != 4 {
		t.Errorf("expected one cycle with 4 workers, got %d calls with %d", c.calls, c.workers)
	}
	if l.locks != 1 || l.unlocks != 1 {
		t.Errorf("expected lock acquired and released once, got %d/%d", l.locks, l.unlocks)
	}
}

func TestRunner_LockedSkipsCycle(t *testing.T) {
	l := &fakeLocker{lockErr: lock.ErrLocked}
	c := &fakeCycler{}

	if err := NewRunner(c, l, 1, 0, zerolog.Nop()).RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error when locked, got %v", err)
	}
	if c.calls != 0 {
		t.Error("dispatch should not run while locked")
	}
	if l.unlocks != 0 {
		t.Error("a lock that was not acquired should not be released")
	}
}

func TestRunner_LockFailure(t *testing.T) {
	l := &fakeLocker{lockErr: errors.New("redis down")}
	c := &fakeCycler{}

	if err := NewRunner(c, l, 1, 0, zerolog.Nop()).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.calls != 0 {
		t.Error("dispatch should not run without the lock")
	}
}

func TestRunner_DispatchErrorReleasesLock(t *testing.T) {
	l := &fakeLocker{}
	c := &fakeCycler{err: errors.New("select queued messages: boom")}

	if err := NewRunner(c, l, 1, 0, zerolog.Nop()).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if l.unlocks != 1 {
		t.Error("expected lock to be released after a failed cycle")
	}
}

func TestRunner_UnlockErrorIsNotFatal(t *testing.T) {
	l := &fakeLocker{unlockErr: errors.New("lease expired")}

	if err := NewRunner(&fakeCycler{}, l, 1, 0, zerolog.Nop()).RunOnce(context.Background()); err != nil {
		t.Errorf("expected unlock failure to be logged only, got %v", err)
	}
}

func TestRunner_FileLockExcludesSecondRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch")
	holder := lock.NewFileLock(path)
	if err := holder.TryLock(context.Background()); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer holder.Unlock(context.Background())

	c := &fakeCycler{}
	if err := NewRunner(c, lock.NewFileLock(path), 1, 0, zerolog.Nop()).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if c.calls != 0 {
		t.Error("second run should skip while the first holds the lock")
	}
}

func TestRunner_RunRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeCycler{
		err: errors.New("transient"),
		onCall: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	l := &fakeLocker{}

	done := make(chan struct{})
	go func() {
		NewRunner(c, l, 2, time.Millisecond, zerolog.Nop()).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls < 3 {
		t.Errorf("expected at least 3 cycles despite errors, got %d", c.calls)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks != l.unlocks {
		t.Errorf("expected every lock to be released, got %d locks and %d unlocks", l.locks, l.unlocks)
	}
}
