// Package lock provides single-writer, multi-reader exclusion over the
// index file via an OS file lock, so two processes never write the
// index concurrently and a writer never runs alongside a reader mid-sync.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Lock wraps a flock.Flock with timeout-bounded acquire helpers.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock backed by a sidecar file next to the index
// (path + ".lock"), created on first use.
func New(path string) *Lock {
	return &Lock{fl: flock.New(path + ".lock")}
}

// ErrTimeout is returned when the lock could not be acquired within the
// caller's timeout.
var ErrTimeout = fmt.Errorf("lock: timed out waiting for index lock")

// Exclusive acquires the lock for write access (Sync), blocking other
// readers and writers until Unlock. Returns ErrTimeout if timeout
// elapses first.
func (l *Lock) Exclusive(ctx context.Context, timeout time.Duration) error {
	return acquire(ctx, timeout, l.fl.TryLockContext)
}

// Shared acquires the lock for read access (Search/Chain/Related),
// allowing other readers to proceed concurrently but blocking writers.
func (l *Lock) Shared(ctx context.Context, timeout time.Duration) error {
	return acquire(ctx, timeout, l.fl.TryRLockContext)
}

// Unlock releases whichever lock mode is currently held.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

func acquire(ctx context.Context, timeout time.Duration, try func(context.Context, time.Duration) (bool, error)) error {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := try(lctx, 25*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTimeout
		}
		return fmt.Errorf("lock: %w", err)
	}
	if !ok {
		return ErrTimeout
	}
	return nil
}
