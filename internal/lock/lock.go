// Package lock serializes work per logical key (for example one user id) so that
// same-key operations are linearized while unrelated keys proceed in parallel.
package lock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Jabakyo/next-class/internal/domainerr"
)

// ErrTimeout is returned when a lock could not be acquired within the configured bound.
var ErrTimeout = domainerr.New("lock", "ErrLockTimeout", http.StatusServiceUnavailable,
	"timed out waiting for a lock, please retry")

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Locker acquires exclusive access to a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// UserKey is the lock key guarding every mutation of one user's record.
func UserKey(userID string) string {
	return "user:" + userID
}

// Local is an in-process Locker. Each key maps to a one-slot channel so waiting
// can be abandoned on timeout or context cancellation, which sync.Mutex cannot do.
type Local struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker. A zero timeout waits until ctx is done.
func NewLocal(timeout time.Duration) *Local {
	return &Local{
		slots:   make(map[string]*slot),
		timeout: timeout,
	}
}

// Lock blocks until key is free, the timeout elapses, or ctx is cancelled.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var expired <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	case <-expired:
		l.release(key, s)
		return nil, ErrTimeout.WithDetail(fmt.Sprintf("timed out after %s waiting for %s", l.timeout, key))
	}
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
