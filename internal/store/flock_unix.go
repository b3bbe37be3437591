//go:build unix

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Jabakyo/next-class/internal/lock"
	"golang.org/x/sys/unix"
)

// flock takes an exclusive advisory lock on path, polling with LOCK_NB so the
// wait can honour ctx and the timeout.
func flock(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		err = unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(int(fh.Fd()), unix.LOCK_UN)
				_ = fh.Close()
			}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			fh.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			fh.Close()
			return nil, lock.ErrTimeout.WithDetail(fmt.Sprintf("timed out after %s waiting for %s", timeout, path))
		}
		select {
		case <-ctx.Done():
			fh.Close()
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
