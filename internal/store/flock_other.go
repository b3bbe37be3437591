//go:build !unix

package store

import (
	"context"
	"time"
)

// flock is a no-op where advisory file locks are unavailable; only the
// in-process lock applies.
func flock(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	return func() {}, ctx.Err()
}
