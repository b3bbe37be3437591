package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our owner token,
// so a holder whose TTL lapsed cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every server instance pointing at the same Redis.
// The TTL bounds how long a crashed holder can keep a key.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
	retry   time.Duration
	prefix  string
	log     *slog.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client *redis.Client, timeout, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = ttl
	}
	return &Redis{
		client:  client,
		timeout: timeout,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		prefix:  "next-class:lock:",
		log:     log,
	}
}

// Lock polls SET NX PX until it wins the key or the timeout elapses.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	owner, err := ownerToken()
	if err != nil {
		return nil, err
	}
	name := r.prefix + key
	deadline := time.Now().Add(r.timeout)

	for {
		ok, err := r.client.SetNX(ctx, name, owner, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock %q: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := releaseScript.Run(relCtx, r.client, []string{name}, owner).Err(); err != nil {
						r.log.Error("failed to release redis lock", "key", key, "error", err)
					}
				})
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrTimeout.WithDetail(fmt.Sprintf("timed out after %s waiting for %s", r.timeout, key))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

func ownerToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
