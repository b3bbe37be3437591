package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Jabakyo/next-class/internal/store"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// DeadLetter is a message that could not be delivered.
type DeadLetter struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Recipient string    `json:"recipient"`
	Data      any       `json:"data"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failedAt"`
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	Sender      Sender
	Store       store.Store
	Log         *slog.Logger
	Size        int
	MaxAttempts int
	// BaseDelay is the first retry delay; it doubles on every attempt.
	BaseDelay time.Duration
}

// Queue delivers messages on a background worker. Notify never blocks and
// never fails: messages that cannot be queued or delivered end up in the
// notification-dead-letters document.
type Queue struct {
	sender      Sender
	store       store.Store
	log         *slog.Logger
	maxAttempts int
	baseDelay   time.Duration

	jobs   chan Message
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the worker.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		sender:      cfg.Sender,
		store:       cfg.Store,
		log:         cfg.Log,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		jobs:        make(chan Message, cfg.Size),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go q.run()
	return q
}

// Notify enqueues msg. The caller's context only bounds the dead-letter write
// when the queue is full or closed.
func (q *Queue) Notify(ctx context.Context, msg Message) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.deadLetter(context.WithoutCancel(ctx), msg, "queue closed", 0)
		return
	}
	select {
	case q.jobs <- msg:
	default:
		q.log.Warn("notification queue full", "kind", msg.Kind, "recipient", msg.Recipient)
		q.deadLetter(context.WithoutCancel(ctx), msg, "queue full", 0)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// When ctx expires first, in-flight retries are abandoned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	defer q.cancel()
	for msg := range q.jobs {
		q.deliver(msg)
	}
}

func (q *Queue) deliver(msg Message) {
	backoff := retry.WithMaxRetries(uint64(q.maxAttempts-1), retry.NewExponential(q.baseDelay))

	attempts := 0
	var last Result
	err := retry.Do(q.ctx, backoff, func(ctx context.Context) error {
		attempts++
		last = q.sender.SendEmail(ctx, msg.Kind, msg.Recipient, msg.Data)
		if last.Success {
			return nil
		}
		err := errors.New(last.Error)
		if last.Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return
	}

	q.log.Error("notification delivery failed", "kind", msg.Kind, "recipient", msg.Recipient, "attempts", attempts, "error", err)
	reason := last.Error
	if reason == "" {
		reason = err.Error()
	}
	q.deadLetter(context.Background(), msg, reason, attempts)
}

func (q *Queue) deadLetter(ctx context.Context, msg Message, reason string, attempts int) {
	if q.store == nil {
		return
	}
	letter := DeadLetter{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      msg.Kind,
		Recipient: msg.Recipient,
		Data:      msg.Data,
		Error:     reason,
		Attempts:  attempts,
		FailedAt:  time.Now().UTC(),
	}
	_, err := store.Update(ctx, q.store, store.NotificationDeadLetters, []DeadLetter{}, func(letters []DeadLetter) ([]DeadLetter, error) {
		return append(letters, letter), nil
	})
	if err != nil {
		q.log.Error("failed to record dead letter", "kind", msg.Kind, "recipient", msg.Recipient, "error", err)
	}
}

// DeadLetters returns every recorded dead letter, oldest first.
func DeadLetters(ctx context.Context, s store.Store) ([]DeadLetter, error) {
	return store.Read(ctx, s, store.NotificationDeadLetters, []DeadLetter{})
}
