// Package notification renders and delivers transactional email. Delivery is
// best-effort: callers get a Result, never an error, and the Queue moves sends
// off the request path with retries and a dead-letter document.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jabakyo/next-class/internal/notification/templates"
)

// Kind identifies an email scenario. It doubles as the template id.
type Kind string

const (
	KindVerificationApproved Kind = "verificationApproved"
	KindVerificationRejected Kind = "verificationRejected"
	KindAdminNotification    Kind = "adminNotification"
	KindPasswordReset        Kind = "passwordReset"
	KindEmailVerification    Kind = "emailVerification"
)

// Result reports the outcome of one send attempt.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Retryable is false when repeating the attempt cannot help, for example a
	// template that fails to render.
	Retryable bool `json:"-"`
}

// Message is a queued email.
type Message struct {
	Kind      Kind   `json:"kind"`
	Recipient string `json:"recipient"`
	Data      any    `json:"data"`
}

// NewMessage builds a message whose data type is checked against the template handle.
func NewMessage[T any](h templates.Handle[T], recipient string, data T) Message {
	return Message{Kind: Kind(h.ID()), Recipient: recipient, Data: data}
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Sender is the sendEmail capability.
type Sender interface {
	SendEmail(ctx context.Context, kind Kind, recipient string, data any) Result
}

// Notifier accepts messages for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Dispatcher renders a kind's template and hands it to the mailer.
type Dispatcher struct {
	renderer templates.Renderer
	mailer   Mailer
	timeout  time.Duration
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher. A zero timeout disables the per-send deadline.
func NewDispatcher(renderer templates.Renderer, mailer Mailer, timeout time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		mailer:   mailer,
		timeout:  timeout,
		log:      log,
	}
}

// SendEmail never panics and never returns an error value: every failure,
// including a panicking mailer, is reported through Result.
func (d *Dispatcher) SendEmail(ctx context.Context, kind Kind, recipient string, data any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("email sender panicked", "kind", kind, "recipient", recipient, "panic", r)
			res = Result{Error: fmt.Sprintf("panic: %v", r), Retryable: true}
		}
	}()

	rendered, err := d.renderer.RenderAny(ctx, string(kind), data)
	if err != nil {
		d.log.Error("failed to render email", "kind", kind, "error", err)
		return Result{Error: err.Error()}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- d.mailer.Send(ctx, recipient, rendered.Subject, rendered.EmailHTML, rendered.EmailText)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		d.log.Warn("email send failed", "kind", kind, "recipient", recipient, "error", err)
		return Result{Error: err.Error(), Retryable: true}
	}
	return Result{Success: true}
}
