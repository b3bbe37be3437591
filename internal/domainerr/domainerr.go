// Package domainerr provides the structured, self-describing error type shared by
// every module. It carries HTTP/RFC7807-friendly metadata so httpx.ToProblem can
// convert any domain error into a Problem response without enumerating error types.
package domainerr

import (
	"fmt"
	"net/http"
)

// DomainError is a structured domain error.
type DomainError struct {
	// Code is a stable, machine-readable business code (e.g., "ErrAlreadyPending").
	Code string

	// HTTPStatus is the HTTP status suggested for this error (e.g., 400, 401, 404, 409, 500).
	HTTPStatus int

	// Title is a short human summary; if empty the formatter will default to StatusText(HTTPStatus).
	Title string

	// Message is a human-readable message primarily for logs. When Detail is empty,
	// this is used as the public detail.
	Message string

	// Detail is a user-friendly, safe explanation for clients. If empty, Message is used.
	Detail string

	// TypeURI is an RFC7807 type URI for documentation, e.g., "urn:problem:user/err-not-found".
	TypeURI string

	// Context is an optional extension payload for clients (e.g., validation fields map).
	Context any

	cause error
}

// New builds a sentinel. The title is derived from the status.
func New(module, code string, status int, message string) *DomainError {
	return &DomainError{
		Code:       code,
		HTTPStatus: status,
		Title:      http.StatusText(status),
		Message:    message,
		TypeURI:    "urn:problem:" + module + "/" + kebab(code),
	}
}

// Error satisfies the standard Go error interface.
// It includes the underlying cause's error message if it exists.
func (e *DomainError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap provides compatibility for errors.Is and errors.As,
// allowing access to the underlying error chain.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is compares on the stable Code rather than pointer identity, so copies created
// via WithCause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the DomainError wrapping the provided cause.
func (e *DomainError) WithCause(err error) *DomainError {
	if err == nil {
		return e
	}
	cp := *e
	cp.cause = err
	return &cp
}

// WithDetail sets a public-friendly detail message for clients.
func (e *DomainError) WithDetail(detail string) *DomainError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithContext attaches an extension payload for clients.
func (e *DomainError) WithContext(ctx any) *DomainError {
	cp := *e
	cp.Context = ctx
	return &cp
}

// --- RFC7807 mapping accessors (satisfy httpx.DomainProblem) ---

func (e *DomainError) ProblemCode() string { return e.Code }
func (e *DomainError) ProblemStatus() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}
func (e *DomainError) ProblemTitle() string { return e.Title }
func (e *DomainError) ProblemDetail() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
func (e *DomainError) ProblemTypeURI() string { return e.TypeURI }
func (e *DomainError) ProblemContext() any    { return e.Context }

// kebab turns ErrAlreadyPending into err-already-pending.
func kebab(code string) string {
	out := make([]byte, 0, len(code)+4)
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '-')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
