// Package httpx renders every error the API returns as application/problem+json.
package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
)

// Problem is an RFC 9457 body with three extensions: code (stable,
// machine-readable), context (per-error payload such as validation fields)
// and requestId (from chi's RequestID middleware).
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Code      string `json:"code,omitempty"`
	Context   any    `json:"context,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (p *Problem) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return http.StatusText(p.GetStatus())
}

// GetStatus satisfies huma.StatusError.
func (p *Problem) GetStatus() int {
	if p.Status == 0 {
		return http.StatusInternalServerError
	}
	return p.Status
}

// ContentType satisfies huma.ContentTypeFilter.
func (p *Problem) ContentType(ct string) string {
	if ct == "application/json" {
		return "application/problem+json"
	}
	return ct
}

// DomainProblem is the method set domain errors expose so ToProblem can
// format them without knowing their concrete types.
type DomainProblem interface {
	ProblemCode() string
	ProblemStatus() int
	ProblemTitle() string
	ProblemDetail() string
	ProblemTypeURI() string
	ProblemContext() any
}

// ToProblem converts err into a response error. Huma status errors pass
// through, domain errors keep their code and status, deadline errors become
// 503 and everything else is an opaque 500.
func ToProblem(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(huma.StatusError); ok {
		return err
	}

	var dp DomainProblem
	switch {
	case errors.As(err, &dp):
		p := newProblem(ctx, dp.ProblemStatus(), dp.ProblemCode(), dp.ProblemDetail())
		if dp.ProblemTitle() != "" {
			p.Title = dp.ProblemTitle()
		}
		if dp.ProblemTypeURI() != "" {
			p.Type = dp.ProblemTypeURI()
		}
		p.Context = dp.ProblemContext()
		return p
	case errors.Is(err, context.DeadlineExceeded):
		return newProblem(ctx, http.StatusServiceUnavailable, "ErrTimeout", "The request took too long. Please try again.")
	default:
		return InternalProblem(ctx, "")
	}
}

// UnauthorizedProblem is a 401 with code ErrUnauthorized.
func UnauthorizedProblem(ctx context.Context, detail string) *Problem {
	return newProblem(ctx, http.StatusUnauthorized, "ErrUnauthorized", detail)
}

// ForbiddenProblem is a 403 with code ErrForbidden.
func ForbiddenProblem(ctx context.Context, detail string) *Problem {
	return newProblem(ctx, http.StatusForbidden, "ErrForbidden", detail)
}

// InternalProblem is a 500 with code ErrInternal. It never carries error text
// from lower layers.
func InternalProblem(ctx context.Context, detail string) *Problem {
	if detail == "" {
		detail = "Something went wrong. Please try again later."
	}
	return newProblem(ctx, http.StatusInternalServerError, "ErrInternal", detail)
}

// NewHumaError replaces huma.NewError so request-schema failures (bad JSON,
// missing multipart fields, enum mismatches) share the domain validation
// shape: status 400, code ErrValidation, context.fields keyed by location.
func NewHumaError(status int, msg string, errs ...error) huma.StatusError {
	if status != http.StatusUnprocessableEntity && status != http.StatusBadRequest {
		code := "Err" + strings.ReplaceAll(http.StatusText(status), " ", "")
		return newProblem(context.Background(), status, code, msg)
	}

	fields := map[string][]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		detail := &huma.ErrorDetail{Message: err.Error()}
		if d, ok := err.(huma.ErrorDetailer); ok {
			detail = d.ErrorDetail()
		}
		loc := strings.TrimPrefix(detail.Location, "body.")
		if loc == "" {
			loc = "body"
		}
		fields[loc] = append(fields[loc], detail.Message)
	}

	p := newProblem(context.Background(), http.StatusBadRequest, "ErrValidation", msg)
	p.Title = "Validation error"
	p.Type = "urn:problem:validation-error"
	p.Context = map[string]any{"fields": fields}
	return p
}

func newProblem(ctx context.Context, status int, code, detail string) *Problem {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &Problem{
		Type:      "urn:problem:" + kebab(code),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		Code:      code,
		RequestID: middleware.GetReqID(ctx),
	}
}

// kebab turns ErrAlreadyPending into err-already-pending.
func kebab(code string) string {
	var b strings.Builder
	for i, r := range code {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
