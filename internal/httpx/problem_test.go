package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Jabakyo/next-class/internal/domainerr"
	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/require"
)

func TestToProblemFormatsDomainErrors(t *testing.T) {
	sentinel := domainerr.New("verification", "ErrAlreadyPending", http.StatusBadRequest, "a request is already pending")
	wrapped := fmt.Errorf("submit: %w", sentinel.WithCause(errors.New("disk on fire")))

	p, ok := ToProblem(context.Background(), wrapped).(*Problem)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, p.GetStatus())
	require.Equal(t, "ErrAlreadyPending", p.Code)
	require.Equal(t, "urn:problem:verification/err-already-pending", p.Type)
	require.Equal(t, "a request is already pending", p.Detail)
	require.Equal(t, "application/problem+json", p.ContentType("application/json"))
}

func TestToProblemHidesUnknownErrors(t *testing.T) {
	p := ToProblem(context.Background(), errors.New("pq: relation users does not exist")).(*Problem)
	require.Equal(t, http.StatusInternalServerError, p.Status)
	require.Equal(t, "ErrInternal", p.Code)
	require.NotContains(t, p.Detail, "relation")

	p = ToProblem(context.Background(), fmt.Errorf("load: %w", context.DeadlineExceeded)).(*Problem)
	require.Equal(t, http.StatusServiceUnavailable, p.Status)
	require.Equal(t, "ErrTimeout", p.Code)

	require.NoError(t, ToProblem(context.Background(), nil))
}

func TestToProblemPassesStatusErrorsThrough(t *testing.T) {
	in := ForbiddenProblem(context.Background(), "")
	require.Same(t, in, ToProblem(context.Background(), in))
	require.Equal(t, "Forbidden", in.Detail)
	require.Equal(t, "urn:problem:err-forbidden", in.Type)
}

func TestNewHumaErrorBecomesValidationProblem(t *testing.T) {
	err := NewHumaError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.decision", Message: "expected value to be one of \"approve, reject\""},
		&huma.ErrorDetail{Location: "query.status", Message: "unexpected value"},
		errors.New("unexpected end of JSON input"),
	)

	p := err.(*Problem)
	require.Equal(t, http.StatusBadRequest, p.GetStatus())
	require.Equal(t, "ErrValidation", p.Code)
	fields := p.Context.(map[string]any)["fields"].(map[string][]string)
	require.Len(t, fields["decision"], 1)
	require.Len(t, fields["query.status"], 1)
	require.Equal(t, []string{"unexpected end of JSON input"}, fields["body"])
}

func TestNewHumaErrorKeepsOtherStatuses(t *testing.T) {
	p := NewHumaError(http.StatusRequestEntityTooLarge, "request body is too large").(*Problem)
	require.Equal(t, http.StatusRequestEntityTooLarge, p.Status)
	require.Equal(t, "ErrRequestEntityTooLarge", p.Code)
	require.Equal(t, "request body is too large", p.Detail)
}
