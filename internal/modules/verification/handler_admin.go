package verification

import (
	"context"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/validation"
)

// ListRequest filters the request log.
type ListRequest struct {
	Status string `query:"status" doc:"Only return requests with this status: pending, approved or rejected"`
}

// ListResponse is the filtered request log.
type ListResponse struct {
	Body struct {
		Requests []Request `json:"requests"`
	}
}

// GetRequest names one request.
type GetRequest struct {
	RequestID string `path:"requestId"`
}

// GetResponse returns one request.
type GetResponse struct {
	Body Request
}

// DecideRequest carries a reviewer's decision.
type DecideRequest struct {
	RequestID string `path:"requestId"`
	Body      struct {
		Decision Decision `json:"decision" validate:"required,oneof=approve reject"`
		Reason   string   `json:"reason,omitempty" validate:"max=500"`
	}
}

// DecideResponse returns the reviewed request.
type DecideResponse struct {
	Body Request
}

// DeleteUserRequest names the account to delete.
type DeleteUserRequest struct {
	UserID string `path:"userId"`
}

// DeleteUserResponse is an empty successful response.
type DeleteUserResponse struct{}

// ListHandler lists requests for the review dashboard.
func (h *Handler) ListHandler(ctx context.Context, input *ListRequest) (*ListResponse, error) {
	requests, err := h.service.List(ctx, RequestStatus(input.Status))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	resp := &ListResponse{}
	resp.Body.Requests = requests
	return resp, nil
}

// GetHandler returns one request.
func (h *Handler) GetHandler(ctx context.Context, input *GetRequest) (*GetResponse, error) {
	req, err := h.service.Get(ctx, input.RequestID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &GetResponse{Body: *req}, nil
}

// DecideHandler approves or rejects a pending request on behalf of the
// authenticated reviewer.
func (h *Handler) DecideHandler(ctx context.Context, input *DecideRequest) (*DecideResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	req, err := h.service.Decide(ctx, p, input.RequestID, input.Body.Decision, input.Body.Reason)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &DecideResponse{Body: *req}, nil
}

// DeleteUserHandler removes an account. Owner only.
func (h *Handler) DeleteUserHandler(ctx context.Context, input *DeleteUserRequest) (*DeleteUserResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.DeleteAccount(ctx, p, input.UserID); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &DeleteUserResponse{}, nil
}
