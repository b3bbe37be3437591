package verification

import (
	"context"
	"io"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/upload"
	"github.com/danielgtaylor/huma/v2"
)

// SubmitForm is the multipart body of a submission.
type SubmitForm struct {
	Screenshot huma.FormFile `form:"screenshot" required:"true"`
}

// SubmitRequest uploads a screenshot.
type SubmitRequest struct {
	RawBody huma.MultipartFormFiles[SubmitForm]
}

// SubmitResponse returns the created request.
type SubmitResponse struct {
	Body Request
}

// OverviewResponse is the current user's verification state.
type OverviewResponse struct {
	Body Overview
}

// ScreenshotRequest names the request whose screenshot is wanted.
type ScreenshotRequest struct {
	RequestID string `path:"requestId"`
}

// ScreenshotResponse is the raw image.
type ScreenshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// SubmitHandler stores the screenshot and opens a pending request.
func (h *Handler) SubmitHandler(ctx context.Context, input *SubmitRequest) (*SubmitResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	form := input.RawBody.Data()
	if !form.Screenshot.IsSet {
		return nil, httpx.ToProblem(ctx, upload.ErrEmpty)
	}
	req, err := h.service.Submit(ctx, p.ID, form.Screenshot)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &SubmitResponse{Body: *req}, nil
}

// OverviewHandler returns the current user's status and request history.
func (h *Handler) OverviewHandler(ctx context.Context, input *struct{}) (*OverviewResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	overview, err := h.service.Overview(ctx, p.ID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &OverviewResponse{Body: *overview}, nil
}

// ScreenshotHandler streams a stored screenshot to its owner or a reviewer.
func (h *Handler) ScreenshotHandler(ctx context.Context, input *ScreenshotRequest) (*ScreenshotResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	rc, contentType, err := h.service.OpenScreenshot(ctx, p, input.RequestID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, h.maxBytes+1))
	if err != nil {
		h.logger.Error("failed to read screenshot", "request_id", input.RequestID, "error", err)
		return nil, httpx.InternalProblem(ctx, "")
	}
	return &ScreenshotResponse{
		ContentType:  contentType,
		CacheControl: "private, no-store",
		Body:         data,
	}, nil
}
