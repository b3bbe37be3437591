package verification

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/upload"
)

// Decide approves or rejects a pending request. The request and the user's
// status change in the same transaction; the email goes out afterwards.
func (s *service) Decide(ctx context.Context, actor contextx.Principal, requestID string, decision Decision, reason string) (*Request, error) {
	if !user.Role(actor.Role).CanReview() {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	switch decision {
	case Approve:
		reason = ""
	case Reject:
		if reason == "" {
			return nil, ErrReasonRequired
		}
	default:
		return nil, ErrInvalidDecision
	}

	existing, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, s.internal("decide: find request failed", err, "request_id", requestID)
	}
	if existing.Status != RequestPending {
		return nil, ErrAlreadyReviewed
	}

	unlock, err := s.lockUser(ctx, existing.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	var decided Request
	u, err := s.users.Update(ctx, existing.UserID, func(tx store.Tx, u *user.User) error {
		log, err := LoadLog(tx)
		if err != nil {
			return err
		}
		req, ok := log.ByID(requestID)
		if !ok {
			return ErrRequestNotFound
		}
		if req.Status != RequestPending {
			return ErrAlreadyReviewed
		}

		req.ReviewedAt = &now
		req.ReviewedBy = actor.ID
		if decision == Approve {
			req.Status = RequestApproved
			u.ScheduleVerificationStatus = user.StatusVerified
			u.VerificationApprovedAt = &now
			u.VerificationRejectedAt = nil
			u.RejectionReason = ""
		} else {
			req.Status = RequestRejected
			req.RejectionReason = reason
			u.ScheduleVerificationStatus = user.StatusRejected
			u.VerificationRejectedAt = &now
			u.RejectionReason = reason
		}
		u.UpdatedAt = now

		if err := log.Replace(req); err != nil {
			return err
		}
		decided = req
		return log.Save(tx)
	}, store.VerificationRequests)
	if err != nil {
		return nil, s.internal("failed to record verification decision", err, "request_id", requestID)
	}

	s.logger.Info("verification decided",
		"request_id", requestID, "user_id", u.ID, "status", decided.Status, "reviewed_by", actor.ID)

	if decision == Approve {
		s.notifier.Notify(ctx, notification.NewMessage(templates.VerificationApproved, u.Email, templates.VerificationApprovedData{
			Name:       u.Name,
			ReviewedAt: formatTime(now),
		}))
	} else {
		s.notifier.Notify(ctx, notification.NewMessage(templates.VerificationRejected, u.Email, templates.VerificationRejectedData{
			Name:       u.Name,
			Reason:     reason,
			ReviewedAt: formatTime(now),
		}))
	}
	return &decided, nil
}

// Get returns one request.
func (s *service) Get(ctx context.Context, requestID string) (*Request, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, s.internal("failed to get verification request", err, "request_id", requestID)
	}
	return req, nil
}

// List returns requests newest first, optionally filtered by status.
func (s *service) List(ctx context.Context, status RequestStatus) ([]Request, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, s.internal("failed to list verification requests", err)
	}

	out := make([]Request, 0, len(all))
	for _, r := range all {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	newestFirst(out)
	return out, nil
}

// ListForUser returns the user's own requests newest first.
func (s *service) ListForUser(ctx context.Context, userID string) ([]Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, s.internal("failed to list verification requests", err, "user_id", userID)
	}

	out := make([]Request, 0)
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	newestFirst(out)
	return out, nil
}

// Overview combines the user's current status with their requests.
func (s *service) Overview(ctx context.Context, userID string) (*Overview, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.internal("overview: find user failed", err, "user_id", userID)
	}
	requests, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Status:          u.ScheduleVerificationStatus,
		SubmittedAt:     u.VerificationSubmittedAt,
		ApprovedAt:      u.VerificationApprovedAt,
		RejectedAt:      u.VerificationRejectedAt,
		RejectionReason: u.RejectionReason,
		Requests:        requests,
	}, nil
}

// OpenScreenshot streams a request's screenshot to its owner or a reviewer.
// The caller closes the reader.
func (s *service) OpenScreenshot(ctx context.Context, actor contextx.Principal, requestID string) (io.ReadCloser, string, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, "", s.internal("screenshot: find request failed", err, "request_id", requestID)
	}
	if req.UserID != actor.ID && !user.Role(actor.Role).CanReview() {
		return nil, "", ErrForbidden
	}

	rc, err := s.uploads.Open(ctx, req.ScreenshotURL)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			return nil, "", ErrScreenshotMissing
		}
		return nil, "", s.internal("failed to open screenshot", err, "request_id", requestID)
	}
	return rc, upload.ContentType(req.ScreenshotURL), nil
}
