package verification

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/upload"
	"github.com/google/uuid"
)

// submittable rejects submissions from users who are verified or under review.
func submittable(status user.Status) error {
	switch status {
	case user.StatusVerified:
		return ErrAlreadyVerified
	case user.StatusPending:
		return ErrAlreadyPending
	}
	return nil
}

// Submit validates and stores a screenshot, then records a pending request and
// moves the user to pending in one transaction. The user's previous screenshot
// is deleted once the new one is committed.
func (s *service) Submit(ctx context.Context, userID string, screenshot io.Reader) (*Request, error) {
	img, err := upload.ReadImage(screenshot, s.config.Upload.MaxBytes)
	if err != nil {
		return nil, s.internal("failed to read screenshot", err, "user_id", userID)
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Checked again inside the transaction; this only avoids storing a file
	// for a submission that is bound to fail.
	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.internal("submit: find user failed", err, "user_id", userID)
	}
	if err := submittable(current.ScheduleVerificationStatus); err != nil {
		return nil, err
	}

	ref, err := upload.SaveImage(ctx, s.uploads, img)
	if err != nil {
		return nil, s.internal("failed to store screenshot", err, "user_id", userID)
	}

	var (
		now    = s.now()
		req    Request
		oldRef string
	)
	u, err := s.users.Update(ctx, userID, func(tx store.Tx, u *user.User) error {
		if err := submittable(u.ScheduleVerificationStatus); err != nil {
			return err
		}
		log, err := LoadLog(tx)
		if err != nil {
			return err
		}
		if _, ok := log.PendingFor(u.ID); ok {
			return ErrAlreadyPending
		}

		req = Request{
			ID:               uuid.Must(uuid.NewV7()).String(),
			UserID:           u.ID,
			UserName:         u.Name,
			UserEmail:        u.Email,
			StudentID:        u.StudentID,
			ScreenshotURL:    ref,
			SubmittedAt:      now,
			Status:           RequestPending,
			CurrentClasses:   slices.Clone(u.Classes),
			PreviousClasses:  slices.Clone(u.PreviousClasses),
			ClassesChangedAt: u.ClassesChangedAt,
		}
		if req.CurrentClasses == nil {
			req.CurrentClasses = []user.SelectedClass{}
		}
		log.Add(req)

		if u.VerificationScreenshot != nil {
			oldRef = *u.VerificationScreenshot
		}
		u.ScheduleVerificationStatus = user.StatusPending
		u.VerificationScreenshot = &ref
		u.VerificationSubmittedAt = &now
		u.VerificationRejectedAt = nil
		u.RejectionReason = ""
		u.UpdatedAt = now
		return log.Save(tx)
	}, store.VerificationRequests)
	if err != nil {
		s.removeFile(ctx, ref)
		return nil, s.internal("failed to record verification request", err, "user_id", userID)
	}

	if oldRef != ref {
		s.removeFile(ctx, oldRef)
	}

	s.logger.Info("verification submitted", "user_id", userID, "request_id", req.ID)
	s.notifyAdmin(ctx, templates.AdminEventSubmitted, req.ID, *u, now)
	return &req, nil
}

// notifyAdmin tells the review inbox about a request. Nothing is sent when no
// admin address is configured.
func (s *service) notifyAdmin(ctx context.Context, event, requestID string, u user.User, at time.Time) {
	to := s.config.Notify.AdminEmail
	if to == "" {
		s.logger.Debug("no admin email configured, skipping admin notification", "request_id", requestID)
		return
	}
	s.notifier.Notify(ctx, notification.NewMessage(templates.AdminNotification, to, templates.AdminNotificationData{
		Event:      event,
		RequestID:  requestID,
		UserName:   u.Name,
		UserEmail:  u.Email,
		StudentID:  u.StudentID,
		OccurredAt: formatTime(at),
		ReviewLink: s.config.Server.BaseURL + "/admin/verifications/" + requestID,
	}))
}

// Documents lists what MarkStale touches.
func (s *service) Documents() []string {
	return []string{store.VerificationRequests}
}

// MarkStale flags the user's pending request when their classes change under
// review. It runs inside the class-edit transaction.
func (s *service) MarkStale(tx store.Tx, u *user.User, at time.Time) (string, error) {
	log, err := LoadLog(tx)
	if err != nil {
		return "", err
	}
	req, ok := log.PendingFor(u.ID)
	if !ok {
		return "", nil
	}
	req.ScheduleChangedAt = &at
	if err := log.Replace(req); err != nil {
		return "", err
	}
	return req.ID, log.Save(tx)
}

// StaleMarked notifies the admin after the class edit committed.
func (s *service) StaleMarked(ctx context.Context, u user.User, requestID string, at time.Time) {
	s.logger.Info("pending verification request has a changed schedule", "user_id", u.ID, "request_id", requestID)
	s.notifyAdmin(ctx, templates.AdminEventScheduleChanged, requestID, u, at)
}
