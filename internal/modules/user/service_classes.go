package user

import (
	"context"
	"slices"
	"time"

	"github.com/Jabakyo/next-class/internal/store"
)

// AddClass appends a class section to the user's schedule.
func (s *service) AddClass(ctx context.Context, userID string, class SelectedClass) (*SelectedClass, error) {
	if err := class.Validate(); err != nil {
		return nil, err
	}
	class = class.Normalized()

	_, err := s.editClasses(ctx, userID, func(u *User) error {
		if slices.ContainsFunc(u.Classes, func(c SelectedClass) bool { return c.ID == class.ID }) {
			return ErrDuplicateCourse
		}
		u.Classes = append(u.Classes, class)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("class added", "user_id", userID, "class_id", class.ID)
	return &class, nil
}

// RemoveClass drops a class section from the user's schedule.
func (s *service) RemoveClass(ctx context.Context, userID, classID string) error {
	_, err := s.editClasses(ctx, userID, func(u *User) error {
		i := slices.IndexFunc(u.Classes, func(c SelectedClass) bool { return c.ID == classID })
		if i < 0 {
			return ErrCourseNotFound
		}
		u.Classes = slices.Delete(u.Classes, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("class removed", "user_id", userID, "class_id", classID)
	return nil
}

// editClasses applies edit and the verification consequences of a schedule
// change in one transaction under the user's lock.
func (s *service) editClasses(ctx context.Context, userID string, edit func(u *User) error) (*User, error) {
	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		docs      []string
		requestID string
		now       = s.now()
	)
	if s.schedule != nil {
		docs = s.schedule.Documents()
	}

	user, err := s.repo.Update(ctx, userID, func(tx store.Tx, u *User) error {
		before := slices.Clone(u.Classes)
		if err := edit(u); err != nil {
			return err
		}
		var err error
		requestID, err = s.scheduleChanged(tx, u, before, now)
		return err
	}, docs...)
	if err != nil {
		return nil, s.internal("failed to update classes", err, "user_id", userID)
	}

	if requestID != "" {
		s.schedule.StaleMarked(ctx, *user, requestID, now)
	}
	return user, nil
}

// scheduleChanged moves the verification state after a class-list edit.
// A verified schedule is invalidated: the previous class list is kept for the
// audit trail and the screenshot reference is cleared. A rejected one returns
// to none. A pending request stays pending but is flagged as stale.
func (s *service) scheduleChanged(tx store.Tx, u *User, before []SelectedClass, now time.Time) (string, error) {
	u.UpdatedAt = now

	switch u.ScheduleVerificationStatus {
	case StatusVerified:
		u.PreviousClasses = before
		u.ClassesChangedAt = &now
		u.ScheduleVerificationStatus = StatusNone
		u.VerificationScreenshot = nil
		u.VerificationSubmittedAt = nil
		s.logger.Info("schedule verification invalidated by class edit", "user_id", u.ID)
	case StatusRejected:
		u.ScheduleVerificationStatus = StatusNone
	case StatusPending:
		if s.schedule == nil {
			return "", nil
		}
		return s.schedule.MarkStale(tx, u, now)
	}
	return "", nil
}
