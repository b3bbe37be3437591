package user

import (
	"context"
	"errors"

	"github.com/Jabakyo/next-class/internal/store"
)

// UpdateProfileInput defines the updatable fields for a user's profile.
// Using pointers allows us to distinguish between a field not being provided (nil)
// and a field being set to its zero value (e.g., an empty string).
type UpdateProfileInput struct {
	Name           *string
	StudentID      *string
	Major          *string
	GraduationYear *int
	Bio            *string
}

// Apply copies the provided fields onto u.
func (in UpdateProfileInput) Apply(u *User) {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.StudentID != nil {
		u.StudentID = *in.StudentID
	}
	if in.Major != nil {
		u.Major = *in.Major
	}
	if in.GraduationYear != nil {
		u.GraduationYear = *in.GraduationYear
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
}

// GetProfile retrieves a single user's profile by their ID.
func (s *service) GetProfile(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, s.internal("failed to get user profile from repository", err, "user_id", userID)
	}
	return user, nil
}

// UpdateProfile merges the provided fields. Profile fields are independent of
// the schedule, so verification status is left alone.
func (s *service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*User, error) {
	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.repo.Update(ctx, userID, func(_ store.Tx, u *User) error {
		input.Apply(u)
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.internal("failed to update user profile", err, "user_id", userID)
	}

	s.logger.Info("user profile updated successfully", "user_id", user.ID)
	return user, nil
}

// SetSharedSchedule toggles schedule sharing. Only a verified schedule may be
// shared; turning sharing off is always allowed.
func (s *service) SetSharedSchedule(ctx context.Context, userID string, shared bool) error {
	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.repo.Update(ctx, userID, func(_ store.Tx, u *User) error {
		if shared && u.ScheduleVerificationStatus != StatusVerified {
			return ErrVerificationRequired
		}
		u.HasSharedSchedule = shared
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return s.internal("failed to update schedule sharing", err, "user_id", userID)
	}

	s.logger.Info("schedule sharing updated", "user_id", userID, "shared", shared)
	return nil
}
