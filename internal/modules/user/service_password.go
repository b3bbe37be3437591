package user

import (
	"context"
	"errors"
	"time"

	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
)

// InitiatePasswordReset issues a reset token and emails it. Unknown addresses
// succeed silently, and every call is padded to the failure delay, so the
// endpoint cannot be used to enumerate accounts.
func (s *service) InitiatePasswordReset(ctx context.Context, email string) error {
	defer s.padResponse(ctx, time.Now())
	email = normalizeEmail(email)
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("password reset requested for non-existent email", "email", email)
			return nil
		}
		return s.internal("failed to find user by email for password reset", err)
	}

	// One active reset token per user: issuing drops the older ones.
	raw, err := s.resets.Issue(ctx, user.Email, user.ID, ResetRequest{RequestedAt: s.now()}, token.IssueOptions{ReplaceExisting: true})
	if err != nil {
		return s.internal("failed to issue password reset token", err, "user_id", user.ID)
	}

	s.notifier.Notify(ctx, notification.NewMessage(templates.PasswordReset, user.Email, templates.PasswordResetData{
		Name:      user.Name,
		Link:      s.link("/reset-password", raw),
		Token:     raw,
		ExpiresIn: s.config.Auth.TokenTTL.String(),
	}))
	return nil
}

// FinalizePasswordReset redeems the token and stores the new password in one
// transaction. Every failure waits the same delay and returns ErrInvalidResetToken.
func (s *service) FinalizePasswordReset(ctx context.Context, raw, newPassword string) error {
	newPasswordHash, err := hashPassword(newPassword)
	if err != nil {
		return s.internal("failed to hash new password during reset", err)
	}

	var userID string
	err = s.repo.Transact(ctx, func(tx store.Tx, users *Collection) error {
		now := s.now()
		rec, err := s.resets.RedeemIn(tx, raw, now)
		if err != nil {
			return err
		}
		u, ok := users.ByID(rec.UserID)
		if !ok {
			return ErrNotFound
		}
		u.PasswordHash = newPasswordHash
		u.UpdatedAt = now
		userID = u.ID
		return users.Replace(u)
	}, s.resets.Document())
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) || errors.Is(err, ErrNotFound) {
			s.failureDelay(ctx)
			return ErrInvalidResetToken
		}
		return s.internal("failed to reset password", err)
	}

	s.logger.Info("user password has been reset successfully", "user_id", userID)
	return nil
}
