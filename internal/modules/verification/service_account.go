package verification

import (
	"context"
	"slices"

	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/store"
)

// DeleteAccount is owner only. The user, their requests and their tokens go in
// one transaction; screenshot files are removed after it commits.
func (s *service) DeleteAccount(ctx context.Context, actor contextx.Principal, userID string) error {
	if user.Role(actor.Role) != user.RoleOwner {
		return ErrForbidden
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	var files []string
	err = s.users.Transact(ctx, func(tx store.Tx, users *user.Collection) error {
		u, ok := users.Remove(userID)
		if !ok {
			return user.ErrNotFound
		}
		if u.VerificationScreenshot != nil {
			files = append(files, *u.VerificationScreenshot)
		}

		log, err := LoadLog(tx)
		if err != nil {
			return err
		}
		for _, r := range log.RemoveForUser(userID) {
			files = append(files, r.ScreenshotURL)
		}
		if err := log.Save(tx); err != nil {
			return err
		}

		if err := s.signups.DeleteForUser(tx, userID, u.Email); err != nil {
			return err
		}
		return s.resets.DeleteForUser(tx, userID, u.Email)
	}, store.VerificationRequests, store.EmailVerificationTokens, store.ResetTokens)
	if err != nil {
		return s.internal("failed to delete account", err, "user_id", userID)
	}

	slices.Sort(files)
	for _, ref := range slices.Compact(files) {
		s.removeFile(ctx, ref)
	}

	s.logger.Info("account deleted", "user_id", userID, "deleted_by", actor.ID, "files", len(files))
	return nil
}
