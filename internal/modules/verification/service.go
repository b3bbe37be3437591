package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/domainerr"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
	"github.com/Jabakyo/next-class/internal/upload"
)

// Service is the verification workflow. It also listens to class edits made
// through the user module so pending requests can be flagged as stale.
type Service interface {
	// Student side
	Submit(ctx context.Context, userID string, screenshot io.Reader) (*Request, error)
	ListForUser(ctx context.Context, userID string) ([]Request, error)
	Overview(ctx context.Context, userID string) (*Overview, error)

	// Review side
	Decide(ctx context.Context, actor contextx.Principal, requestID string, decision Decision, reason string) (*Request, error)
	Get(ctx context.Context, requestID string) (*Request, error)
	List(ctx context.Context, status RequestStatus) ([]Request, error)
	OpenScreenshot(ctx context.Context, actor contextx.Principal, requestID string) (io.ReadCloser, string, error)

	// DeleteAccount removes a user together with everything that refers to them.
	DeleteAccount(ctx context.Context, actor contextx.Principal, userID string) error

	user.ScheduleListener
}

type service struct {
	users    user.Repository
	requests Repository
	locker   lock.Locker
	uploads  upload.Storage
	notifier notification.Notifier
	signups  *token.Ledger[user.PendingSignup]
	resets   *token.Ledger[user.ResetRequest]
	logger   *slog.Logger
	config   *config.Config
	now      func() time.Time
}

// Config holds the dependencies for the verification service.
type Config struct {
	Users    user.Repository
	Requests Repository
	Store    store.Store
	Locker   lock.Locker
	Uploads  upload.Storage
	Notifier notification.Notifier
	Logger   *slog.Logger
	Config   *config.Config
}

// NewService creates the verification service.
func NewService(cfg *Config) Service {
	return &service{
		users:    cfg.Users,
		requests: cfg.Requests,
		locker:   cfg.Locker,
		uploads:  cfg.Uploads,
		notifier: cfg.Notifier,
		signups:  token.New[user.PendingSignup](cfg.Store, store.EmailVerificationTokens, cfg.Config.Auth.TokenTTL),
		resets:   token.New[user.ResetRequest](cfg.Store, store.ResetTokens, cfg.Config.Auth.TokenTTL),
		logger:   cfg.Logger,
		config:   cfg.Config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) lockUser(ctx context.Context, userID string) (lock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, lock.UserKey(userID))
	if err != nil {
		s.logger.Warn("failed to acquire user lock", "user_id", userID, "error", err)
		return nil, err
	}
	return unlock, nil
}

// removeFile deletes a stored screenshot. Failures only leave an orphaned file.
func (s *service) removeFile(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.uploads.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete screenshot", "ref", ref, "error", err)
	}
}

// internal passes domain errors through and wraps everything else.
func (s *service) internal(msg string, err error, attrs ...any) error {
	var de *domainerr.DomainError
	if errors.As(err, &de) {
		return err
	}
	var corrupt *store.CorruptError
	if errors.As(err, &corrupt) {
		attrs = append(attrs, "document", corrupt.Name, "path", corrupt.Path)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error(msg, append(attrs, "error", err)...)
	return ErrInternal.WithCause(err)
}

func formatTime(t time.Time) string {
	return t.Format("Jan 2, 2006 15:04 MST")
}
