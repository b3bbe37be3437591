package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
)

// Service defines the interface for the user module's business logic.
// It orchestrates the flow of data between the handlers and the repository,
// and contains the core business rules.
type Service interface {
	// Account lifecycle
	Signup(ctx context.Context, input SignupInput) error
	ConfirmEmail(ctx context.Context, token string) (*User, string, error) // the new user and a signed JWT
	Login(ctx context.Context, email, password string) (string, error)

	// Password reset
	InitiatePasswordReset(ctx context.Context, email string) error
	FinalizePasswordReset(ctx context.Context, token, newPassword string) error

	// Profile
	GetProfile(ctx context.Context, userID string) (*User, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*User, error)

	// Schedule
	AddClass(ctx context.Context, userID string, class SelectedClass) (*SelectedClass, error)
	RemoveClass(ctx context.Context, userID, classID string) error
	SetSharedSchedule(ctx context.Context, userID string, shared bool) error
}

// ScheduleListener is told when a user with a pending verification request
// edits their classes.
type ScheduleListener interface {
	// Documents lists the store documents MarkStale needs in its transaction.
	Documents() []string
	// MarkStale runs inside the class-edit transaction and returns the id of
	// the flagged request, or "" when the user has none pending.
	MarkStale(tx store.Tx, u *User, at time.Time) (string, error)
	// StaleMarked runs after the edit committed.
	StaleMarked(ctx context.Context, u User, requestID string, at time.Time)
}

// service implements the Service interface.
type service struct {
	repo     Repository
	locker   lock.Locker
	notifier notification.Notifier
	schedule ScheduleListener
	signups  *token.Ledger[PendingSignup]
	resets   *token.Ledger[ResetRequest]
	logger   *slog.Logger
	config   *config.Config
	now      func() time.Time
}

// Config holds the dependencies for the user service.
type Config struct {
	Repo     Repository
	Store    store.Store
	Locker   lock.Locker
	Notifier notification.Notifier
	Schedule ScheduleListener // optional
	Logger   *slog.Logger
	Config   *config.Config
}

// NewService creates a new user service with the given dependencies.
func NewService(cfg *Config) Service {
	return &service{
		repo:     cfg.Repo,
		locker:   cfg.Locker,
		notifier: cfg.Notifier,
		schedule: cfg.Schedule,
		signups:  token.New[PendingSignup](cfg.Store, store.EmailVerificationTokens, cfg.Config.Auth.TokenTTL),
		resets:   token.New[ResetRequest](cfg.Store, store.ResetTokens, cfg.Config.Auth.TokenTTL),
		logger:   cfg.Logger,
		config:   cfg.Config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// lockUser serializes every mutation of one user's record.
func (s *service) lockUser(ctx context.Context, userID string) (lock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, lock.UserKey(userID))
	if err != nil {
		s.logger.Warn("failed to acquire user lock", "user_id", userID, "error", err)
		return nil, err
	}
	return unlock, nil
}
