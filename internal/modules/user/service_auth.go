package user

import (
	"context"
	"errors"
	"net/url"

	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
	"github.com/google/uuid"
)

// SignupInput is the data collected by the signup form.
type SignupInput struct {
	Email          string
	Password       string
	Name           string
	StudentID      string
	Major          string
	GraduationYear int
	Classes        []SelectedClass
}

// Signup validates the address and issues an email verification token that
// carries the pending account. The user record is only created by ConfirmEmail.
func (s *service) Signup(ctx context.Context, input SignupInput) error {
	email := normalizeEmail(input.Email)
	if !emailAllowed(email, s.config.Auth.AllowedDomains) {
		return ErrEmailDomain
	}
	for _, c := range input.Classes {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	// Check if a user with the given email already exists
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, ErrNotFound) {
		return s.internal("signup: find user failed", err, "email", email)
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return s.internal("failed to hash password", err)
	}

	pending := PendingSignup{
		Email:          email,
		PasswordHash:   hashedPassword,
		Name:           input.Name,
		StudentID:      input.StudentID,
		Major:          input.Major,
		GraduationYear: input.GraduationYear,
		Classes:        dedupeClasses(input.Classes),
	}
	raw, err := s.signups.Issue(ctx, email, "", pending, token.IssueOptions{RejectPending: true})
	if err != nil {
		if errors.Is(err, token.ErrDuplicatePending) {
			return err
		}
		return s.internal("signup: issue token failed", err, "email", email)
	}

	s.notifier.Notify(ctx, notification.NewMessage(templates.EmailVerification, email, templates.EmailVerificationData{
		Name:      input.Name,
		Link:      s.link("/verify-email", raw),
		Token:     raw,
		ExpiresIn: s.config.Auth.TokenTTL.String(),
	}))

	s.logger.Info("signup pending email verification", "email", email)
	return nil
}

// ConfirmEmail redeems a signup token and creates the user in the same store
// transaction, so a token is burned only if the account was created.
func (s *service) ConfirmEmail(ctx context.Context, raw string) (*User, string, error) {
	var created User
	err := s.repo.Transact(ctx, func(tx store.Tx, users *Collection) error {
		now := s.now()
		rec, err := s.signups.RedeemIn(tx, raw, now)
		if err != nil {
			return err
		}
		p := rec.Payload

		created = User{
			ID:                         uuid.Must(uuid.NewV7()).String(),
			Email:                      p.Email,
			PasswordHash:               p.PasswordHash,
			Role:                       s.roleFor(p.Email),
			Name:                       p.Name,
			StudentID:                  p.StudentID,
			Major:                      p.Major,
			GraduationYear:             p.GraduationYear,
			Classes:                    p.Classes,
			ScheduleVerificationStatus: StatusNone,
			CreatedAt:                  now,
			UpdatedAt:                  now,
		}
		if created.Classes == nil {
			created.Classes = []SelectedClass{}
		}
		return users.Add(created)
	}, s.signups.Document())
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) || errors.Is(err, ErrEmailExists) {
			return nil, "", err
		}
		return nil, "", s.internal("confirm email failed", err)
	}

	jwtToken, err := GenerateJWT(s.config.Auth.JWTSecret, s.config.Auth.JWTTTL, &created)
	if err != nil {
		return nil, "", s.internal("failed to generate JWT", err, "user_id", created.ID)
	}

	s.logger.Info("user registered successfully", "user_id", created.ID, "role", created.Role)
	return &created, jwtToken, nil
}

// Login handles the business logic for authenticating a user.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			checkPasswordHash(password, dummyHash())
			return "", ErrInvalidCredentials
		}
		return "", s.internal("failed to find user by email", err)
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	jwtToken, err := GenerateJWT(s.config.Auth.JWTSecret, s.config.Auth.JWTTTL, user)
	if err != nil {
		return "", s.internal("failed to generate JWT", err, "user_id", user.ID)
	}

	s.logger.Info("user logged in successfully", "user_id", user.ID)
	return jwtToken, nil
}

func (s *service) link(path, raw string) string {
	return s.config.Server.BaseURL + path + "?token=" + url.QueryEscape(raw)
}
