package user

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Jabakyo/next-class/internal/domainerr"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the JWT claims issued at login. Subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// hashPassword uses bcrypt to generate a hash from a plaintext password.
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// dummyHash is compared against when no account matches, so a login for an
// unknown email costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("no account has this password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
})

// checkPasswordHash compares a plaintext password with a bcrypt hash.
func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateJWT creates a signed token for u that expires after ttl.
func GenerateJWT(secret string, ttl time.Duration, u *User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailAllowed accepts addresses whose domain is, or is a subdomain of, one of
// the allowed domains. An empty allow-list accepts everything.
func emailAllowed(email string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	host := email[at+1:]
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (s *service) roleFor(email string) Role {
	switch {
	case slices.Contains(s.config.Auth.OwnerEmails, email):
		return RoleOwner
	case slices.Contains(s.config.Auth.AdminEmails, email):
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// dedupeClasses normalizes classes and drops repeated sections.
func dedupeClasses(classes []SelectedClass) []SelectedClass {
	out := make([]SelectedClass, 0, len(classes))
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		c = c.Normalized()
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// failureDelay waits out the configured delay so failed token checks take the
// same time whatever the cause.
func (s *service) failureDelay(ctx context.Context) {
	sleep(ctx, s.config.Auth.TokenFailureDelay)
}

// padResponse waits until the failure delay has passed since start, so an
// endpoint answers in the same time whichever branch it took.
func (s *service) padResponse(ctx context.Context, start time.Time) {
	sleep(ctx, s.config.Auth.TokenFailureDelay-time.Since(start))
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// internal passes domain errors through and wraps everything else. Corrupt
// store documents are logged with their location.
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
