package user

import (
	"net/http"

	"github.com/Jabakyo/next-class/internal/domainerr"
)

// --- Pre-defined Domain Errors ---
// These variables represent specific, known error conditions in the user domain.

var (
	// Resource & identity
	ErrNotFound  = domainerr.New("user", "ErrNotFound", http.StatusNotFound, "user not found")
	ErrForbidden = domainerr.New("user", "ErrForbidden", http.StatusForbidden, "you are not allowed to perform this action")

	// Auth & credentials
	ErrInvalidCredentials = domainerr.New("user", "ErrInvalidCredentials", http.StatusUnauthorized, "invalid email or password")
	ErrInvalidResetToken  = domainerr.New("user", "ErrInvalidResetToken", http.StatusBadRequest, "the provided token is invalid or has expired")

	// Registration
	ErrEmailExists = domainerr.New("user", "ErrEmailExists", http.StatusConflict, "a user with this email already exists")
	ErrEmailDomain = domainerr.New("user", "ErrEmailDomain", http.StatusBadRequest, "sign up with your institutional email address")

	// Schedule
	ErrInvalidClass         = domainerr.New("user", "ErrInvalidClass", http.StatusBadRequest, "subject, course number and section are required and must not contain '-'")
	ErrDuplicateCourse      = domainerr.New("user", "ErrDuplicateCourse", http.StatusConflict, "this class is already on your schedule")
	ErrCourseNotFound       = domainerr.New("user", "ErrCourseNotFound", http.StatusNotFound, "class not found on your schedule")
	ErrVerificationRequired = domainerr.New("user", "ErrVerificationRequired", http.StatusBadRequest, "your schedule must be verified before it can be shared")

	// Generic internal
	ErrInternal = domainerr.New("user", "ErrInternal", http.StatusInternalServerError, "internal server error")
)
