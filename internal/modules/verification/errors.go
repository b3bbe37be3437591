package verification

import (
	"net/http"

	"github.com/Jabakyo/next-class/internal/domainerr"
)

var (
	ErrRequestNotFound = domainerr.New("verification", "ErrRequestNotFound", http.StatusNotFound, "verification request not found")
	ErrForbidden       = domainerr.New("verification", "ErrForbidden", http.StatusForbidden, "you are not allowed to perform this action")

	// Submission
	ErrAlreadyVerified = domainerr.New("verification", "ErrAlreadyVerified", http.StatusBadRequest, "your schedule is already verified")
	ErrAlreadyPending  = domainerr.New("verification", "ErrAlreadyPending", http.StatusBadRequest, "you already have a verification request under review")

	// Review
	ErrAlreadyReviewed   = domainerr.New("verification", "ErrAlreadyReviewed", http.StatusConflict, "this request has already been reviewed")
	ErrInvalidDecision   = domainerr.New("verification", "ErrInvalidDecision", http.StatusBadRequest, "decision must be approve or reject")
	ErrReasonRequired    = domainerr.New("verification", "ErrReasonRequired", http.StatusBadRequest, "a rejection needs a reason")
	ErrInvalidStatus     = domainerr.New("verification", "ErrInvalidStatus", http.StatusBadRequest, "status must be pending, approved or rejected")
	ErrScreenshotMissing = domainerr.New("verification", "ErrScreenshotMissing", http.StatusNotFound, "no screenshot stored for this request")

	ErrInternal = domainerr.New("verification", "ErrInternal", http.StatusInternalServerError, "internal server error")
)
