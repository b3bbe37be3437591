// Package verification implements the screenshot review workflow: students
// submit a schedule screenshot, admins approve or reject it, and the outcome
// is written to the request log and the user record in one transaction.
package verification

import (
	"time"

	"github.com/Jabakyo/next-class/internal/modules/user"
)

// RequestStatus is the review state of one submission.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known status. The empty status is not valid.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Decision is an admin's verdict on a pending request.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Request is one verification submission. User fields and class lists are
// copied at submission time so the log stays readable after later edits.
type Request struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	UserName      string        `json:"userName"`
	UserEmail     string        `json:"userEmail"`
	StudentID     string        `json:"studentId"`
	ScreenshotURL string        `json:"screenshotUrl"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Status        RequestStatus `json:"status"`

	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy      string     `json:"reviewedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`

	CurrentClasses   []user.SelectedClass `json:"currentClasses"`
	PreviousClasses  []user.SelectedClass `json:"previousClasses,omitempty"`
	ClassesChangedAt *time.Time           `json:"classesChangedAt,omitempty"`

	// ScheduleChangedAt is set when the user edits their classes while the
	// request is still pending.
	ScheduleChangedAt *time.Time `json:"scheduleChangedAt,omitempty"`
}

// Overview is a student's verification state together with their request history.
type Overview struct {
	Status          user.Status `json:"status"`
	SubmittedAt     *time.Time  `json:"submittedAt,omitempty"`
	ApprovedAt      *time.Time  `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time  `json:"rejectedAt,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	Requests        []Request   `json:"requests"`
}
