package user

import (
	"strings"
	"time"
)

// Status is a user's schedule verification state.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Role controls access to the admin surface.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
)

// CanReview reports whether the role may decide verification requests.
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleOwner
}

// User represents one student account.
// This is the core entity for the user module, used across the repository, service, and handler layers.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         Role   `json:"role"`

	Name           string `json:"name"`
	StudentID      string `json:"studentId"`
	Major          string `json:"major,omitempty"`
	GraduationYear int    `json:"graduationYear,omitempty"`
	Bio            string `json:"bio,omitempty"`

	Classes          []SelectedClass `json:"classes"`
	PreviousClasses  []SelectedClass `json:"previousClasses,omitempty"`
	ClassesChangedAt *time.Time      `json:"classesChangedAt,omitempty"`

	ScheduleVerificationStatus Status     `json:"scheduleVerificationStatus"`
	VerificationScreenshot     *string    `json:"verificationScreenshot"`
	VerificationSubmittedAt    *time.Time `json:"verificationSubmittedAt,omitempty"`
	VerificationApprovedAt     *time.Time `json:"verificationApprovedAt,omitempty"`
	VerificationRejectedAt     *time.Time `json:"verificationRejectedAt,omitempty"`
	RejectionReason            string     `json:"rejectionReason,omitempty"`

	HasSharedSchedule bool `json:"hasSharedSchedule"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MeetingTime is one weekly meeting of a class, e.g. Days "MWF", 09:00-09:50.
type MeetingTime struct {
	Days  string `json:"days"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// SelectedClass is a class section on a user's schedule.
type SelectedClass struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	CourseNumber string        `json:"courseNumber"`
	Section      string        `json:"section"`
	Term         string        `json:"term,omitempty"`
	Instructor   string        `json:"instructor,omitempty"`
	MeetingTimes []MeetingTime `json:"meetingTimes,omitempty"`
	Room         string        `json:"room,omitempty"`
}

// classIDSeparator joins the identifying fields of a class. The fields may not
// contain it, so distinct sections never share an id.
const classIDSeparator = "-"

// ClassID derives the identity of a class section.
func ClassID(subject, courseNumber, section string) string {
	return strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(subject)),
		strings.TrimSpace(courseNumber),
		strings.TrimSpace(section),
	}, classIDSeparator)
}

// Validate reports ErrInvalidClass when an identifying field is empty or
// contains the id separator.
func (c SelectedClass) Validate() error {
	for _, part := range []string{c.Subject, c.CourseNumber, c.Section} {
		part = strings.TrimSpace(part)
		if part == "" || strings.Contains(part, classIDSeparator) {
			return ErrInvalidClass
		}
	}
	return nil
}

// Normalized trims the identifying fields and sets ID.
func (c SelectedClass) Normalized() SelectedClass {
	c.Subject = strings.ToUpper(strings.TrimSpace(c.Subject))
	c.CourseNumber = strings.TrimSpace(c.CourseNumber)
	c.Section = strings.TrimSpace(c.Section)
	c.ID = ClassID(c.Subject, c.CourseNumber, c.Section)
	return c
}

// PendingSignup travels inside an email verification token until redemption.
type PendingSignup struct {
	Email          string          `json:"email"`
	PasswordHash   string          `json:"passwordHash"`
	Name           string          `json:"name"`
	StudentID      string          `json:"studentId"`
	Major          string          `json:"major,omitempty"`
	GraduationYear int             `json:"graduationYear,omitempty"`
	Classes        []SelectedClass `json:"classes"`
}

// ResetRequest is the payload of a password reset token.
type ResetRequest struct {
	RequestedAt time.Time `json:"requestedAt"`
}
