package templates

// EmailVerificationData holds variables for the emailVerification scenario.
type EmailVerificationData struct {
	Name      string
	Link      string
	Token     string
	ExpiresIn string
}

// EmailVerification is the typed handle for the emailVerification template.
var EmailVerification = Expect[EmailVerificationData]("emailVerification")

// PasswordResetData holds variables for the passwordReset scenario.
type PasswordResetData struct {
	Name      string
	Link      string
	Token     string
	ExpiresIn string
}

// PasswordReset is the typed handle for the passwordReset template.
var PasswordReset = Expect[PasswordResetData]("passwordReset")

// VerificationApprovedData holds variables for the verificationApproved scenario.
type VerificationApprovedData struct {
	Name       string
	ReviewedAt string
}

// VerificationApproved is the typed handle for the verificationApproved template.
var VerificationApproved = Expect[VerificationApprovedData]("verificationApproved")

// VerificationRejectedData holds variables for the verificationRejected scenario.
type VerificationRejectedData struct {
	Name       string
	Reason     string
	ReviewedAt string
}

// VerificationRejected is the typed handle for the verificationRejected template.
var VerificationRejected = Expect[VerificationRejectedData]("verificationRejected")

// Admin notification events.
const (
	AdminEventSubmitted       = "submitted"
	AdminEventScheduleChanged = "scheduleChanged"
)

// AdminNotificationData holds variables for the adminNotification scenario.
type AdminNotificationData struct {
	Event      string
	RequestID  string
	UserName   string
	UserEmail  string
	StudentID  string
	OccurredAt string
	ReviewLink string
}

// AdminNotification is the typed handle for the adminNotification template.
var AdminNotification = Expect[AdminNotificationData]("adminNotification")
