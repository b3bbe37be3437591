package user

import (
	"context"
	"time"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/validation"
)

// --- DTOs & Mappers ---

// ProfileBody is the public view of a user. It never includes the password hash.
type ProfileBody struct {
	ID                         string          `json:"id"`
	Email                      string          `json:"email"`
	Role                       Role            `json:"role"`
	Name                       string          `json:"name"`
	StudentID                  string          `json:"studentId"`
	Major                      string          `json:"major,omitempty"`
	GraduationYear             int             `json:"graduationYear,omitempty"`
	Bio                        string          `json:"bio,omitempty"`
	Classes                    []SelectedClass `json:"classes"`
	PreviousClasses            []SelectedClass `json:"previousClasses,omitempty"`
	ClassesChangedAt           *time.Time      `json:"classesChangedAt,omitempty"`
	ScheduleVerificationStatus Status          `json:"scheduleVerificationStatus"`
	VerificationScreenshot     *string         `json:"verificationScreenshot,omitempty"`
	VerificationSubmittedAt    *time.Time      `json:"verificationSubmittedAt,omitempty"`
	VerificationApprovedAt     *time.Time      `json:"verificationApprovedAt,omitempty"`
	VerificationRejectedAt     *time.Time      `json:"verificationRejectedAt,omitempty"`
	RejectionReason            string          `json:"rejectionReason,omitempty"`
	HasSharedSchedule          bool            `json:"hasSharedSchedule"`
	CreatedAt                  time.Time       `json:"createdAt"`
}

// ProfileResponse is the DTO for the current user's profile.
type ProfileResponse struct {
	Body ProfileBody
}

// toProfile maps a domain User object to its public DTO.
func toProfile(u *User) ProfileBody {
	classes := u.Classes
	if classes == nil {
		classes = []SelectedClass{}
	}
	return ProfileBody{
		ID:                         u.ID,
		Email:                      u.Email,
		Role:                       u.Role,
		Name:                       u.Name,
		StudentID:                  u.StudentID,
		Major:                      u.Major,
		GraduationYear:             u.GraduationYear,
		Bio:                        u.Bio,
		Classes:                    classes,
		PreviousClasses:            u.PreviousClasses,
		ClassesChangedAt:           u.ClassesChangedAt,
		ScheduleVerificationStatus: u.ScheduleVerificationStatus,
		VerificationScreenshot:     u.VerificationScreenshot,
		VerificationSubmittedAt:    u.VerificationSubmittedAt,
		VerificationApprovedAt:     u.VerificationApprovedAt,
		VerificationRejectedAt:     u.VerificationRejectedAt,
		RejectionReason:            u.RejectionReason,
		HasSharedSchedule:          u.HasSharedSchedule,
		CreatedAt:                  u.CreatedAt,
	}
}

// UpdateProfileRequest carries a partial profile: omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Body struct {
		Name           *string `json:"name,omitempty" validate:"omitempty,min=2"`
		StudentID      *string `json:"studentId,omitempty" validate:"omitempty,min=1"`
		Major          *string `json:"major,omitempty"`
		GraduationYear *int    `json:"graduationYear,omitempty" validate:"omitempty,min=1900,max=2200"`
		Bio            *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	}
}

// SetSharingRequest toggles schedule sharing.
type SetSharingRequest struct {
	Body struct {
		Shared bool `json:"shared"`
	}
}

// SetSharingResponse echoes the new sharing state.
type SetSharingResponse struct {
	Body struct {
		HasSharedSchedule bool `json:"hasSharedSchedule"`
	}
}

// --- Handlers ---

// GetProfileHandler retrieves the profile of the currently authenticated user.
func (h *Handler) GetProfileHandler(ctx context.Context, input *struct{}) (*ProfileResponse, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get user profile", "user_id", userID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ProfileResponse{Body: toProfile(user)}, nil
}

// UpdateProfileHandler updates the profile of the currently authenticated user.
func (h *Handler) UpdateProfileHandler(ctx context.Context, input *UpdateProfileRequest) (*ProfileResponse, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	updatedUser, err := h.service.UpdateProfile(ctx, userID, UpdateProfileInput{
		Name:           input.Body.Name,
		StudentID:      input.Body.StudentID,
		Major:          input.Body.Major,
		GraduationYear: input.Body.GraduationYear,
		Bio:            input.Body.Bio,
	})
	if err != nil {
		h.logger.Error("failed to update user profile", "user_id", userID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ProfileResponse{Body: toProfile(updatedUser)}, nil
}

// SetSharingHandler enables or disables schedule sharing.
func (h *Handler) SetSharingHandler(ctx context.Context, input *SetSharingRequest) (*SetSharingResponse, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.SetSharedSchedule(ctx, userID, input.Body.Shared); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &SetSharingResponse{}
	resp.Body.HasSharedSchedule = input.Body.Shared
	return resp, nil
}
