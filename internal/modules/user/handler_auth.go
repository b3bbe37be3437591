package user

import (
	"context"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/validation"
)

// --- DTOs (Data Transfer Objects) ---

// SignupRequest defines the structure for the signup request body.
type SignupRequest struct {
	Body struct {
		Email           string      `json:"email" validate:"required,email"`
		Password        string      `json:"password" validate:"required,min=8"`
		ConfirmPassword string      `json:"confirmPassword" validate:"required,eqfield=Password"`
		Name            string      `json:"name" validate:"required,min=2"`
		StudentID       string      `json:"studentId" validate:"required"`
		Major           string      `json:"major,omitempty"`
		GraduationYear  int         `json:"graduationYear,omitempty" validate:"omitempty,min=1900,max=2200"`
		Classes         []ClassBody `json:"classes,omitempty" validate:"dive"`
	}
}

// SignupResponse confirms that a verification email is on its way.
type SignupResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// VerifyEmailRequest carries the token from the verification email.
type VerifyEmailRequest struct {
	Body struct {
		Token string `json:"token" validate:"required"`
	}
}

// AuthResponse returns a session token with the user's profile.
type AuthResponse struct {
	Body struct {
		Token string      `json:"token"`
		User  ProfileBody `json:"user"`
	}
}

// LoginRequest defines the structure for the user login request body.
type LoginRequest struct {
	Body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
}

// LoginResponse defines the structure for a successful login response.
type LoginResponse struct {
	Body struct {
		Token string `json:"token"`
	}
}

// --- Handlers ---

// SignupHandler starts the signup flow.
func (h *Handler) SignupHandler(ctx context.Context, input *SignupRequest) (*SignupResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	classes := make([]SelectedClass, 0, len(input.Body.Classes))
	for _, c := range input.Body.Classes {
		classes = append(classes, c.toSelectedClass())
	}

	err := h.service.Signup(ctx, SignupInput{
		Email:          input.Body.Email,
		Password:       input.Body.Password,
		Name:           input.Body.Name,
		StudentID:      input.Body.StudentID,
		Major:          input.Body.Major,
		GraduationYear: input.Body.GraduationYear,
		Classes:        classes,
	})
	if err != nil {
		h.logger.Warn("signup failed", "email", input.Body.Email, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &SignupResponse{}
	resp.Body.Message = "Check your email to confirm your account."
	return resp, nil
}

// VerifyEmailHandler redeems the signup token and signs the new user in.
func (h *Handler) VerifyEmailHandler(ctx context.Context, input *VerifyEmailRequest) (*AuthResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	user, jwtToken, err := h.service.ConfirmEmail(ctx, input.Body.Token)
	if err != nil {
		h.logger.Warn("email verification failed", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &AuthResponse{}
	resp.Body.Token = jwtToken
	resp.Body.User = toProfile(user)
	return resp, nil
}

// LoginHandler handles the user login endpoint.
func (h *Handler) LoginHandler(ctx context.Context, input *LoginRequest) (*LoginResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	jwtToken, err := h.service.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		h.logger.Warn("login attempt failed", "email", input.Body.Email, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &LoginResponse{}
	resp.Body.Token = jwtToken
	return resp, nil
}
