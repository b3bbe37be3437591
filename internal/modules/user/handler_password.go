package user

import (
	"context"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/validation"
)

type PasswordForgotInput struct {
	Body struct {
		Email string `json:"email" validate:"required,email" doc:"Institutional email the account was created with"`
	}
}

// PasswordForgotOutput is identical for known and unknown addresses.
type PasswordForgotOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

type PasswordResetInput struct {
	Body struct {
		Token           string `json:"token" validate:"required" doc:"Token from the reset email"`
		Password        string `json:"password" validate:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}
}

type PasswordResetOutput struct{}

func (h *Handler) ForgotPasswordHandler(ctx context.Context, input *PasswordForgotInput) (*PasswordForgotOutput, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	// Failures are logged only; the reply must not reveal whether the email exists.
	if err := h.service.InitiatePasswordReset(ctx, input.Body.Email); err != nil {
		h.logger.Error("password reset initiation failed", "error", err)
	}

	out := &PasswordForgotOutput{}
	out.Body.Message = "If that address belongs to an account, a reset link is on its way."
	return out, nil
}

func (h *Handler) ResetPasswordHandler(ctx context.Context, input *PasswordResetInput) (*PasswordResetOutput, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	if err := h.service.FinalizePasswordReset(ctx, input.Body.Token, input.Body.Password); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &PasswordResetOutput{}, nil
}
