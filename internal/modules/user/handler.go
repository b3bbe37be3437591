package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/danielgtaylor/huma/v2"
)

// Handler holds the dependencies for the user module's HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
	auth    huma.Middleware
}

// NewHandler creates a new handler for the user module. auth guards the
// routes that act on the signed-in user.
func NewHandler(service Service, logger *slog.Logger, auth huma.Middleware) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		auth:    auth,
	}
}

// RegisterRoutes sets up the routing for the user module.
// It defines all the API endpoints and connects them to their respective handler functions.
func (h *Handler) RegisterRoutes(api huma.API) {
	// --- Authentication Routes ---
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Start signup and send a verification email",
		DefaultStatus: http.StatusAccepted,
		Tags:          []string{"auth"},
	}, h.SignupHandler)

	huma.Register(api, huma.Operation{
		OperationID: "verify-email",
		Method:      http.MethodPost,
		Path:        "/auth/verify-email",
		Summary:     "Confirm an email verification token and create the account",
		Tags:        []string{"auth"},
	}, h.VerifyEmailHandler)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in a user",
		Tags:        []string{"auth"},
	}, h.LoginHandler)

	// --- Password Management Routes ---
	huma.Register(api, huma.Operation{
		OperationID:   "forgot-password",
		Method:        http.MethodPost,
		Path:          "/auth/password/forgot",
		Summary:       "Initiate password reset",
		DefaultStatus: http.StatusAccepted,
		Tags:          []string{"auth"},
	}, h.ForgotPasswordHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "reset-password",
		Method:        http.MethodPost,
		Path:          "/auth/password/reset",
		Summary:       "Reset password with a token",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"auth"},
	}, h.ResetPasswordHandler)

	// --- Profile & schedule routes (require authentication) ---
	secured := func(op huma.Operation) huma.Operation {
		op.Middlewares = huma.Middlewares{h.auth}
		op.Security = []map[string][]string{{"bearer": {}}}
		op.Tags = []string{"users"}
		return op
	}

	huma.Register(api, secured(huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get the current user's profile",
	}), h.GetProfileHandler)

	huma.Register(api, secured(huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/users/me",
		Summary:     "Update the current user's profile",
	}), h.UpdateProfileHandler)

	huma.Register(api, secured(huma.Operation{
		OperationID:   "add-class",
		Method:        http.MethodPost,
		Path:          "/users/me/classes",
		Summary:       "Add a class to the current user's schedule",
		DefaultStatus: http.StatusCreated,
	}), h.AddClassHandler)

	huma.Register(api, secured(huma.Operation{
		OperationID:   "remove-class",
		Method:        http.MethodDelete,
		Path:          "/users/me/classes/{courseId}",
		Summary:       "Remove a class from the current user's schedule",
		DefaultStatus: http.StatusNoContent,
	}), h.RemoveClassHandler)

	huma.Register(api, secured(huma.Operation{
		OperationID: "set-schedule-sharing",
		Method:      http.MethodPut,
		Path:        "/users/me/sharing",
		Summary:     "Enable or disable schedule sharing",
	}), h.SetSharingHandler)
}

// currentUserID reads the authenticated user's ID set by the auth middleware.
func currentUserID(ctx context.Context) (string, error) {
	p, ok := contextx.PrincipalFrom(ctx)
	if !ok {
		// This indicates a misconfiguration in the middleware chain.
		return "", httpx.UnauthorizedProblem(ctx, "invalid authentication context")
	}
	return p.ID, nil
}
