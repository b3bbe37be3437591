package verification

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/danielgtaylor/huma/v2"
)

// Guards are the middlewares protecting verification routes.
type Guards struct {
	Auth     huma.Middleware // any signed-in user
	Reviewer huma.Middleware // admin or owner, after Auth
	Owner    huma.Middleware // owner only, after Auth
}

// Handler holds the dependencies for the verification HTTP handlers.
type Handler struct {
	service  Service
	logger   *slog.Logger
	guards   Guards
	maxBytes int64
}

// NewHandler creates a new handler. maxBytes bounds screenshot uploads.
func NewHandler(service Service, logger *slog.Logger, guards Guards, maxBytes int64) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		guards:   guards,
		maxBytes: maxBytes,
	}
}

// RegisterRoutes sets up the routing for the verification module.
func (h *Handler) RegisterRoutes(api huma.API) {
	guard := func(op huma.Operation, tag string, mws ...huma.Middleware) huma.Operation {
		op.Middlewares = append(huma.Middlewares{h.guards.Auth}, mws...)
		op.Security = []map[string][]string{{"bearer": {}}}
		op.Tags = []string{tag}
		return op
	}

	// --- Student routes ---
	huma.Register(api, guard(huma.Operation{
		OperationID:   "submit-verification",
		Method:        http.MethodPost,
		Path:          "/users/me/verification",
		Summary:       "Submit a schedule screenshot for verification",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  h.maxBytes + 64<<10,
	}, "verification"), h.SubmitHandler)

	huma.Register(api, guard(huma.Operation{
		OperationID: "get-my-verification",
		Method:      http.MethodGet,
		Path:        "/users/me/verification",
		Summary:     "Get the current user's verification status and requests",
	}, "verification"), h.OverviewHandler)

	huma.Register(api, guard(huma.Operation{
		OperationID: "get-verification-screenshot",
		Method:      http.MethodGet,
		Path:        "/verifications/{requestId}/screenshot",
		Summary:     "Download the screenshot of a verification request",
	}, "verification"), h.ScreenshotHandler)

	// --- Review routes ---
	huma.Register(api, guard(huma.Operation{
		OperationID: "list-verifications",
		Method:      http.MethodGet,
		Path:        "/admin/verifications",
		Summary:     "List verification requests, newest first",
	}, "admin", h.guards.Reviewer), h.ListHandler)

	huma.Register(api, guard(huma.Operation{
		OperationID: "get-verification",
		Method:      http.MethodGet,
		Path:        "/admin/verifications/{requestId}",
		Summary:     "Get one verification request",
	}, "admin", h.guards.Reviewer), h.GetHandler)

	huma.Register(api, guard(huma.Operation{
		OperationID: "decide-verification",
		Method:      http.MethodPost,
		Path:        "/admin/verifications/{requestId}/decision",
		Summary:     "Approve or reject a pending verification request",
	}, "admin", h.guards.Reviewer), h.DecideHandler)

	huma.Register(api, guard(huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/admin/users/{userId}",
		Summary:       "Delete an account with its requests, tokens and files",
		DefaultStatus: http.StatusNoContent,
	}, "admin", h.guards.Owner), h.DeleteUserHandler)
}

// principal reads the authenticated actor set by the auth middleware.
func principal(ctx context.Context) (contextx.Principal, error) {
	p, ok := contextx.PrincipalFrom(ctx)
	if !ok {
		return contextx.Principal{}, httpx.UnauthorizedProblem(ctx, "invalid authentication context")
	}
	return p, nil
}
