package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/httpx"
	appmw "github.com/Jabakyo/next-class/internal/middleware"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/modules/verification"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services holds the module services exposed over HTTP.
type Services struct {
	Users        user.Service
	Verification verification.Service
}

func init() {
	huma.NewError = httpx.NewHumaError
}

// New creates and configures the HTTP router with every module's routes.
func New(cfg *config.Config, log *slog.Logger, services Services) chi.Router {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	apiConfig := huma.DefaultConfig("Next Class API", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(router, apiConfig)

	auth := appmw.JWTAuthHuma(cfg.Auth.JWTSecret, log)

	userHandler := user.NewHandler(services.Users, log, auth)
	userHandler.RegisterRoutes(api)

	verificationHandler := verification.NewHandler(services.Verification, log, verification.Guards{
		Auth:     auth,
		Reviewer: appmw.RequireRole(user.RoleAdmin, user.RoleOwner),
		Owner:    appmw.RequireRole(user.RoleOwner),
	}, cfg.Upload.MaxBytes)
	verificationHandler.RegisterRoutes(api)

	// Register a simple health check endpoint.
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Responds with the server's health status.",
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	return router
}
