package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/Jabakyo/next-class/internal/contextx"
	apphttpx "github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthHuma is a router-agnostic Huma middleware that validates a JWT and injects
// the principal (user ID and role) into the request context for downstream handlers.
// On failure it writes an RFC7807 problem+json response with code ErrUnauthorized.
func JWTAuthHuma(jwtSecret string, logger *slog.Logger) huma.Middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		// 1. Authorization header.
		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			writeProblem(ctx, apphttpx.UnauthorizedProblem(ctx.Context(), "missing authorization header"))
			return
		}

		// 2. Bearer token.
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			writeProblem(ctx, apphttpx.UnauthorizedProblem(ctx.Context(), "invalid authorization header format"))
			return
		}

		// 3. Parse and validate the token.
		claims := &user.Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn("invalid jwt token", "error", err)
			writeProblem(ctx, apphttpx.UnauthorizedProblem(ctx.Context(), "invalid or expired token"))
			return
		}

		// 4. Subject and role are both required.
		if claims.Subject == "" || claims.Role == "" {
			logger.Error("incomplete jwt claims", "subject", claims.Subject, "role", claims.Role)
			writeProblem(ctx, apphttpx.UnauthorizedProblem(ctx.Context(), "invalid token claims"))
			return
		}

		// 5. Inject the principal for downstream handlers.
		ctx = huma.WithValue(ctx, contextx.UserIDKey, claims.Subject)
		ctx = huma.WithValue(ctx, contextx.RoleKey, string(claims.Role))
		next(ctx)
	}
}

// RequireRole lets the request through only when the principal injected by
// JWTAuthHuma holds one of roles. It answers 403 otherwise.
func RequireRole(roles ...user.Role) huma.Middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		p, ok := contextx.PrincipalFrom(ctx.Context())
		if !ok {
			writeProblem(ctx, apphttpx.UnauthorizedProblem(ctx.Context(), "authentication required"))
			return
		}
		if !slices.Contains(roles, user.Role(p.Role)) {
			writeProblem(ctx, apphttpx.ForbiddenProblem(ctx.Context(), "your role does not allow this action"))
			return
		}
		next(ctx)
	}
}

func writeProblem(ctx huma.Context, p *apphttpx.Problem) {
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(p.GetStatus())
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(p)
}
