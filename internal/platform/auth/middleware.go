package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// Client-facing messages for gate rejections.
const (
	MsgTokenRequired = "Token requerido"
	MsgTokenInvalid  = "Token inválido o expirado"
	MsgForbidden     = "No autorizado"
)

// RequireAuth rejects requests without a valid bearer token and, when roles
// are given, requests whose role is not among them.
func RequireAuth(tokens TokenVerifier, roles ...Role) echo.MiddlewareFunc {
	cfg := GateConfig{AllowedRoles: roles}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := Evaluate(c.Request().Header.Get(echo.HeaderAuthorization), tokens, cfg)
			switch {
			case errors.Is(err, ErrMissingToken):
				return echo.NewHTTPError(http.StatusUnauthorized, MsgTokenRequired)
			case errors.Is(err, ErrInvalidToken):
				return echo.NewHTTPError(http.StatusUnauthorized, MsgTokenInvalid)
			case errors.Is(err, ErrForbidden):
				return echo.NewHTTPError(http.StatusForbidden, MsgForbidden)
			case err != nil:
				return echo.NewHTTPError(http.StatusUnauthorized, MsgTokenInvalid)
			}

			c.SetRequest(c.Request().WithContext(NewContext(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// RequireRole narrows an already authenticated group to the given roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	cfg := GateConfig{AllowedRoles: roles}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgTokenRequired)
			}
			if !cfg.Permits(id.Role) {
				return echo.NewHTTPError(http.StatusForbidden, MsgForbidden)
			}
			return next(c)
		}
	}
}

func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
