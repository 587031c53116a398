package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/gateway"
)

// Context keys set by SessionAuthMiddleware
const (
	ClientKey = "client"
	TokenKey  = "token"
)

// SessionAuthMiddleware resolves the Bearer token to its session client.
// A handler answering 401 evicts the session from registry.
func SessionAuthMiddleware(registry *client.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}
			token := parts[1]

			cl, err := registry.Restore(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, gateway.ErrServiceUnavailable) {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Session service unavailable")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session")
			}

			c.Set(ClientKey, cl)
			c.Set(TokenKey, token)

			err = next(c)
			// The backend dropped the session mid-request
			var he *echo.HTTPError
			if errors.As(err, &he) && he.Code == http.StatusUnauthorized {
				registry.Remove(token)
			}
			return err
		}
	}
}

// ClientFrom returns the session client stored by SessionAuthMiddleware
func ClientFrom(c echo.Context) *client.Client {
	cl, _ := c.Get(ClientKey).(*client.Client)
	return cl
}

// TokenFrom returns the session token stored by SessionAuthMiddleware
func TokenFrom(c echo.Context) string {
	t, _ := c.Get(TokenKey).(string)
	return t
}
