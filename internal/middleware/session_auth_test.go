package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/gateway/gatewaytest"
	"github.com/anonto42/nano-midea/client/internal/models"
)

func TestSessionAuthMiddleware(t *testing.T) {
	b := gatewaytest.New()
	registry := client.NewRegistry(func() *gateway.Client {
		return b.Client(gateway.Options{Timeout: time.Second, AvatarBaseURL: "https://avatars.test/initials"})
	}, 0)
	defer registry.Close()

	signup := registry.Anonymous()
	_, err := signup.SignUp(context.Background(), models.SignupForm{
		Name: "Ann Lee", Username: "ann", Email: "ann@example.com", Password: "secret123",
	})
	require.NoError(t, err)
	token := signup.Session().Token
	signup.Close()

	e := echo.New()
	handler := SessionAuthMiddleware(registry)(func(c echo.Context) error {
		assert.NotNil(t, ClientFrom(c))
		return c.String(http.StatusOK, TokenFrom(c))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			err := handler(e.NewContext(req, rec))
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, token, rec.Body.String())
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.status, he.Code)
		})
	}
	assert.Equal(t, 1, registry.Len())
}

func TestSessionAuthMiddlewareEvictsOnUnauthorized(t *testing.T) {
	b := gatewaytest.New()
	registry := client.NewRegistry(func() *gateway.Client {
		return b.Client(gateway.Options{Timeout: time.Second, AvatarBaseURL: "https://avatars.test/initials"})
	}, 0)
	defer registry.Close()

	cl := registry.Anonymous()
	_, err := cl.SignUp(context.Background(), models.SignupForm{
		Name: "Ann Lee", Username: "ann", Email: "ann@example.com", Password: "secret123",
	})
	require.NoError(t, err)
	registry.Add(cl)
	token := cl.Session().Token

	e := echo.New()
	handler := SessionAuthMiddleware(registry)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	err = handler(e.NewContext(req, httptest.NewRecorder()))

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Zero(t, registry.Len())
}
