package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// AuthHandler handles sign-up, sign-in and sign-out
type AuthHandler struct {
	registry *client.Registry
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(registry *client.Registry) *AuthHandler {
	return &AuthHandler{registry: registry}
}

// SessionResponse is returned after a successful sign-up or sign-in
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
}

// RegisterSessionRoutes registers the routes that need a session
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/signout", h.SignOut)
}

// Signup creates an account, its profile and a session
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupForm
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := validate(c, "createUserAccount", &req); err != nil {
		return err
	}

	cl := h.registry.Anonymous()
	user, err := cl.SignUp(c.Request().Context(), req)
	if err != nil {
		cl.Close()
		return httpError(err)
	}
	return h.started(c, cl, user)
}

// SignIn starts a session for an existing account
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SigninForm
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := validate(c, "signInAccount", &req); err != nil {
		return err
	}

	cl := h.registry.Anonymous()
	user, err := cl.SignIn(c.Request().Context(), req)
	if err != nil {
		cl.Close()
		return httpError(err)
	}
	return h.started(c, cl, user)
}

// SignOut ends the caller's session
func (h *AuthHandler) SignOut(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	if err := middleware.ClientFrom(c).SignOut(c.Request().Context()); err != nil {
		return httpError(err)
	}
	h.registry.Remove(middleware.TokenFrom(c))
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) started(c echo.Context, cl *client.Client, user *models.User) error {
	h.registry.Add(cl)
	s := cl.Session()
	return c.JSON(http.StatusCreated, SessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: user})
}
