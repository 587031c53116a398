package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// UserHandler handles profile and follow requests
type UserHandler struct{}

// NewUserHandler creates a new UserHandler
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// RegisterUserRoutes registers user-related routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/me", h.GetMe)
	g.PUT("/me", h.UpdateProfile)
	g.GET("/users/:id", h.GetUser)
	g.POST("/users/:id/follow", h.Follow)
	g.DELETE("/users/:id/follow", h.Unfollow)
}

// GetMe returns the signed-in user
func (h *UserHandler) GetMe(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	user, err := middleware.ClientFrom(c).CurrentUser(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// GetUser returns a user by id
func (h *UserHandler) GetUser(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	user, err := middleware.ClientFrom(c).User(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile edits the signed-in user's profile from a multipart form
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	file, err := formFile(c)
	if err != nil {
		return err
	}

	form := models.UpdateProfileForm{
		Name:     c.FormValue("name"),
		Username: c.FormValue("username"),
		Bio:      c.FormValue("bio"),
		File:     file,
	}
	user, err := middleware.ClientFrom(c).UpdateProfile(c.Request().Context(), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Follow makes the signed-in user follow :id
func (h *UserHandler) Follow(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	user, err := middleware.ClientFrom(c).Follow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Unfollow makes the signed-in user stop following :id
func (h *UserHandler) Unfollow(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	user, err := middleware.ClientFrom(c).Unfollow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
