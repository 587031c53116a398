package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/mutation"
)

// NotificationHandler serves the failure notices of a session
type NotificationHandler struct{}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{}
}

// RegisterNotificationRoutes registers notice routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notices", h.DrainNotices)
}

// DrainNotices returns and clears the pending notices
func (h *NotificationHandler) DrainNotices(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	notices := middleware.ClientFrom(c).Notices().Drain()
	if notices == nil {
		notices = []mutation.Notice{}
	}
	return c.JSON(http.StatusOK, notices)
}
