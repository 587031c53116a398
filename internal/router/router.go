package router

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/handlers"
	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/validators"
)

// SetupRoutes configures all application routes around the session registry
func SetupRoutes(e *echo.Echo, registry *client.Registry) {
	e.Validator = validators.NewValidator()

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "nano-midea client api"})
	})

	authHandler := handlers.NewAuthHandler(registry)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler.RegisterAuthRoutes(authGroup)
	glog.V(1).Info("Auth routes configured.")

	// --- Protected routes (require a session) ---
	api := e.Group("/api/v1")
	api.Use(middleware.SessionAuthMiddleware(registry))
	glog.V(1).Info("Session middleware applied to /api/v1 group.")

	authHandler.RegisterSessionRoutes(api.Group("/auth"))

	handlers.NewUserHandler().RegisterUserRoutes(api)
	glog.V(1).Info("User routes configured.")

	handlers.NewPostHandler().RegisterPostRoutes(api)
	glog.V(1).Info("Post routes configured.")

	handlers.NewFeedHandler().RegisterFeedRoutes(api)
	glog.V(1).Info("Feed routes configured.")

	handlers.NewNotificationHandler().RegisterNotificationRoutes(api)
	glog.V(1).Info("Notice routes configured.")

	glog.Info("All routes configured.")
}
