package routes

import (
	"cms0/internal/handlers"

	"github.com/labstack/echo/v4"
)

// SetupAuthRoutes mounts /auth under base. Register, login and refresh are public; the
// rest need the auth middleware.
func SetupAuthRoutes(base *echo.Group, h *handlers.AuthHandler, authenticate echo.MiddlewareFunc) {
	auth := base.Group("/auth")

	// Public routes (no auth required)
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.RefreshToken)

	// Protected auth routes
	auth.GET("/me", h.GetMe, authenticate)
	auth.POST("/logout", h.Logout, authenticate)
}
