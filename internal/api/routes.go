package api

import (
	"net/http"

	apimw "cms0/internal/api/middleware"
	"cms0/internal/api/registry"
	"cms0/internal/routes"

	_ "cms0/docs/swagger"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "cms0 admin API")
	})
	// Health check
	// @Summary Health check
	// @Description Check the server and its database
	// @Produce json
	// @Success 200 {object} map[string]interface{} "OK"
	// @Failure 503 {object} map[string]interface{} "Dependency unreachable"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	base := s.echo.Group("/api/admin")
	routes.SetupAuthRoutes(base, s.deps.authHandler, s.deps.auth.Middleware())

	// Everything else needs a session and an affiliate scope, resolved in that order.
	api := base.Group("", s.deps.auth.Middleware(), apimw.AffiliateScope(s.deps.resolver))

	registry.RegisterCRUDRoutes(api, s.db, s.metrics)
	routes.SetupTeamRoutes(api, s.deps.teamHandler, s.metrics)
	routes.SetupMenuRoutes(api, s.deps.menuHandler, s.metrics)
	routes.SetupRBACRoutes(api, s.deps.rbacHandler, s.metrics)
	routes.SetupAffiliateRoutes(api, s.deps.affiliateHandler, s.metrics)
	if s.deps.uploadHandler != nil {
		routes.SetupUploadRoutes(api, s.deps.uploadHandler, s.metrics)
	} else {
		log.Warn("Object storage is not configured; uploads are disabled")
	}
}
