package routes

import (
	"cms0/internal/api/middleware"
	"cms0/internal/handlers"
	"cms0/internal/metrics"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

func SetupUploadRoutes(api *echo.Group, h *handlers.UploadHandler, m *metrics.Metrics) {
	log := logger.New("upload_routes")

	fileGroup := api.Group("/files")
	fileGroup.POST("/upload", h.UploadFile, middleware.RequirePermission(m, "files.create"))

	log.Success("Upload routes initialized successfully")
}
