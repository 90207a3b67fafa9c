package registry

import (
	"github.com/labstack/echo/v4"

	"cms0/internal/api/controllers"
	"cms0/internal/api/middleware"
	"cms0/internal/metrics"
	"cms0/internal/models"
	"cms0/internal/services"

	"gorm.io/gorm"
)

// RegisterCRUDRoutes registers the affiliate-scoped CRUD routes of the content entities.
// Each route is guarded by "<entity>.<action>"; updates and deletes also accept the
// *_own variants and the controller checks authorship.
//
// @Summary Content CRUD
// @Description GET/POST /{entity}, GET/PUT/DELETE /{entity}/{id} for stories, pages, modules and categories
// @Tags content
// @Accept json
// @Produce json
func RegisterCRUDRoutes(g *echo.Group, db *gorm.DB, m *metrics.Metrics) {
	controllers.NewBaseController(services.NewBaseService(db, models.Story{}), "stories").
		RegisterRoutes(g, "/stories", m)
	controllers.NewBaseController(services.NewBaseService(db, models.Page{}), "pages").
		RegisterRoutes(g, "/pages", m)
	controllers.NewBaseController(services.NewBaseService(db, models.Module{}), "modules").
		RegisterRoutes(g, "/modules", m)
	controllers.NewBaseController(services.NewBaseService(db, models.Category{}), "categories").
		RegisterRoutes(g, "/categories", m)

	// Files are created through the upload handler; here they are read-only.
	fileController := controllers.NewBaseController(services.NewBaseService(db, models.File{}), "files")
	fileGroup := g.Group("/files")
	read := middleware.RequirePermission(m, "files.read")

	// @Summary List files
	// @Tags files
	// @Produce json
	// @Success 200 {array} models.File
	// @Router /api/admin/files [get]
	fileGroup.GET("", fileController.List, read)
	// @Summary Get file
	// @Tags files
	// @Produce json
	// @Param id path string true "File ID"
	// @Success 200 {object} models.File
	// @Router /api/admin/files/{id} [get]
	fileGroup.GET("/:id", fileController.Get, read)
}
