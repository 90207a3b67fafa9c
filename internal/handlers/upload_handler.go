package handlers

import (
	"io"
	"net/http"
	"strings"

	"cms0/internal/api/middleware"
	"cms0/internal/models"
	"cms0/internal/services"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

type UploadHandler struct {
	storage StorageHandler
	files   services.BaseService[models.File]
	log     *logger.Logger
}

func NewUploadHandler(storage StorageHandler, files services.BaseService[models.File]) *UploadHandler {
	return &UploadHandler{
		storage: storage,
		files:   files,
		log:     logger.New("upload_handler"),
	}
}

// UploadFile stores a file under the request's affiliate and records it.
// @Summary Upload a file
// @Description Upload a file to object storage for the pinned affiliate
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} map[string]interface{} "File uploaded successfully"
// @Failure 400 {object} map[string]interface{} "Validation error or file not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/admin/files/upload [post]
func (h *UploadHandler) UploadFile(c echo.Context) error {
	contentType := c.Request().Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return echo.NewHTTPError(http.StatusBadRequest, "Content-Type must be multipart/form-data")
	}

	if h.storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage is not configured")
	}

	scope := middleware.GetScope(c)
	affiliateID, err := scope.Single()
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		h.log.Warn("Failed to get file from request: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}

	src, err := file.Open()
	if err != nil {
		return h.log.Error("Failed to open file", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return h.log.Error("Failed to read file", err)
	}

	key := services.ObjectKey(affiliateID, file.Filename)
	url, err := h.storage.UploadFile(c.Request().Context(), content, key, file.Header.Get("Content-Type"))
	if err != nil {
		return h.log.Error("Failed to upload file", err)
	}

	h.log.Success("File uploaded successfully: %s", url)

	record := &models.File{
		UserID: middleware.GetUserID(c),
		Path:   key,
		Name:   file.Filename,
		Size:   file.Size,
		Type:   file.Header.Get("Content-Type"),
	}
	if err := h.files.Create(c.Request().Context(), scope, record); err != nil {
		return h.log.Error("Failed to insert file into database", err)
	}

	return respond(c, http.StatusCreated, map[string]interface{}{
		"file": record,
		"url":  url,
	})
}
