package handlers

import (
	"context"
	"time"

	"cms0/internal/authz"

	"github.com/labstack/echo/v4"
)

// StorageHandler is the object storage uploads are written to. services.S3Service
// implements it.
type StorageHandler interface {
	UploadFile(ctx context.Context, file []byte, key string, contentType string) (string, error)
	GetSignedURL(ctx context.Context, key string, duration time.Duration) (string, error)
}

// RolePermissions resolves the permission set of a role. authz.Checker implements it.
type RolePermissions interface {
	PermissionsForRole(ctx context.Context, roleID string) (authz.Set, error)
}

// respond writes the {success, data} envelope every handler returns.
func respond(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, map[string]interface{}{"success": true, "data": data})
}
