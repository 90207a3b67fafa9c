package middleware

import (
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/metrics"

	"github.com/labstack/echo/v4"
)

// RequirePermission rejects the request with 403 unless the caller holds permission.
func RequirePermission(m *metrics.Metrics, permission string) echo.MiddlewareFunc {
	return RequireAny(m, permission)
}

// RequireAny passes when the caller holds at least one of permissions. It is used where
// either "x.update" or "x.update_own" may authorize and the handler decides ownership.
func RequireAny(m *metrics.Metrics, permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetPermissions(c).HasAny(permissions...) {
				return next(c)
			}
			for _, p := range permissions {
				m.PermissionDenied(p)
			}
			return apperrors.Forbidden(strings.Join(permissions, " or "))
		}
	}
}
