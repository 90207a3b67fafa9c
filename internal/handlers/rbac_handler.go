package handlers

import (
	"net/http"

	"cms0/internal/api/validator"
	"cms0/internal/services"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// RBACHandler manages roles, permissions and their assignments.
type RBACHandler struct {
	rbac *services.RBACService
	log  *logger.Logger
}

func NewRBACHandler(rbac *services.RBACService) *RBACHandler {
	return &RBACHandler{rbac: rbac, log: logger.New("RBACHandler")}
}

// @Summary List roles
// @Tags rbac
// @Produce json
// @Success 200 {array} models.Role
// @Router /api/admin/roles [get]
func (h *RBACHandler) ListRoles(c echo.Context) error {
	roles, err := h.rbac.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, roles)
}

// @Summary Get a role with its permissions
// @Tags rbac
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} models.Role
// @Router /api/admin/roles/{id} [get]
func (h *RBACHandler) GetRole(c echo.Context) error {
	role, err := h.rbac.GetRole(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, role)
}

// CreateRole creates a role and then attaches its permissions. When the second step
// fails the role exists without them and the error is returned.
// @Summary Create a role
// @Tags rbac
// @Accept json
// @Produce json
// @Param request body services.RoleInput true "Role"
// @Success 201 {object} models.Role
// @Router /api/admin/roles [post]
func (h *RBACHandler) CreateRole(c echo.Context) error {
	var req services.RoleInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	role, err := h.rbac.CreateRole(c.Request().Context(), req)
	if err != nil {
		if role != nil {
			h.log.Warn("Role %s created without its permissions: %v", role.Name, err)
		}
		return err
	}
	return respond(c, http.StatusCreated, role)
}

// @Summary Update a role
// @Tags rbac
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param request body services.RoleInput true "Role"
// @Success 200 {object} models.Role
// @Router /api/admin/roles/{id} [put]
func (h *RBACHandler) UpdateRole(c echo.Context) error {
	var req services.RoleInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	role, err := h.rbac.UpdateRole(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, role)
}

// DeleteRole refuses with 409 while users still hold the role.
// @Summary Delete a role
// @Tags rbac
// @Param id path string true "Role ID"
// @Success 204
// @Failure 403 {object} map[string]interface{} "System role"
// @Failure 409 {object} map[string]interface{} "Role still assigned"
// @Router /api/admin/roles/{id} [delete]
func (h *RBACHandler) DeleteRole(c echo.Context) error {
	if err := h.rbac.DeleteRole(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary Replace the permissions of a role
// @Tags rbac
// @Accept json
// @Param id path string true "Role ID"
// @Param request body validator.PermissionIDsRequest true "Permission ids"
// @Success 200 {object} models.Role
// @Router /api/admin/roles/{id}/permissions [put]
func (h *RBACHandler) SetRolePermissions(c echo.Context) error {
	var req validator.PermissionIDsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.rbac.SetRolePermissions(ctx, id, req.PermissionIDs); err != nil {
		return err
	}
	role, err := h.rbac.GetRole(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, role)
}

// @Summary Assign a permission to a role
// @Tags rbac
// @Param id path string true "Role ID"
// @Param permissionId path string true "Permission ID"
// @Success 204
// @Router /api/admin/roles/{id}/permissions/{permissionId} [post]
func (h *RBACHandler) AssignPermission(c echo.Context) error {
	if err := h.rbac.AssignPermission(c.Request().Context(), c.Param("id"), c.Param("permissionId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary Remove a permission from a role
// @Tags rbac
// @Param id path string true "Role ID"
// @Param permissionId path string true "Permission ID"
// @Success 204
// @Router /api/admin/roles/{id}/permissions/{permissionId} [delete]
func (h *RBACHandler) UnassignPermission(c echo.Context) error {
	if err := h.rbac.UnassignPermission(c.Request().Context(), c.Param("id"), c.Param("permissionId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary List permissions
// @Tags rbac
// @Produce json
// @Param entity query string false "Only permissions of this entity"
// @Success 200 {array} models.Permission
// @Router /api/admin/permissions [get]
func (h *RBACHandler) ListPermissions(c echo.Context) error {
	perms, err := h.rbac.ListPermissions(c.Request().Context(), c.QueryParam("entity"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, perms)
}

// @Summary Create a permission
// @Tags rbac
// @Accept json
// @Produce json
// @Param request body services.PermissionInput true "Entity and action"
// @Success 201 {object} models.Permission
// @Router /api/admin/permissions [post]
func (h *RBACHandler) CreatePermission(c echo.Context) error {
	var req services.PermissionInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	perm, err := h.rbac.CreatePermission(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, perm)
}

// @Summary Delete a permission
// @Tags rbac
// @Param id path string true "Permission ID"
// @Success 204
// @Failure 409 {object} map[string]interface{} "Permission still assigned"
// @Router /api/admin/permissions/{id} [delete]
func (h *RBACHandler) DeletePermission(c echo.Context) error {
	if err := h.rbac.DeletePermission(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
