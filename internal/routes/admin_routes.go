package routes

import (
	"cms0/internal/api/middleware"
	"cms0/internal/handlers"
	"cms0/internal/metrics"

	"github.com/labstack/echo/v4"
)

// SetupTeamRoutes mounts the user hierarchy endpoints.
func SetupTeamRoutes(api *echo.Group, h *handlers.TeamHandler, m *metrics.Metrics) {
	read := middleware.RequirePermission(m, "users.read")

	users := api.Group("/users")
	users.GET("/my-team", h.MyTeam, read)
	users.GET("/my-team/tree", h.Tree, read)
	users.GET("/:id/subordinates", h.Subordinates, read)
	users.POST("", h.CreateUser, middleware.RequirePermission(m, "users.create"))
}

// SetupMenuRoutes mounts menus and the item tree editor. Tree edits count as menu updates.
func SetupMenuRoutes(api *echo.Group, h *handlers.MenuHandler, m *metrics.Metrics) {
	read := middleware.RequirePermission(m, "menus.read")
	update := middleware.RequirePermission(m, "menus.update")

	menus := api.Group("/menus")
	menus.GET("", h.List, read)
	menus.GET("/:id", h.Get, read)
	menus.POST("", h.Create, middleware.RequirePermission(m, "menus.create"))
	menus.PUT("/:id", h.Update, update)
	menus.DELETE("/:id", h.Delete, middleware.RequirePermission(m, "menus.delete"))

	menus.POST("/:id/items", h.AddItem, update)
	menus.PATCH("/:id/items/:path", h.UpdateItem, update)
	menus.DELETE("/:id/items/:path", h.RemoveItem, update)
	menus.POST("/:id/move", h.Move, update)
	menus.POST("/:id/reconcile", h.Reconcile, update)
}

// SetupRBACRoutes mounts role and permission management.
func SetupRBACRoutes(api *echo.Group, h *handlers.RBACHandler, m *metrics.Metrics) {
	roles := api.Group("/roles")
	roles.GET("", h.ListRoles, middleware.RequirePermission(m, "roles.read"))
	roles.GET("/:id", h.GetRole, middleware.RequirePermission(m, "roles.read"))
	roles.POST("", h.CreateRole, middleware.RequirePermission(m, "roles.create"))
	roles.PUT("/:id", h.UpdateRole, middleware.RequirePermission(m, "roles.update"))
	roles.DELETE("/:id", h.DeleteRole, middleware.RequirePermission(m, "roles.delete"))
	roles.PUT("/:id/permissions", h.SetRolePermissions, middleware.RequirePermission(m, "roles.update"))
	roles.POST("/:id/permissions/:permissionId", h.AssignPermission, middleware.RequirePermission(m, "roles.update"))
	roles.DELETE("/:id/permissions/:permissionId", h.UnassignPermission, middleware.RequirePermission(m, "roles.update"))

	perms := api.Group("/permissions")
	perms.GET("", h.ListPermissions, middleware.RequirePermission(m, "permissions.read"))
	perms.POST("", h.CreatePermission, middleware.RequirePermission(m, "permissions.create"))
	perms.DELETE("/:id", h.DeletePermission, middleware.RequirePermission(m, "permissions.delete"))
}

// SetupAffiliateRoutes mounts affiliates, memberships and delegations.
func SetupAffiliateRoutes(api *echo.Group, h *handlers.AffiliateHandler, m *metrics.Metrics) {
	read := middleware.RequirePermission(m, "affiliates.read")
	update := middleware.RequirePermission(m, "affiliates.update")

	affiliates := api.Group("/affiliates")
	affiliates.GET("", h.List, read)
	affiliates.GET("/:id", h.Get, read)
	affiliates.POST("", h.Create, middleware.RequirePermission(m, "affiliates.create"))
	affiliates.PUT("/:id", h.Update, update)
	affiliates.DELETE("/:id", h.Delete, middleware.RequirePermission(m, "affiliates.delete"))

	affiliates.POST("/:id/members", h.AddMember, update)
	affiliates.DELETE("/:id/members/:userId", h.RemoveMember, update)

	affiliates.GET("/:id/delegations", h.ListDelegations, read)
	affiliates.PUT("/:id/delegations", h.Grant, update)
	affiliates.DELETE("/:id/delegations/:toId", h.Revoke, update)
}
