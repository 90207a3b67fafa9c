package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"cms0/internal/affiliate"
	"cms0/internal/api/middleware"
	"cms0/internal/apperrors"
	"cms0/internal/metrics"
	"cms0/internal/models"
	"cms0/internal/services"

	"github.com/labstack/echo/v4"
)

// reservedParams are query parameters that never become filters.
var reservedParams = map[string]bool{
	"page": true, "limit": true, "include": true, "exclude": true, "sort": true, "order": true,
	"affiliate_id": true, "global": true,
}

// BaseController provides affiliate-scoped CRUD for one entity. Reads accept every
// affiliate in scope; detail and writes need one pinned affiliate.
type BaseController[T any] struct {
	service services.BaseService[T]
	entity  string
}

// NewBaseController creates a controller whose permissions are named after entity,
// e.g. "stories" checks stories.read, stories.update_own and so on.
func NewBaseController[T any](service services.BaseService[T], entity string) *BaseController[T] {
	return &BaseController[T]{
		service: service,
		entity:  entity,
	}
}

// parseIncludes parses the include query parameter and returns a slice of relationships to preload
func parseIncludes(ctx echo.Context) []string {
	include := ctx.QueryParam("include")
	if include == "" {
		return nil
	}
	return strings.Split(include, ",")
}

func (c *BaseController[T]) permission(action models.PermissionAction) string {
	return models.PermissionName(c.entity, action)
}

// singleScope pins the request to one affiliate or fails with ErrAmbiguousAffiliate.
func singleScope(ctx echo.Context) (affiliate.Scope, error) {
	id, err := middleware.GetScope(ctx).Single()
	if err != nil {
		return affiliate.Scope{}, err
	}
	return affiliate.SingleScope(id), nil
}

// checkStatusChange requires entity.publish to publish and entity.unpublish to leave
// the published state.
func (c *BaseController[T]) checkStatusChange(ctx echo.Context, before, after *T) error {
	next, ok := any(after).(models.Publishable)
	if !ok || next.GetStatus() == "" {
		return nil
	}
	prev := models.ContentStatusDraft
	if before != nil {
		prev = any(before).(models.Publishable).GetStatus()
	}
	perms := middleware.GetPermissions(ctx)
	switch {
	case next.GetStatus() == models.ContentStatusPublished && prev != models.ContentStatusPublished:
		if !perms.Has(c.permission(models.ActionPublish)) {
			return apperrors.Forbidden(c.permission(models.ActionPublish))
		}
	case prev == models.ContentStatusPublished && next.GetStatus() != models.ContentStatusPublished:
		if !perms.Has(c.permission(models.ActionUnpublish)) {
			return apperrors.Forbidden(c.permission(models.ActionUnpublish))
		}
	}
	return nil
}

// authorize loads the record and checks action against the caller's reach, which is
// all records or only those they authored.
func (c *BaseController[T]) authorize(ctx echo.Context, scope affiliate.Scope, id string, action models.PermissionAction) (*T, error) {
	existing, err := c.service.Get(ctx.Request().Context(), scope, id)
	if err != nil {
		return nil, err
	}
	authorID := ""
	if authored, ok := any(existing).(models.Authored); ok {
		authorID = authored.GetAuthorID()
	}
	perms := middleware.GetPermissions(ctx)
	if !perms.CanModify(c.entity, action, authorID, middleware.GetUserID(ctx)) {
		return nil, apperrors.Forbidden(c.permission(action))
	}
	return existing, nil
}

// Create handles creation of new entities
func (c *BaseController[T]) Create(ctx echo.Context) error {
	scope, err := singleScope(ctx)
	if err != nil {
		return err
	}

	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}
	if err := c.checkStatusChange(ctx, nil, &entity); err != nil {
		return err
	}
	if authored, ok := any(&entity).(models.Authored); ok {
		authored.SetAuthorID(middleware.GetUserID(ctx))
	}

	if err := c.service.Create(ctx.Request().Context(), scope, &entity, parseIncludes(ctx)...); err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, map[string]interface{}{"success": true, "data": entity})
}

// Get handles retrieval of a single entity
func (c *BaseController[T]) Get(ctx echo.Context) error {
	scope, err := singleScope(ctx)
	if err != nil {
		return err
	}
	entity, err := c.service.Get(ctx.Request().Context(), scope, ctx.Param("id"), parseIncludes(ctx)...)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": entity})
}

// ListParams reads pagination, sorting and column filters from the query string.
func ListParams(ctx echo.Context) services.ListParams {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	params := services.ListParams{
		Page:     page,
		Limit:    limit,
		Filters:  make(map[string]interface{}),
		Excludes: make(map[string]bool),
		Order:    ctx.QueryParam("order"),
		Includes: parseIncludes(ctx),
	}
	for key, values := range ctx.QueryParams() {
		if !reservedParams[key] && len(values) > 0 {
			params.Filters[key] = values[0]
		}
	}
	if exclude := ctx.QueryParam("exclude"); exclude != "" {
		for _, field := range strings.Split(exclude, ",") {
			params.Excludes[field] = true
		}
	}
	if sort := ctx.QueryParam("sort"); sort != "" {
		params.Sort = strings.Split(sort, ",")
	}
	return params
}

// List handles retrieval of multiple entities with pagination and filtering
func (c *BaseController[T]) List(ctx echo.Context) error {
	params := ListParams(ctx)
	entities, total, err := c.service.List(ctx.Request().Context(), middleware.GetScope(ctx), params)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entities,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	})
}

// Update handles updating an existing entity
func (c *BaseController[T]) Update(ctx echo.Context) error {
	scope, err := singleScope(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	existing, err := c.authorize(ctx, scope, id, models.ActionUpdate)
	if err != nil {
		return err
	}

	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}
	if err := c.checkStatusChange(ctx, existing, &entity); err != nil {
		return err
	}

	if err := c.service.Update(ctx.Request().Context(), scope, id, &entity, parseIncludes(ctx)...); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": entity})
}

// Delete handles deletion of an entity
func (c *BaseController[T]) Delete(ctx echo.Context) error {
	scope, err := singleScope(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if _, err := c.authorize(ctx, scope, id, models.ActionDelete); err != nil {
		return err
	}

	if err := c.service.Delete(ctx.Request().Context(), scope, id); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes mounts the CRUD routes at path with their permission guards.
func (c *BaseController[T]) RegisterRoutes(g *echo.Group, path string, m *metrics.Metrics) {
	g.GET(path, c.List, middleware.RequirePermission(m, c.permission(models.ActionRead)))
	g.GET(path+"/:id", c.Get, middleware.RequirePermission(m, c.permission(models.ActionRead)))
	g.POST(path, c.Create, middleware.RequirePermission(m, c.permission(models.ActionCreate)))
	g.PUT(path+"/:id", c.Update, middleware.RequireAny(m, c.permission(models.ActionUpdate), c.permission(models.ActionUpdateOwn)))
	g.DELETE(path+"/:id", c.Delete, middleware.RequireAny(m, c.permission(models.ActionDelete), c.permission(models.ActionDeleteOwn)))
}
