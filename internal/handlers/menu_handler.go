package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"cms0/internal/affiliate"
	"cms0/internal/api/controllers"
	"cms0/internal/api/middleware"
	"cms0/internal/api/validator"
	"cms0/internal/apperrors"
	"cms0/internal/menutree"
	"cms0/internal/models"
	"cms0/internal/services"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

const menuEntity = "menus"

// MenuHandler exposes menus and their item trees.
type MenuHandler struct {
	menus *services.MenuService
}

func NewMenuHandler(menus *services.MenuService) *MenuHandler {
	return &MenuHandler{menus: menus}
}

// ReconcileRequest reports a finished drag together with the list as rendered after it.
type ReconcileRequest struct {
	menutree.Drop
	Observed []menutree.Observed `json:"observed"`
}

// decodeLinks unwraps links sent as a JSON string. A missing field yields nil.
func decodeLinks(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperrors.Invalid("links", "must be a JSON array or a string holding one")
	}
	if s == "" {
		return []byte("[]"), nil
	}
	return []byte(s), nil
}

func pinned(c echo.Context) (affiliate.Scope, error) {
	id, err := middleware.GetScope(c).Single()
	if err != nil {
		return affiliate.Scope{}, err
	}
	return affiliate.SingleScope(id), nil
}

// checkStatus requires menus.publish to publish and menus.unpublish to take a menu down.
func checkStatus(c echo.Context, before, after models.ContentStatus) error {
	perms := middleware.GetPermissions(c)
	switch {
	case after == models.ContentStatusPublished && before != models.ContentStatusPublished:
		if name := models.PermissionName(menuEntity, models.ActionPublish); !perms.Has(name) {
			return apperrors.Forbidden(name)
		}
	case before == models.ContentStatusPublished && after != "" && after != models.ContentStatusPublished:
		if name := models.PermissionName(menuEntity, models.ActionUnpublish); !perms.Has(name) {
			return apperrors.Forbidden(name)
		}
	}
	return nil
}

func parsePath(c echo.Context, name, field string) (menutree.Path, error) {
	p, err := menutree.ParsePath(c.Param(name))
	if err != nil {
		return nil, apperrors.Invalid(field, err.Error())
	}
	return p, nil
}

// List returns the menus of every affiliate in scope with their item counts.
// @Summary List menus
// @Tags menus
// @Produce json
// @Success 200 {array} models.Menu
// @Router /api/admin/menus [get]
func (h *MenuHandler) List(c echo.Context) error {
	params := controllers.ListParams(c)
	menus, total, err := h.menus.List(c.Request().Context(), middleware.GetScope(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    menus,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	})
}

// @Summary Get a menu
// @Tags menus
// @Produce json
// @Param id path string true "Menu ID"
// @Success 200 {object} models.Menu
// @Router /api/admin/menus/{id} [get]
func (h *MenuHandler) Get(c echo.Context) error {
	scope, err := pinned(c)
	if err != nil {
		return err
	}
	menu, err := h.menus.Get(c.Request().Context(), scope, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, menu)
}

// @Summary Create a menu
// @Tags menus
// @Accept json
// @Produce json
// @Param request body validator.MenuRequest true "Menu"
// @Success 201 {object} models.Menu
// @Router /api/admin/menus [post]
func (h *MenuHandler) Create(c echo.Context) error {
	scope, err := pinned(c)
	if err != nil {
		return err
	}
	var req validator.MenuRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	status := models.ContentStatus(req.Status)
	if err := checkStatus(c, models.ContentStatusDraft, status); err != nil {
		return err
	}
	links, err := decodeLinks(req.Links)
	if err != nil {
		return err
	}

	menu := &models.Menu{Title: req.Title, Platform: req.Platform, Status: status, Links: datatypes.JSON(links)}
	if err := h.menus.Create(c.Request().Context(), scope, menu); err != nil {
		return err
	}
	return respond(c, http.StatusCreated, menu)
}

// Update changes the menu's fields. When links is present the whole tree is validated,
// normalized and replaced.
// @Summary Update a menu
// @Tags menus
// @Accept json
// @Produce json
// @Param id path string true "Menu ID"
// @Param request body validator.MenuUpdateRequest true "Changes"
// @Success 200 {object} models.Menu
// @Failure 400 {object} map[string]interface{} "Malformed links"
// @Router /api/admin/menus/{id} [put]
func (h *MenuHandler) Update(c echo.Context) error {
	scope, err := pinned(c)
	if err != nil {
		return err
	}
	var req validator.MenuUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	current, err := h.menus.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	status := models.ContentStatus(req.Status)
	if err := checkStatus(c, current.Status, status); err != nil {
		return err
	}
	links, err := decodeLinks(req.Links)
	if err != nil {
		return err
	}

	patch := &models.Menu{Title: req.Title, Platform: req.Platform, Status: status}
	if links != nil {
		patch.Links = datatypes.JSON(links)
	}
	if req.Title == "" && req.Platform == "" && status == "" && links != nil {
		menu, err := h.menus.Replace(ctx, scope, id, links)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, menu)
	}
	menu, err := h.menus.Update(ctx, scope, id, patch)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, menu)
}

// @Summary Delete a menu
// @Tags menus
// @Param id path string true "Menu ID"
// @Success 204
// @Router /api/admin/menus/{id} [delete]
func (h *MenuHandler) Delete(c echo.Context) error {
	scope, err := pinned(c)
	if err != nil {
		return err
	}
	if err := h.menus.Delete(c.Request().Context(), scope, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// edit runs fn in an editor over the stored tree and responds with the menu and whatever
// fn produced. The menu is only written when fn reports a change.
func (h *MenuHandler) edit(c echo.Context, code int, fn func(*menutree.Editor) (interface{}, bool, error)) error {
	scope, err := pinned(c)
	if err != nil {
		return err
	}
	var result interface{}
	menu, err := h.menus.Edit(c.Request().Context(), scope, c.Param("id"), func(e *menutree.Editor) (bool, error) {
		var (
			changed bool
			err     error
		)
		result, changed, err = fn(e)
		return changed, err
	})
	if err != nil {
		return err
	}
	return respond(c, code, map[string]interface{}{"menu": menu, "result": result})
}

// AddItem appends an item under ?parent (dotted path, empty for the root list).
// @Summary Add a menu item
// @Tags menus
// @Accept json
// @Produce json
// @Param id path string true "Menu ID"
// @Param request body validator.MenuItemRequest true "Item"
// @Success 201 {object} map[string]interface{}
// @Router /api/admin/menus/{id}/items [post]
func (h *MenuHandler) AddItem(c echo.Context) error {
	var req validator.MenuItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	parent, err := menutree.ParsePath(req.Parent)
	if err != nil {
		return apperrors.Invalid("parent", err.Error())
	}
	node := menutree.Node{
		Title:       req.Title,
		URL:         req.URL,
		Target:      req.Target,
		Icon:        req.Icon,
		Description: req.Description,
	}
	return h.edit(c, http.StatusCreated, func(e *menutree.Editor) (interface{}, bool, error) {
		added, err := e.AddNode(parent, node)
		return added, err == nil, err
	})
}

// @Summary Update a menu item
// @Tags menus
// @Accept json
// @Produce json
// @Param id path string true "Menu ID"
// @Param path path string true "Dotted item path, e.g. 0.2"
// @Param request body validator.MenuItemPatchRequest true "Changes"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/menus/{id}/items/{path} [patch]
func (h *MenuHandler) UpdateItem(c echo.Context) error {
	p, err := parsePath(c, "path", "path")
	if err != nil {
		return err
	}
	var req validator.MenuItemPatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	patch := menutree.NodePatch{
		Title:       req.Title,
		URL:         req.URL,
		Target:      req.Target,
		Icon:        req.Icon,
		Description: req.Description,
	}
	return h.edit(c, http.StatusOK, func(e *menutree.Editor) (interface{}, bool, error) {
		updated, err := e.UpdateNode(p, patch)
		return updated, err == nil, err
	})
}

// RemoveItem deletes an item with its whole subtree.
// @Summary Remove a menu item
// @Tags menus
// @Param id path string true "Menu ID"
// @Param path path string true "Dotted item path"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/menus/{id}/items/{path} [delete]
func (h *MenuHandler) RemoveItem(c echo.Context) error {
	p, err := parsePath(c, "path", "path")
	if err != nil {
		return err
	}
	return h.edit(c, http.StatusOK, func(e *menutree.Editor) (interface{}, bool, error) {
		removed, err := e.RemoveNode(p)
		return removed, err == nil, err
	})
}

// Move relocates an item and its subtree.
// @Summary Move a menu item
// @Tags menus
// @Accept json
// @Produce json
// @Param id path string true "Menu ID"
// @Param request body validator.MoveRequest true "Source and destination paths"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/menus/{id}/move [post]
func (h *MenuHandler) Move(c echo.Context) error {
	var req validator.MoveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	src, err := menutree.ParsePath(req.Source)
	if err != nil {
		return apperrors.Invalid("source", err.Error())
	}
	dst, err := menutree.ParsePath(req.Destination)
	if err != nil {
		return apperrors.Invalid("destination", err.Error())
	}
	return h.edit(c, http.StatusOK, func(e *menutree.Editor) (interface{}, bool, error) {
		moved, err := e.Move(src, dst)
		return map[string]bool{"moved": moved}, moved, err
	})
}

// Reconcile rebuilds the tree from the list as a client rendered it after a drag.
// @Summary Reconcile a drag and drop
// @Tags menus
// @Accept json
// @Produce json
// @Param id path string true "Menu ID"
// @Param request body ReconcileRequest true "Drop and observed order"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/menus/{id}/reconcile [post]
func (h *MenuHandler) Reconcile(c echo.Context) error {
	var req ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return h.edit(c, http.StatusOK, func(e *menutree.Editor) (interface{}, bool, error) {
		if err := e.BeginDrag(req.From.Child(req.FromIndex)); err != nil {
			return nil, false, err
		}
		changed, err := e.Reconcile(req.Drop, req.Observed)
		return map[string]bool{"changed": changed}, changed, err
	})
}
