package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cms0/internal/api/middleware"
	"cms0/internal/apperrors"
	"cms0/internal/hierarchy"
	"cms0/internal/metrics"
	"cms0/internal/services"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// TeamHandler serves the "my team" views of the created_by forest.
type TeamHandler struct {
	team    *services.TeamService
	roles   RolePermissions
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewTeamHandler(team *services.TeamService, roles RolePermissions, m *metrics.Metrics) *TeamHandler {
	return &TeamHandler{team: team, roles: roles, metrics: m, log: logger.New("TeamHandler")}
}

// loadLevel accepts both ?loadLevel= and ?level=.
func loadLevel(c echo.Context) string {
	if level := c.QueryParam("loadLevel"); level != "" {
		return level
	}
	return c.QueryParam("level")
}

// MyTeam returns the caller's superior, siblings and direct subordinates.
// @Summary My team
// @Tags users
// @Produce json
// @Param loadLevel query string false "Only 'direct' is supported"
// @Success 200 {object} hierarchy.Team
// @Failure 400 {object} map[string]interface{} "Unsupported load level"
// @Router /api/admin/users/my-team [get]
func (h *TeamHandler) MyTeam(c echo.Context) error {
	team, err := h.team.LoadTeam(c.Request().Context(), middleware.GetUserID(c), loadLevel(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, team)
}

// Subordinates returns the direct subordinates of :id.
// @Summary Subordinates of a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Param level query string false "Only 'direct' is supported"
// @Success 200 {array} hierarchy.Member
// @Router /api/admin/users/{id}/subordinates [get]
func (h *TeamHandler) Subordinates(c echo.Context) error {
	members, err := h.team.LoadSubordinates(c.Request().Context(), c.Param("id"), loadLevel(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, members)
}

// Tree builds the caller's team view and expands, in order, every id listed in ?expand=.
// A parent must come before its children in the list.
// @Summary Team tree
// @Tags users
// @Produce json
// @Param expand query string false "Comma separated user ids to expand"
// @Success 200 {object} hierarchy.Snapshot
// @Router /api/admin/users/my-team/tree [get]
func (h *TeamHandler) Tree(c echo.Context) error {
	ctx := c.Request().Context()
	team, err := h.team.LoadTeam(ctx, middleware.GetUserID(c), loadLevel(c))
	if err != nil {
		return err
	}

	view := hierarchy.NewView(*team, hierarchy.LoaderFunc(h.team.LoadSubordinates), h.metrics)
	for _, id := range strings.Split(c.QueryParam("expand"), ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if _, err := view.Expand(ctx, id); err != nil {
			switch {
			case errors.Is(err, hierarchy.ErrUnknownNode):
				return apperrors.NotFound("team member " + id)
			case errors.Is(err, hierarchy.ErrNotExpandable):
				return apperrors.Invalid("expand", "user "+id+" cannot be expanded")
			default:
				// The failure is recorded on the node and shown in the snapshot.
				h.log.Warn("Failed to expand %s: %v", id, err)
			}
		}
	}
	return respond(c, http.StatusOK, view.Snapshot())
}

// CreateUser creates a user whose superior is the caller. Memberships default to the
// pinned affiliate and may only name affiliates the caller can see. A role can be given
// only when the caller holds every permission of it, or holds roles.update.
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body services.UserInput true "User"
// @Success 201 {object} models.User
// @Router /api/admin/users [post]
func (h *TeamHandler) CreateUser(c echo.Context) error {
	var req services.UserInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	scope := middleware.GetScope(c)
	if len(req.AffiliateIDs) == 0 {
		if id, err := scope.Single(); err == nil {
			req.AffiliateIDs = []string{id}
		}
	}
	for _, id := range req.AffiliateIDs {
		if !scope.Contains(id) {
			return apperrors.Forbidden("cannot add users to affiliate " + id)
		}
	}
	if err := h.canAssignRole(c, req.RoleID); err != nil {
		return err
	}

	user, err := h.team.CreateUser(c.Request().Context(), middleware.GetUserID(c), req)
	if err != nil {
		return err
	}
	h.log.Info("User %s created by %s", user.Email, middleware.GetUserID(c))
	return respond(c, http.StatusCreated, user)
}

func (h *TeamHandler) canAssignRole(c echo.Context, roleID string) error {
	caller := middleware.GetPermissions(c)
	if roleID == "" || caller.Has("roles.update") {
		return nil
	}
	if h.roles == nil {
		return apperrors.Forbidden("roles.update")
	}
	granted, err := h.roles.PermissionsForRole(c.Request().Context(), roleID)
	if err != nil {
		return err
	}
	for _, name := range granted.Names() {
		if !caller.Has(name) {
			h.metrics.PermissionDenied(name)
			return apperrors.Forbidden("role " + roleID + " grants " + name)
		}
	}
	return nil
}
