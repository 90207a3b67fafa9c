package handlers

import (
	"net/http"
	"strings"

	"cms0/internal/api/middleware"
	"cms0/internal/api/validator"
	"cms0/internal/services"

	"github.com/labstack/echo/v4"
)

// AffiliateHandler manages tenants, their members and capability delegations.
type AffiliateHandler struct {
	affiliates *services.AffiliateService
}

func NewAffiliateHandler(affiliates *services.AffiliateService) *AffiliateHandler {
	return &AffiliateHandler{affiliates: affiliates}
}

// List returns the affiliates in scope. With ?ids=a,b,c it is a bulk lookup that skips
// ids the caller cannot see.
// @Summary List affiliates
// @Tags affiliates
// @Produce json
// @Param ids query string false "Comma separated affiliate ids"
// @Success 200 {array} models.Affiliate
// @Router /api/admin/affiliates [get]
func (h *AffiliateHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	scope := middleware.GetScope(c)

	if raw := c.QueryParam("ids"); raw != "" {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		affiliates, err := h.affiliates.GetByIDs(ctx, scope, ids)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, affiliates)
	}

	affiliates, err := h.affiliates.List(ctx, scope)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, affiliates)
}

// @Summary Get an affiliate
// @Tags affiliates
// @Produce json
// @Param id path string true "Affiliate ID"
// @Success 200 {object} models.Affiliate
// @Router /api/admin/affiliates/{id} [get]
func (h *AffiliateHandler) Get(c echo.Context) error {
	a, err := h.affiliates.Get(c.Request().Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, a)
}

// Create makes an affiliate with the caller as its first member.
// @Summary Create an affiliate
// @Tags affiliates
// @Accept json
// @Produce json
// @Param request body services.AffiliateInput true "Affiliate"
// @Success 201 {object} models.Affiliate
// @Router /api/admin/affiliates [post]
func (h *AffiliateHandler) Create(c echo.Context) error {
	var req services.AffiliateInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	a, err := h.affiliates.Create(c.Request().Context(), middleware.GetUserID(c), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, a)
}

// @Summary Update an affiliate
// @Tags affiliates
// @Accept json
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param request body services.AffiliateInput true "Affiliate"
// @Success 200 {object} models.Affiliate
// @Router /api/admin/affiliates/{id} [put]
func (h *AffiliateHandler) Update(c echo.Context) error {
	var req services.AffiliateInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	a, err := h.affiliates.Update(c.Request().Context(), middleware.GetScope(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, a)
}

// @Summary Delete an affiliate
// @Tags affiliates
// @Param id path string true "Affiliate ID"
// @Success 204
// @Failure 409 {object} map[string]interface{} "Affiliate still has members"
// @Router /api/admin/affiliates/{id} [delete]
func (h *AffiliateHandler) Delete(c echo.Context) error {
	if err := h.affiliates.Delete(c.Request().Context(), middleware.GetScope(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary Add a member
// @Tags affiliates
// @Accept json
// @Param id path string true "Affiliate ID"
// @Param request body validator.MemberRequest true "User"
// @Success 204
// @Router /api/admin/affiliates/{id}/members [post]
func (h *AffiliateHandler) AddMember(c echo.Context) error {
	var req validator.MemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.affiliates.AddMember(c.Request().Context(), middleware.GetScope(c), c.Param("id"), req.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary Remove a member
// @Tags affiliates
// @Param id path string true "Affiliate ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /api/admin/affiliates/{id}/members/{userId} [delete]
func (h *AffiliateHandler) RemoveMember(c echo.Context) error {
	if err := h.affiliates.RemoveMember(c.Request().Context(), middleware.GetScope(c), c.Param("id"), c.Param("userId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary List delegations granted by an affiliate
// @Tags affiliates
// @Produce json
// @Param id path string true "Affiliate ID"
// @Success 200 {array} models.AffiliateMember
// @Router /api/admin/affiliates/{id}/delegations [get]
func (h *AffiliateHandler) ListDelegations(c echo.Context) error {
	delegations, err := h.affiliates.ListDelegations(c.Request().Context(), middleware.GetScope(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, delegations)
}

// Grant creates or replaces what :id lets another affiliate do with its content.
// @Summary Grant a delegation
// @Tags affiliates
// @Accept json
// @Produce json
// @Param id path string true "Granting affiliate ID"
// @Param request body services.DelegationInput true "Capabilities"
// @Success 200 {object} models.AffiliateMember
// @Router /api/admin/affiliates/{id}/delegations [put]
func (h *AffiliateHandler) Grant(c echo.Context) error {
	var req services.DelegationInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	d, err := h.affiliates.Grant(c.Request().Context(), middleware.GetScope(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, d)
}

// @Summary Revoke a delegation
// @Tags affiliates
// @Param id path string true "Granting affiliate ID"
// @Param toId path string true "Receiving affiliate ID"
// @Success 204
// @Router /api/admin/affiliates/{id}/delegations/{toId} [delete]
func (h *AffiliateHandler) Revoke(c echo.Context) error {
	if err := h.affiliates.Revoke(c.Request().Context(), middleware.GetScope(c), c.Param("id"), c.Param("toId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
