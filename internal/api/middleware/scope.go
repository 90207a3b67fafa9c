package middleware

import (
	"context"
	"strconv"

	"cms0/internal/affiliate"

	"github.com/labstack/echo/v4"
)

const (
	ContextScope    = "affiliateScope"
	AffiliateHeader = "x-affiliate-id"
)

// ScopeResolver turns request hints into an affiliate Scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, in affiliate.Input) (affiliate.Scope, error)
}

// AffiliateScope resolves the request's affiliate scope from, in order, the session,
// ?affiliate_id= and the x-affiliate-id header. ?global=true asks for every membership.
// It must run after the auth middleware.
func AffiliateScope(r ScopeResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			global, _ := strconv.ParseBool(c.QueryParam("global"))
			scope, err := r.Resolve(c.Request().Context(), affiliate.Input{
				SessionAffiliateID: GetSessionAffiliateID(c),
				QueryAffiliateID:   c.QueryParam("affiliate_id"),
				HeaderAffiliateID:  c.Request().Header.Get(AffiliateHeader),
				UserID:             GetUserID(c),
				Global:             global,
			})
			if err != nil {
				return err
			}
			c.Set(ContextScope, scope)
			return next(c)
		}
	}
}

// GetScope returns the resolved scope, or an empty scope that matches nothing.
func GetScope(c echo.Context) affiliate.Scope {
	if s, ok := c.Get(ContextScope).(affiliate.Scope); ok {
		return s
	}
	return affiliate.Scope{}
}
