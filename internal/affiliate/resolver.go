package affiliate

import (
	"context"
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/metrics"
	"cms0/internal/models"
	console "cms0/internal/utils/logger"
)

var log = console.New("AFFILIATE")

// Store is the persistence the resolver needs.
type Store interface {
	GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error)
	IsMember(ctx context.Context, userID, affiliateID string) (bool, error)
	MemberAffiliateIDs(ctx context.Context, userID string) ([]string, error)
}

// Input carries the raw affiliate hints of one request.
type Input struct {
	SessionAffiliateID string
	QueryAffiliateID   string
	HeaderAffiliateID  string
	UserID             string
	Global             bool
}

// Candidate picks the affiliate hint by priority: session, then query, then header.
func (in Input) Candidate() string {
	for _, id := range []string{in.SessionAffiliateID, in.QueryAffiliateID, in.HeaderAffiliateID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

type Resolver struct {
	store   Store
	metrics *metrics.Metrics
}

func NewResolver(store Store, m *metrics.Metrics) *Resolver {
	return &Resolver{store: store, metrics: m}
}

// Resolve computes the effective Scope. An explicit global request or a missing candidate
// yields the union of the user's memberships; otherwise the candidate must exist and,
// when a user is known, the user must be a member of it.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Scope, error) {
	candidate := in.Candidate()

	if in.Global || candidate == "" {
		scope, err := r.union(ctx, in.UserID)
		r.observe(scope, err)
		return scope, err
	}

	scope, err := r.single(ctx, candidate, in.UserID)
	r.observe(scope, err)
	return scope, err
}

func (r *Resolver) single(ctx context.Context, affiliateID, userID string) (Scope, error) {
	aff, err := r.store.GetAffiliate(ctx, affiliateID)
	if err != nil {
		return Scope{}, err
	}
	if aff == nil {
		return Scope{}, apperrors.NotFound("affiliate")
	}

	if userID != "" {
		ok, err := r.store.IsMember(ctx, userID, aff.ID)
		if err != nil {
			return Scope{}, log.Error("Failed to check affiliate membership", err)
		}
		if !ok {
			return Scope{}, apperrors.Forbidden("not a member of affiliate " + aff.Slug)
		}
	}
	return SingleScope(aff.ID), nil
}

func (r *Resolver) union(ctx context.Context, userID string) (Scope, error) {
	if userID == "" {
		return GlobalScope(nil), nil
	}
	ids, err := r.store.MemberAffiliateIDs(ctx, userID)
	if err != nil {
		return Scope{}, log.Error("Failed to list affiliate memberships", err)
	}
	return GlobalScope(ids), nil
}

func (r *Resolver) observe(scope Scope, err error) {
	if err != nil {
		r.metrics.ScopeResolved("error")
		return
	}
	r.metrics.ScopeResolved(scope.Mode())
}
