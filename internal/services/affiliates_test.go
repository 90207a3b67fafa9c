package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAffiliateRepo struct {
	affiliates  map[string]*models.Affiliate
	members     map[string]map[string]bool
	delegations map[[2]string]*models.AffiliateMember
}

var _ AffiliateRepository = (*fakeAffiliateRepo)(nil)

func newFakeAffiliateRepo() *fakeAffiliateRepo {
	return &fakeAffiliateRepo{
		affiliates:  make(map[string]*models.Affiliate),
		members:     make(map[string]map[string]bool),
		delegations: make(map[[2]string]*models.AffiliateMember),
	}
}

func (r *fakeAffiliateRepo) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	a, ok := r.affiliates[id]
	if !ok {
		return nil, apperrors.NotFound("affiliate")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAffiliateRepo) IsMember(ctx context.Context, userID, affiliateID string) (bool, error) {
	return r.members[affiliateID][userID], nil
}

func (r *fakeAffiliateRepo) MemberAffiliateIDs(ctx context.Context, userID string) ([]string, error) {
	var out []string
	for aff, users := range r.members {
		if users[userID] {
			out = append(out, aff)
		}
	}
	return out, nil
}

func (r *fakeAffiliateRepo) ListAffiliates(ctx context.Context, ids []string) ([]models.Affiliate, error) {
	var out []models.Affiliate
	for _, a := range r.affiliates {
		if ids == nil || contains(ids, a.ID) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r *fakeAffiliateRepo) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	a.ID = uuid.NewString()
	cp := *a
	r.affiliates[a.ID] = &cp
	return nil
}

func (r *fakeAffiliateRepo) UpdateAffiliate(ctx context.Context, a *models.Affiliate) error {
	cp := *a
	r.affiliates[a.ID] = &cp
	return nil
}

func (r *fakeAffiliateRepo) DeleteAffiliate(ctx context.Context, id string) error {
	delete(r.affiliates, id)
	return nil
}

func (r *fakeAffiliateRepo) CountMembers(ctx context.Context, affiliateID string) (int64, error) {
	return int64(len(r.members[affiliateID])), nil
}

func (r *fakeAffiliateRepo) AddMember(ctx context.Context, userID, affiliateID string) error {
	if r.members[affiliateID] == nil {
		r.members[affiliateID] = make(map[string]bool)
	}
	r.members[affiliateID][userID] = true
	return nil
}

func (r *fakeAffiliateRepo) RemoveMember(ctx context.Context, userID, affiliateID string) error {
	delete(r.members[affiliateID], userID)
	return nil
}

func (r *fakeAffiliateRepo) SaveDelegation(ctx context.Context, d *models.AffiliateMember) error {
	cp := *d
	r.delegations[[2]string{d.FromAffiliateID, d.ToAffiliateID}] = &cp
	return nil
}

func (r *fakeAffiliateRepo) DeleteDelegation(ctx context.Context, fromID, toID string) (bool, error) {
	key := [2]string{fromID, toID}
	_, ok := r.delegations[key]
	delete(r.delegations, key)
	return ok, nil
}

func (r *fakeAffiliateRepo) ListDelegations(ctx context.Context, affiliateID string) ([]models.AffiliateMember, error) {
	var out []models.AffiliateMember
	for key, d := range r.delegations {
		if key[0] == affiliateID || key[1] == affiliateID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func TestCreateAffiliateAddsCreator(t *testing.T) {
	repo := newFakeAffiliateRepo()
	svc := NewAffiliateService(repo)

	a, err := svc.Create(context.Background(), "user-1", AffiliateInput{Name: "North", Slug: "North-Desk"})
	require.NoError(t, err)
	assert.Equal(t, "north-desk", a.Slug)
	ok, _ := repo.IsMember(context.Background(), "user-1", a.ID)
	assert.True(t, ok)

	_, err = svc.Create(context.Background(), "user-1", AffiliateInput{Name: "Bad", Slug: "no spaces"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestGetByIDsHonoursScope(t *testing.T) {
	repo := newFakeAffiliateRepo()
	svc := NewAffiliateService(repo)
	a, _ := svc.Create(context.Background(), "", AffiliateInput{Name: "A", Slug: "a"})
	b, _ := svc.Create(context.Background(), "", AffiliateInput{Name: "B", Slug: "b"})

	got, err := svc.GetByIDs(context.Background(), affiliate.GlobalScope([]string{a.ID}), []string{a.ID, b.ID, "unknown"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	all, err := svc.List(context.Background(), affiliate.GlobalScope(nil))
	require.NoError(t, err)
	assert.Empty(t, all, "an empty membership set sees nothing")

	_, err = svc.Get(context.Background(), affiliate.SingleScope(a.ID), b.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDeleteAffiliateWithMembers(t *testing.T) {
	repo := newFakeAffiliateRepo()
	svc := NewAffiliateService(repo)
	a, _ := svc.Create(context.Background(), "user-1", AffiliateInput{Name: "A", Slug: "a"})
	scope := affiliate.SingleScope(a.ID)

	err := svc.Delete(context.Background(), scope, a.ID)
	var conflict *apperrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), conflict.Dependents)

	require.NoError(t, svc.RemoveMember(context.Background(), scope, a.ID, "user-1"))
	require.NoError(t, svc.Delete(context.Background(), scope, a.ID))
}

func TestDelegationDoesNotGrantMembership(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAffiliateRepo()
	svc := NewAffiliateService(repo)
	a, _ := svc.Create(ctx, "user-1", AffiliateInput{Name: "A", Slug: "a"})
	b, _ := svc.Create(ctx, "user-2", AffiliateInput{Name: "B", Slug: "b"})
	scope := affiliate.SingleScope(a.ID)

	d, err := svc.Grant(ctx, scope, a.ID, DelegationInput{ToAffiliateID: b.ID, CanUse: true, CanCopy: true})
	require.NoError(t, err)
	assert.True(t, d.CanUse)
	assert.False(t, d.CanAssign)

	ids, _ := repo.MemberAffiliateIDs(ctx, "user-2")
	assert.Equal(t, []string{b.ID}, ids)

	list, err := svc.ListDelegations(ctx, scope, a.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Grant(ctx, scope, a.ID, DelegationInput{ToAffiliateID: a.ID})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	require.NoError(t, svc.Revoke(ctx, scope, a.ID, b.ID))
	assert.True(t, errors.Is(svc.Revoke(ctx, scope, a.ID, b.ID), apperrors.ErrNotFound))
}

func TestAffiliateSettingsMerge(t *testing.T) {
	repo := newFakeAffiliateRepo()
	svc := NewAffiliateService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, "", AffiliateInput{Name: "North", Slug: "north", Settings: []byte(`{"theme":"dark","locale":"en"}`)})
	require.NoError(t, err)
	scope := affiliate.SingleScope(a.ID)

	a, err = svc.Update(ctx, scope, a.ID, AffiliateInput{Settings: []byte(`{"locale":"","currency":"EUR"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","currency":"EUR"}`, string(a.Settings))

	_, err = svc.Update(ctx, scope, a.ID, AffiliateInput{Settings: []byte(`{"nested":{"x":1}}`)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Create(ctx, "", AffiliateInput{Name: "South", Slug: "south", Settings: []byte(`[1,2]`)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
