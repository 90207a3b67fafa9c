package affiliate

import (
	"context"
	"errors"
	"testing"

	"cms0/internal/apperrors"
	"cms0/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	affiliates  map[string]*models.Affiliate
	memberships map[string][]string
	err         error
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{affiliates: map[string]*models.Affiliate{}, memberships: map[string][]string{}}
	for _, id := range []string{"1", "2", "3"} {
		s.affiliates[id] = &models.Affiliate{Base: models.Base{ID: id}, Name: "Affiliate " + id, Slug: "aff-" + id}
	}
	s.memberships["alice"] = []string{"1", "3"}
	s.memberships["bob"] = nil
	return s
}

func (s *memoryStore) GetAffiliate(_ context.Context, id string) (*models.Affiliate, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.affiliates[id]
	if !ok {
		return nil, apperrors.NotFound("affiliate")
	}
	return a, nil
}

func (s *memoryStore) IsMember(_ context.Context, userID, affiliateID string) (bool, error) {
	for _, id := range s.memberships[userID] {
		if id == affiliateID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) MemberAffiliateIDs(_ context.Context, userID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[userID], nil
}

func TestCandidatePriority(t *testing.T) {
	assert.Equal(t, "s", Input{SessionAffiliateID: "s", QueryAffiliateID: "q", HeaderAffiliateID: "h"}.Candidate())
	assert.Equal(t, "q", Input{QueryAffiliateID: "q", HeaderAffiliateID: "h"}.Candidate())
	assert.Equal(t, "h", Input{QueryAffiliateID: "  ", HeaderAffiliateID: "h"}.Candidate())
	assert.Equal(t, "", Input{}.Candidate())
}

func TestResolveSingleMember(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{QueryAffiliateID: "3", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, SingleScope("3"), scope)
}

func TestResolveSessionBeatsQuery(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{SessionAffiliateID: "1", QueryAffiliateID: "3", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "1", scope.AffiliateID)
}

func TestResolveUnknownAffiliate(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	_, err := r.Resolve(context.Background(), Input{HeaderAffiliateID: "99", UserID: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveNonMemberIsForbidden(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	_, err := r.Resolve(context.Background(), Input{QueryAffiliateID: "2", UserID: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestResolveWithoutIdentitySkipsMembership(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{QueryAffiliateID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "2", scope.AffiliateID)
}

func TestResolveGlobalUnion(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{QueryAffiliateID: "1", Global: true, UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, scope.Global)
	assert.Equal(t, []string{"1", "3"}, scope.AffiliateIDs)

	_, err = scope.Single()
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousAffiliate)
}

func TestResolveNoCandidateFallsBackToUnion(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, GlobalScope([]string{"1", "3"}), scope)
}

func TestResolveZeroMembershipsIsEmptyNotUnscoped(t *testing.T) {
	r := NewResolver(newMemoryStore(), nil)

	scope, err := r.Resolve(context.Background(), Input{UserID: "bob", Global: true})
	require.NoError(t, err)
	assert.True(t, scope.Global)
	assert.Empty(t, scope.IDs())
	assert.False(t, scope.Contains("1"))
}

func TestResolveStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("db down")
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Input{UserID: "alice"})
	assert.ErrorContains(t, err, "db down")
}
