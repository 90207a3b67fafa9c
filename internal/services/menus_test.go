package services

import (
	"context"
	"errors"
	"testing"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/events"
	"cms0/internal/menutree"
	"cms0/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var _ BaseService[models.Menu] = (*fakeMenus)(nil)

const sampleLinks = `[
  {"id":"item-a","title":"Home","url":"/","children":[]},
  {"title":"News","url":"/news","children":[{"title":"Local","url":"/news/local"}]}
]`

func newMenuFixture(t *testing.T) (*MenuService, *fakeMenus, *models.Menu, affiliate.Scope) {
	t.Helper()
	store := newFakeMenus()
	svc := NewMenuService(store, nil)
	scope := affiliate.SingleScope("aff-1")
	m := &models.Menu{Title: "Main", Links: datatypes.JSON(sampleLinks)}
	require.NoError(t, svc.Create(context.Background(), scope, m))
	return svc, store, m, scope
}

func TestCreateMenuNormalizesLinks(t *testing.T) {
	_, _, m, _ := newMenuFixture(t)

	assert.Equal(t, "aff-1", m.AffiliateID)
	assert.Equal(t, models.PlatformWeb, m.Platform)
	assert.Equal(t, 3, m.TotalItems)

	tree, err := menutree.Parse(m.Links)
	require.NoError(t, err)
	assert.Equal(t, "item-a", tree[0].ID)
	assert.NotEmpty(t, tree[1].ID)
	assert.NotEmpty(t, tree[1].Children[0].ID)
}

func TestCreateMenuRequiresSingleAffiliate(t *testing.T) {
	svc := NewMenuService(newFakeMenus(), nil)
	err := svc.Create(context.Background(), affiliate.GlobalScope([]string{"a", "b"}), &models.Menu{Title: "Main"})
	assert.True(t, errors.Is(err, apperrors.ErrAmbiguousAffiliate))
}

func TestCreateMenuRejectsMalformedLinks(t *testing.T) {
	svc := NewMenuService(newFakeMenus(), nil)
	err := svc.Create(context.Background(), affiliate.SingleScope("aff-1"), &models.Menu{Title: "Main", Links: datatypes.JSON(`{"broken"`)})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	err = svc.Create(context.Background(), affiliate.SingleScope("aff-1"), &models.Menu{Title: "Main", Platform: "Fax"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestListMenusCountsItems(t *testing.T) {
	svc, store, _, scope := newMenuFixture(t)
	store.menus["broken"] = &models.Menu{Title: "Zz broken", AffiliateID: "aff-1", Links: datatypes.JSON(`not json`)}
	store.menus["broken"].ID = "broken"
	store.menus["other"] = &models.Menu{Title: "Other", AffiliateID: "aff-2", Links: datatypes.JSON(`[]`)}

	menus, total, err := svc.List(context.Background(), scope, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 3, menus[0].TotalItems)
	assert.Equal(t, 0, menus[1].TotalItems, "malformed links degrade to an empty tree")
}

func TestEditMovesSubtreeAndSaves(t *testing.T) {
	svc, _, m, scope := newMenuFixture(t)

	saved, err := svc.Edit(context.Background(), scope, m.ID, func(e *menutree.Editor) (bool, error) {
		return e.Move(menutree.Path{1}, menutree.Path{0})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, saved.TotalItems)

	tree, err := menutree.Parse(saved.Links)
	require.NoError(t, err)
	assert.Equal(t, "News", tree[0].Title)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Local", tree[0].Children[0].Title)
	assert.Equal(t, "Home", tree[1].Title)
}

func TestEditFailureWritesNothing(t *testing.T) {
	svc, store, m, scope := newMenuFixture(t)
	before := string(store.menus[m.ID].Links)

	_, err := svc.Edit(context.Background(), scope, m.ID, func(e *menutree.Editor) (bool, error) {
		if _, err := e.RemoveNode(menutree.Path{0}); err != nil {
			return false, err
		}
		return true, apperrors.Invalid("links", "rejected")
	})
	require.Error(t, err)
	assert.Equal(t, before, string(store.menus[m.ID].Links))

	store.failOn = errors.New("write failed")
	_, err = svc.Edit(context.Background(), scope, m.ID, func(e *menutree.Editor) (bool, error) {
		_, err := e.RemoveNode(menutree.Path{0})
		return err == nil, err
	})
	require.Error(t, err)
	assert.Equal(t, before, string(store.menus[m.ID].Links))
}

func TestEditNoOpMoveWritesNothing(t *testing.T) {
	store := newFakeMenus()
	svc := NewMenuService(store, nil)
	scope := affiliate.SingleScope("aff-1")
	store.menus["legacy"] = &models.Menu{Title: "Legacy", AffiliateID: "aff-1", Links: datatypes.JSON(`[{"title":"A"},{"title":"B"}]`)}
	store.menus["legacy"].ID = "legacy"
	before := string(store.menus["legacy"].Links)

	got, err := svc.Edit(context.Background(), scope, "legacy", func(e *menutree.Editor) (bool, error) {
		return e.Move(menutree.Path{0}, menutree.Path{0})
	})
	require.NoError(t, err)
	assert.Equal(t, before, string(store.menus["legacy"].Links), "ids must not be persisted by a no-op")
	assert.Equal(t, before, string(got.Links))
	assert.Equal(t, 2, got.TotalItems)

	store.failOn = errors.New("write attempted")
	_, err = svc.Edit(context.Background(), scope, "legacy", func(e *menutree.Editor) (bool, error) {
		return e.Reconcile(menutree.Drop{From: menutree.Path{}, FromIndex: 1, To: menutree.Path{}, ToIndex: 1}, nil)
	})
	assert.NoError(t, err)
}

func TestEditEmitsReorderedAfterSave(t *testing.T) {
	svc, _, m, scope := newMenuFixture(t)
	reordered := make(chan string, 8)
	events.On(events.MenusReordered, func(data interface{}) {
		if menu, ok := data.(*models.Menu); ok {
			select {
			case reordered <- menu.ID:
			default:
			}
		}
	})

	_, err := svc.Edit(context.Background(), scope, m.ID, func(e *menutree.Editor) (bool, error) {
		_, err := e.UpdateNode(menutree.Path{0}, menutree.NodePatch{Icon: ptr("house")})
		return err == nil, err
	})
	require.NoError(t, err)
	events.Wait()
	assert.Empty(t, reordered, "attribute edits are not reorders")

	_, err = svc.Edit(context.Background(), scope, m.ID, func(e *menutree.Editor) (bool, error) {
		return e.Move(menutree.Path{1}, menutree.Path{0})
	})
	require.NoError(t, err)
	events.Wait()
	require.Len(t, reordered, 1)
	assert.Equal(t, m.ID, <-reordered)
}

func TestReplaceIsScoped(t *testing.T) {
	svc, _, m, _ := newMenuFixture(t)

	_, err := svc.Replace(context.Background(), affiliate.SingleScope("aff-2"), m.ID, []byte(`[]`))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	got, err := svc.Replace(context.Background(), affiliate.SingleScope("aff-1"), m.ID, []byte(`[{"title":"Only"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalItems)
}

func ptr(s string) *string { return &s }
