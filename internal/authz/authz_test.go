package authz

import (
	"testing"

	"cms0/internal/apperrors"
	"cms0/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleWith(names ...string) *models.Role {
	role := &models.Role{Name: "editor"}
	for _, n := range names {
		role.Permissions = append(role.Permissions, models.Permission{Name: n})
	}
	return role
}

func TestHasPermissionIsFlatMembership(t *testing.T) {
	role := roleWith("stories.create", "stories.read")

	assert.True(t, HasPermission(role, "stories.create"))
	assert.True(t, HasPermission(role, "Stories.Read"))
	assert.False(t, HasPermission(role, "stories.delete"))
	assert.False(t, HasPermission(role, "stories"))
	assert.False(t, HasPermission(role, "stories.*"))
}

func TestHasPermissionWithoutRole(t *testing.T) {
	assert.False(t, HasPermission(nil, "stories.read"))
	assert.Empty(t, SetFromRole(nil))
}

func TestAssignThenUnassignRestoresCheck(t *testing.T) {
	role := roleWith("pages.read")
	require.False(t, HasPermission(role, "pages.publish"))

	role.Permissions = append(role.Permissions, models.Permission{Name: "pages.publish"})
	assert.True(t, HasPermission(role, "pages.publish"))

	role.Permissions = role.Permissions[:1]
	assert.False(t, HasPermission(role, "pages.publish"))
}

func TestDeletedPermissionsAreIgnored(t *testing.T) {
	role := roleWith("stories.read")
	role.Permissions = append(role.Permissions, models.Permission{Name: "stories.delete", Base: models.Base{IsDeleted: true}})

	assert.False(t, HasPermission(role, "stories.delete"))
	assert.False(t, SetFromRole(role).Has("stories.delete"))
}

func TestOwnVariantsAreDistinct(t *testing.T) {
	own := NewSet("stories.update_own")
	assert.False(t, own.Has("stories.update"))

	full := NewSet("stories.update")
	assert.False(t, full.Has("stories.update_own"))
}

func TestGrant(t *testing.T) {
	cases := []struct {
		name   string
		set    Set
		action models.PermissionAction
		want   Grant
	}{
		{"full update", NewSet("stories.update"), models.ActionUpdate, GrantAll},
		{"own update", NewSet("stories.update_own"), models.ActionUpdate, GrantOwn},
		{"full wins over own", NewSet("stories.delete", "stories.delete_own"), models.ActionDelete, GrantAll},
		{"nothing", NewSet("stories.read"), models.ActionDelete, GrantNone},
		{"create has no own variant", NewSet("stories.create_own"), models.ActionCreate, GrantNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.set.Grant("stories", tc.action))
		})
	}
}

func TestCanModify(t *testing.T) {
	own := NewSet("stories.update_own")
	assert.True(t, own.CanModify("stories", models.ActionUpdate, "u1", "u1"))
	assert.False(t, own.CanModify("stories", models.ActionUpdate, "u2", "u1"))
	assert.False(t, own.CanModify("stories", models.ActionUpdate, "", ""))

	full := NewSet("stories.update")
	assert.True(t, full.CanModify("stories", models.ActionUpdate, "u2", "u1"))

	assert.False(t, NewSet().CanModify("stories", models.ActionDelete, "u1", "u1"))
}

func TestSetHelpers(t *testing.T) {
	s := NewSet(" menus.read ", "menus.update", "")
	assert.Equal(t, []string{"menus.read", "menus.update"}, s.Names())
	assert.True(t, s.HasAny("menus.delete", "menus.update"))
	assert.False(t, s.HasAll("menus.read", "menus.delete"))
	assert.True(t, s.HasAll())
}

func TestParsePermissionName(t *testing.T) {
	entity, action, err := ParsePermissionName("Stories.Update_Own")
	require.NoError(t, err)
	assert.Equal(t, "stories", entity)
	assert.Equal(t, models.ActionUpdateOwn, action)

	_, _, err = ParsePermissionName("stories")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, _, err = ParsePermissionName("stories.fly")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
