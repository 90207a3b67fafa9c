// Package authz answers "may this role perform entity.action" questions.
//
// Permissions are flat dotted names ("stories.update_own"). A role grants exactly
// the permissions attached to it; there is no inheritance and no implicit super-user.
package authz

import (
	"sort"
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/models"
)

// Set is the permission names granted to one role.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// SetFromRole collects the permission names of role. A nil role yields an empty set.
func SetFromRole(role *models.Role) Set {
	if role == nil {
		return Set{}
	}
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		if p.IsDeleted {
			continue
		}
		names = append(names, p.Name)
	}
	return NewSet(names...)
}

func (s Set) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

func (s Set) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

func (s Set) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Names returns the permissions in lexical order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasPermission reports whether role holds the permission name. A user without a role holds nothing.
func HasPermission(role *models.Role, name string) bool {
	if role == nil {
		return false
	}
	name = strings.ToLower(name)
	for _, p := range role.Permissions {
		if !p.IsDeleted && p.Name == name {
			return true
		}
	}
	return false
}

// Grant is the reach of an update or delete permission.
type Grant int

const (
	GrantNone Grant = iota
	GrantOwn
	GrantAll
)

func (g Grant) String() string {
	switch g {
	case GrantAll:
		return "all"
	case GrantOwn:
		return "own"
	default:
		return "none"
	}
}

// ownVariant maps an action to its author-restricted counterpart.
var ownVariant = map[models.PermissionAction]models.PermissionAction{
	models.ActionUpdate: models.ActionUpdateOwn,
	models.ActionDelete: models.ActionDeleteOwn,
}

// Grant resolves how far s lets a caller perform action on entity. The unrestricted
// permission always wins over its *_own variant.
func (s Set) Grant(entity string, action models.PermissionAction) Grant {
	if s.Has(models.PermissionName(entity, action)) {
		return GrantAll
	}
	if own, ok := ownVariant[action]; ok && s.Has(models.PermissionName(entity, own)) {
		return GrantOwn
	}
	return GrantNone
}

// CanModify reports whether userID may apply action to a record of entity written by authorID.
func (s Set) CanModify(entity string, action models.PermissionAction, authorID, userID string) bool {
	switch s.Grant(entity, action) {
	case GrantAll:
		return true
	case GrantOwn:
		return authorID != "" && authorID == userID
	default:
		return false
	}
}

// ParsePermissionName splits "entity.action" and checks the action is known.
func ParsePermissionName(name string) (string, models.PermissionAction, error) {
	entity, action, ok := strings.Cut(strings.ToLower(strings.TrimSpace(name)), ".")
	if !ok || entity == "" || action == "" {
		return "", "", apperrors.Invalid("name", "must look like entity.action")
	}
	if !ValidAction(action) {
		return "", "", apperrors.Invalid("action", "unknown action "+action)
	}
	return entity, models.PermissionAction(action), nil
}

func ValidAction(action string) bool {
	return models.IsValidPermissionAction(models.PermissionAction(action))
}
