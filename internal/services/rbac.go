package services

import (
	"context"
	"fmt"
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/authz"
	"cms0/internal/events"
	"cms0/internal/models"
	"cms0/internal/utils/logger"
)

// RoleInvalidator drops cached permission sets of roles.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, roleIDs ...string) error
}

// InvalidationQueue schedules a follow-up invalidation so a cache fill racing with a
// role change cannot pin stale permissions until the TTL expires.
type InvalidationQueue interface {
	EnqueueRoleInvalidation(ctx context.Context, roleIDs []string) error
}

type RBACService struct {
	repo        RBACRepository
	invalidator RoleInvalidator
	queue       InvalidationQueue
	logger      *logger.Logger
}

func NewRBACService(repo RBACRepository, invalidator RoleInvalidator, queue InvalidationQueue) *RBACService {
	return &RBACService{
		repo:        repo,
		invalidator: invalidator,
		queue:       queue,
		logger:      logger.New("RBAC"),
	}
}

type RoleInput struct {
	Name          string   `json:"name" validate:"required,min=2"`
	DisplayName   string   `json:"displayName"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,uuid"`
}

type PermissionInput struct {
	Entity string `json:"entity" validate:"required,entity_name"`
	Action string `json:"action" validate:"required,permission_action"`
}

func (s *RBACService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *RBACService) GetRole(ctx context.Context, id string) (*models.Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole creates the role and then attaches its permissions. The two steps are not
// atomic: a failure in the second leaves the role in place with the error returned.
func (s *RBACService) CreateRole(ctx context.Context, in RoleInput) (*models.Role, error) {
	name := strings.ToLower(strings.TrimSpace(in.Name))
	if name == "" {
		return nil, apperrors.Invalid("name", "is required")
	}
	role := &models.Role{Name: name, DisplayName: in.DisplayName}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	if len(in.PermissionIDs) > 0 {
		if err := s.SetRolePermissions(ctx, role.ID, in.PermissionIDs); err != nil {
			return role, err
		}
	}
	return s.repo.GetRole(ctx, role.ID)
}

// UpdateRole changes the display name and, when PermissionIDs is non-nil, the permission set.
func (s *RBACService) UpdateRole(ctx context.Context, id string, in RoleInput) (*models.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != "" {
		role.DisplayName = in.DisplayName
		if err := s.repo.UpdateRole(ctx, role); err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
	}
	if in.PermissionIDs != nil {
		if err := s.SetRolePermissions(ctx, id, in.PermissionIDs); err != nil {
			return nil, err
		}
	}
	return s.repo.GetRole(ctx, id)
}

// DeleteRole refuses system roles and roles still held by users.
func (s *RBACService) DeleteRole(ctx context.Context, id string) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return apperrors.Forbidden(fmt.Sprintf("role %q is a system role", role.Name))
	}
	n, err := s.repo.CountUsersWithRole(ctx, id)
	if err != nil {
		return fmt.Errorf("count role users: %w", err)
	}
	if n > 0 {
		return &apperrors.ConflictError{Entity: "role", Name: role.Name, Dependents: n, DependentKind: "users"}
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	s.changed(ctx, events.RolesDeleted, id)
	return nil
}

func (s *RBACService) ListPermissions(ctx context.Context, entity string) ([]models.Permission, error) {
	return s.repo.ListPermissions(ctx, strings.ToLower(strings.TrimSpace(entity)))
}

func (s *RBACService) CreatePermission(ctx context.Context, in PermissionInput) (*models.Permission, error) {
	if !authz.ValidAction(strings.ToLower(strings.TrimSpace(in.Action))) {
		return nil, apperrors.Invalid("action", "unknown action")
	}
	perm := &models.Permission{
		Entity: strings.ToLower(strings.TrimSpace(in.Entity)),
		Action: models.PermissionAction(strings.ToLower(strings.TrimSpace(in.Action))),
	}
	perm.Name = models.PermissionName(perm.Entity, perm.Action)
	if err := s.repo.CreatePermission(ctx, perm); err != nil {
		return nil, fmt.Errorf("create permission %s: %w", perm.Name, err)
	}
	return perm, nil
}

// DeletePermission refuses system permissions and permissions still assigned to roles.
func (s *RBACService) DeletePermission(ctx context.Context, id string) error {
	perm, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	if perm.IsSystem {
		return apperrors.Forbidden(fmt.Sprintf("permission %q is a system permission", perm.Name))
	}
	n, err := s.repo.CountRolesWithPermission(ctx, id)
	if err != nil {
		return fmt.Errorf("count permission roles: %w", err)
	}
	if n > 0 {
		return &apperrors.ConflictError{Entity: "permission", Name: perm.Name, Dependents: n, DependentKind: "roles"}
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	events.Emit(events.PermissionsDeleted, perm)
	return nil
}

func (s *RBACService) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	if err := s.repo.AddRolePermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("assign permission: %w", err)
	}
	s.changed(ctx, events.RolesUpdated, roleID)
	return nil
}

func (s *RBACService) UnassignPermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.RemoveRolePermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("unassign permission: %w", err)
	}
	s.changed(ctx, events.RolesUpdated, roleID)
	return nil
}

// SetRolePermissions replaces the permission set of a role. Unknown ids fail validation.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	ids := dedupe(permissionIDs)
	found, err := s.repo.FindPermissions(ctx, ids)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if len(found) != len(ids) {
		known := make(map[string]bool, len(found))
		for _, p := range found {
			known[p.ID] = true
		}
		verr := &apperrors.ValidationError{}
		for _, id := range ids {
			if !known[id] {
				verr.Add("permissionIds", fmt.Sprintf("unknown permission %s", id))
			}
		}
		return verr
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, ids); err != nil {
		return fmt.Errorf("set role permissions: %w", err)
	}
	s.changed(ctx, events.RolesUpdated, roleID)
	return nil
}

// changed drops cached permissions of roleIDs before the caller's request completes, so
// the next check by any instance sees the new set.
func (s *RBACService) changed(ctx context.Context, event string, roleIDs ...string) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, roleIDs...); err != nil {
			s.logger.Warn("failed to invalidate roles %v: %v", roleIDs, err)
		}
	}
	if s.queue != nil {
		if err := s.queue.EnqueueRoleInvalidation(ctx, roleIDs); err != nil {
			s.logger.Warn("failed to enqueue role invalidation %v: %v", roleIDs, err)
		}
	}
	events.Emit(event, roleIDs)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
