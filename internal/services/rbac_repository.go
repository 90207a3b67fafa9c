package services

import (
	"context"
	"errors"
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/models"

	"gorm.io/gorm"
)

// RBACRepository persists roles, permissions and their assignments.
type RBACRepository interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
	GetRole(ctx context.Context, id string) (*models.Role, error)
	CreateRole(ctx context.Context, role *models.Role) error
	UpdateRole(ctx context.Context, role *models.Role) error
	DeleteRole(ctx context.Context, id string) error
	CountUsersWithRole(ctx context.Context, roleID string) (int64, error)

	ListPermissions(ctx context.Context, entity string) ([]models.Permission, error)
	GetPermission(ctx context.Context, id string) (*models.Permission, error)
	FindPermissions(ctx context.Context, ids []string) ([]models.Permission, error)
	CreatePermission(ctx context.Context, perm *models.Permission) error
	DeletePermission(ctx context.Context, id string) error
	CountRolesWithPermission(ctx context.Context, permissionID string) (int64, error)

	AddRolePermission(ctx context.Context, roleID, permissionID string) error
	RemoveRolePermission(ctx context.Context, roleID, permissionID string) error
	ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error

	RolePermissionNames(ctx context.Context, roleID string) ([]string, error)
	UserRoleID(ctx context.Context, userID string) (string, error)
}

type GormRBACRepository struct {
	db *gorm.DB
}

func NewGormRBACRepository(db *gorm.DB) *GormRBACRepository {
	return &GormRBACRepository{db: db}
}

func notFoundAs(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity)
	}
	return err
}

func (r *GormRBACRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.WithContext(ctx).Preload("Permissions", "is_deleted = ?", false).
		Where("is_deleted = ?", false).Order("name").Find(&roles).Error
	return roles, err
}

func (r *GormRBACRepository) GetRole(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Preload("Permissions", "is_deleted = ?", false).
		Where("id = ? AND is_deleted = ?", id, false).First(&role).Error
	if err != nil {
		return nil, notFoundAs(err, "role")
	}
	return &role, nil
}

func (r *GormRBACRepository) CreateRole(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Omit("Permissions").Create(role).Error
}

func (r *GormRBACRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Model(role).Select("display_name", "updated_at").Updates(role).Error
}

// DeleteRole removes the role and its permission links.
func (r *GormRBACRepository) DeleteRole(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Role{}).Error
}

func (r *GormRBACRepository) CountUsersWithRole(ctx context.Context, roleID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role_id = ? AND is_deleted = ?", roleID, false).Count(&n).Error
	return n, err
}

func (r *GormRBACRepository) ListPermissions(ctx context.Context, entity string) ([]models.Permission, error) {
	var perms []models.Permission
	query := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if entity != "" {
		query = query.Where("entity = ?", entity)
	}
	err := query.Order("name").Find(&perms).Error
	return perms, err
}

func (r *GormRBACRepository) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	var perm models.Permission
	if err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&perm).Error; err != nil {
		return nil, notFoundAs(err, "permission")
	}
	return &perm, nil
}

func (r *GormRBACRepository) FindPermissions(ctx context.Context, ids []string) ([]models.Permission, error) {
	var perms []models.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ? AND is_deleted = ?", ids, false).Find(&perms).Error
	return perms, err
}

func (r *GormRBACRepository) CreatePermission(ctx context.Context, perm *models.Permission) error {
	return r.db.WithContext(ctx).Create(perm).Error
}

func (r *GormRBACRepository) DeletePermission(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Permission{}).Error
}

func (r *GormRBACRepository) CountRolesWithPermission(ctx context.Context, permissionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.RolePermission{}).
		Where("permission_id = ?", permissionID).Count(&n).Error
	return n, err
}

func (r *GormRBACRepository) AddRolePermission(ctx context.Context, roleID, permissionID string) error {
	link := models.RolePermission{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).Where(link).FirstOrCreate(&link).Error
}

func (r *GormRBACRepository) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&models.RolePermission{}).Error
}

func (r *GormRBACRepository) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		links := make([]models.RolePermission, len(permissionIDs))
		for i, id := range permissionIDs {
			links[i] = models.RolePermission{RoleID: roleID, PermissionID: id}
		}
		return tx.Create(&links).Error
	})
}

func (r *GormRBACRepository) RolePermissionNames(ctx context.Context, roleID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ? AND permissions.is_deleted = ?", roleID, false).
		Pluck("permissions.name", &names).Error
	return names, err
}

func (r *GormRBACRepository) UserRoleID(ctx context.Context, userID string) (string, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "role_id").
		Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error
	if err != nil {
		return "", notFoundAs(err, "user")
	}
	if user.RoleID == nil {
		return "", nil
	}
	return *user.RoleID, nil
}

// GetRoleByName looks a role up by its unique name.
func (r *GormRBACRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("name = ? AND is_deleted = ?", strings.ToLower(name), false).First(&role).Error
	if err != nil {
		return nil, notFoundAs(err, "role")
	}
	return &role, nil
}
