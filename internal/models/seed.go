package models

import (
	"cms0/internal/config"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	console "cms0/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleViewer     = "viewer"
)

// ContentEntities carry the full action set, including *_own and publishing.
var ContentEntities = []string{"stories", "pages", "modules", "categories", "menus"}

// AdminEntities carry plain CRUD actions.
var AdminEntities = []string{"users", "roles", "permissions", "affiliates", "files", "admin_panel"}

var crudActions = []PermissionAction{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// Role-based permission mappings. "entity.*" expands to every seeded action of entity,
// "*.action" to that action on every entity.
var rolePermissions = map[string][]string{
	RoleSuperAdmin: {"*.*"},
	RoleAdmin: {
		"stories.*", "pages.*", "modules.*", "categories.*", "menus.*",
		"users.*", "affiliates.*", "files.*", "roles.read", "permissions.read", "admin_panel.read",
	},
	RoleEditor: {
		"stories.create", "stories.read", "stories.update_own", "stories.delete_own", "stories.publish",
		"pages.create", "pages.read", "pages.update_own", "pages.delete_own",
		"modules.read", "categories.read", "menus.read", "menus.update",
		"files.create", "files.read", "users.read", "affiliates.read",
	},
	RoleViewer: {"*.read"},
}

var roleDisplayNames = map[string]string{
	RoleSuperAdmin: "Super Administrator",
	RoleAdmin:      "Administrator",
	RoleEditor:     "Editor",
	RoleViewer:     "Viewer",
}

// DefaultPermissions returns every system permission the seeder creates.
func DefaultPermissions() []Permission {
	var perms []Permission
	for _, entity := range ContentEntities {
		for _, action := range PermissionActions {
			perms = append(perms, Permission{Entity: entity, Action: action, Name: PermissionName(entity, action), IsSystem: true})
		}
	}
	for _, entity := range AdminEntities {
		for _, action := range crudActions {
			perms = append(perms, Permission{Entity: entity, Action: action, Name: PermissionName(entity, action), IsSystem: true})
		}
	}
	return perms
}

// ExpandPermissionPatterns resolves "entity.*", "*.action" and "*.*" against the given permissions.
func ExpandPermissionPatterns(patterns []string, all []Permission) ([]Permission, error) {
	seen := make(map[string]bool)
	var out []Permission
	for _, pattern := range patterns {
		parts := strings.Split(pattern, ".")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid permission pattern format: %s", pattern)
		}
		entity, action := parts[0], parts[1]
		matched := false
		for _, p := range all {
			if (entity == "*" || entity == p.Entity) && (action == "*" || action == string(p.Action)) {
				matched = true
				if !seen[p.Name] {
					seen[p.Name] = true
					out = append(out, p)
				}
			}
		}
		if !matched {
			return nil, fmt.Errorf("permission pattern %s matched nothing", pattern)
		}
	}
	return out, nil
}

// SeedPermissions creates default permissions
func SeedPermissions(db *gorm.DB) error {
	for _, perm := range DefaultPermissions() {
		if err := db.Where(Permission{Name: perm.Name}).FirstOrCreate(&perm).Error; err != nil {
			return fmt.Errorf("failed to create permission %s: %v", perm.Name, err)
		}
	}
	return nil
}

// SeedRoles creates the system roles and attaches their permissions
func SeedRoles(db *gorm.DB) error {
	var all []Permission
	if err := db.Where("is_deleted = ?", false).Find(&all).Error; err != nil {
		return fmt.Errorf("failed to load permissions: %v", err)
	}

	for name, patterns := range rolePermissions {
		log.Info("Creating permissions for role: %s", name)

		perms, err := ExpandPermissionPatterns(patterns, all)
		if err != nil {
			return err
		}

		role := Role{Name: name, DisplayName: roleDisplayNames[name], IsSystem: true}
		if err := db.Where(Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to create role %s: %v", name, err)
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("failed to assign permissions to role %s: %v", name, err)
		}
	}

	return nil
}

func CreateSuperAdminFromEnv(db *gorm.DB, cfg *config.Config) error {
	role := &Role{}
	if err := db.Where("name = ? AND is_deleted = ?", RoleSuperAdmin, false).First(role).Error; err != nil {
		return fmt.Errorf("super admin role missing: %w", err)
	}

	// check if super admin already exists
	var count int64
	db.Model(&User{}).Where("role_id = ?", role.ID).Count(&count)
	log.Info("Super admin count: %d", count)
	if count > 0 {
		return nil
	}

	sa := cfg.SuperAdmin
	if sa.Email == "" || sa.Password == "" {
		return errors.New("SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD must be set")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(sa.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		affiliate := Affiliate{Name: "Main", Slug: "main"}
		if err := tx.Where(Affiliate{Slug: affiliate.Slug}).FirstOrCreate(&affiliate).Error; err != nil {
			return fmt.Errorf("failed to create affiliate: %v", err)
		}

		user := User{
			FirstName: sa.Name,
			Email:     sa.Email,
			RoleID:    &role.ID,
			Status:    UserStatusActive,
			Password:  string(hashedPassword),
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create superadmin user: %v", err)
		}

		return tx.Create(&UserAffiliate{UserID: user.ID, AffiliateID: affiliate.ID}).Error
	})
}
