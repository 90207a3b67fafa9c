package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Role groups permissions. Name is the unique key used by seeds and lookups.
type Role struct {
	Base
	Name        string       `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	DisplayName string       `json:"displayName"`
	IsSystem    bool         `gorm:"default:false" json:"isSystem"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

// Permission is an atomic capability named "<entity>.<action>".
type Permission struct {
	Base
	Name     string           `gorm:"uniqueIndex;not null" json:"name"`
	Entity   string           `gorm:"not null;index" json:"entity" validate:"required,entity_name"`
	Action   PermissionAction `gorm:"not null" json:"action" validate:"required,permission_action"`
	IsSystem bool             `gorm:"default:false" json:"isSystem"`
}

// RolePermission is the join table between roles and permissions.
type RolePermission struct {
	RoleID       string `gorm:"type:uuid;primaryKey" json:"roleId"`
	PermissionID string `gorm:"type:uuid;primaryKey" json:"permissionId"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// PermissionName derives the dotted permission name for an entity and action.
func PermissionName(entity string, action PermissionAction) string {
	return fmt.Sprintf("%s.%s", strings.ToLower(strings.TrimSpace(entity)), strings.ToLower(strings.TrimSpace(string(action))))
}

// BeforeSave keeps Name in sync with Entity and Action.
func (p *Permission) BeforeSave(tx *gorm.DB) error {
	if p.Entity == "" || p.Action == "" {
		return fmt.Errorf("permission entity and action are required")
	}
	p.Name = PermissionName(p.Entity, p.Action)
	return nil
}
