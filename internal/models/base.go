package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-" validate:"omitempty"`
	IsDeleted bool      `json:"isDeleted" default:"false"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

type PermissionAction string

const (
	ActionCreate    PermissionAction = "create"
	ActionRead      PermissionAction = "read"
	ActionUpdate    PermissionAction = "update"
	ActionDelete    PermissionAction = "delete"
	ActionUpdateOwn PermissionAction = "update_own"
	ActionDeleteOwn PermissionAction = "delete_own"
	ActionPublish   PermissionAction = "publish"
	ActionUnpublish PermissionAction = "unpublish"
)

// PermissionActions lists every action a permission may carry.
var PermissionActions = []PermissionAction{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete,
	ActionUpdateOwn, ActionDeleteOwn, ActionPublish, ActionUnpublish,
}

type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusArchived  ContentStatus = "archived"
)

type Platform string

const (
	PlatformWeb     Platform = "Web"
	PlatformAndroid Platform = "Android"
	PlatformIOS     Platform = "iOS"
)

// IsValidUserStatus checks if a given status is valid
func IsValidUserStatus(status UserStatus) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusBanned:
		return true
	default:
		return false
	}
}

// IsValidPermissionAction checks if a given action is one of PermissionActions
func IsValidPermissionAction(action PermissionAction) bool {
	for _, a := range PermissionActions {
		if a == action {
			return true
		}
	}
	return false
}

func IsValidContentStatus(status ContentStatus) bool {
	switch status {
	case ContentStatusDraft, ContentStatusPublished, ContentStatusArchived:
		return true
	default:
		return false
	}
}

func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformWeb, PlatformAndroid, PlatformIOS:
		return true
	default:
		return false
	}
}
