package models

import (
	"time"
)

// User is a member of the admin panel. CreatedBy points at the user that created
// this one; the edge forms a forest whose roots have CreatedBy == nil.
type User struct {
	Base
	Email        string      `gorm:"uniqueIndex;not null" json:"email"`
	Password     string      `gorm:"not null" json:"-"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	RoleID       *string     `gorm:"type:uuid;index" json:"roleId,omitempty"`
	Role         *Role       `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Status       UserStatus  `gorm:"not null;default:'active'" json:"status"`
	CreatedBy    *string     `gorm:"type:uuid;index" json:"createdBy,omitempty"`
	Creator      *User       `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	CreatedUsers []User      `gorm:"foreignKey:CreatedBy" json:"createdUsers,omitempty"`
	Affiliates   []Affiliate `gorm:"many2many:user_affiliates;" json:"affiliates,omitempty"`
	Files        []File      `gorm:"foreignKey:UserID" json:"files,omitempty"`
}

// IsRoot reports whether the user sits at the top of a creation tree.
func (u *User) IsRoot() bool {
	return u.CreatedBy == nil || *u.CreatedBy == ""
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// AuthTransaction records an issued token. AffiliateID is the affiliate bound to
// the session at login time, if any.
type AuthTransaction struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index" json:"userId"`
	User        *User     `json:"user,omitempty"`
	AffiliateID *string   `gorm:"type:uuid" json:"affiliateId,omitempty"`
	Token       string    `gorm:"not null" json:"token"`
	Refresh     string    `gorm:"not null" json:"refresh"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	ExpiresAt   time.Time `gorm:"index" json:"expiresAt"`
}
