package models

import (
	"time"

	"gorm.io/datatypes"
)

// Affiliate is a tenant.
type Affiliate struct {
	Base
	Name     string         `gorm:"not null" json:"name" validate:"required,min=2"`
	Slug     string         `gorm:"uniqueIndex;not null" json:"slug" validate:"required,min=2"`
	Settings datatypes.JSON `gorm:"type:jsonb" json:"settings,omitempty"`
	Users    []User         `gorm:"many2many:user_affiliates;" json:"users,omitempty"`
}

// UserAffiliate grants a user visibility into an affiliate's data.
type UserAffiliate struct {
	UserID      string    `gorm:"type:uuid;primaryKey" json:"userId"`
	AffiliateID string    `gorm:"type:uuid;primaryKey" json:"affiliateId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (UserAffiliate) TableName() string {
	return "user_affiliates"
}

// AffiliateMember is a capability delegation from one affiliate to another.
// It is unrelated to UserAffiliate membership.
type AffiliateMember struct {
	Base
	FromAffiliateID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_affiliate_delegation" json:"fromAffiliateId" validate:"required"`
	FromAffiliate    *Affiliate `gorm:"foreignKey:FromAffiliateID" json:"fromAffiliate,omitempty"`
	ToAffiliateID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_affiliate_delegation" json:"toAffiliateId" validate:"required,nefield=FromAffiliateID"`
	ToAffiliate      *Affiliate `gorm:"foreignKey:ToAffiliateID" json:"toAffiliate,omitempty"`
	CanUse           bool       `gorm:"default:false" json:"canUse"`
	CanCopy          bool       `gorm:"default:false" json:"canCopy"`
	CanAssign        bool       `gorm:"default:false" json:"canAssign"`
	AccessPublishers bool       `gorm:"default:false" json:"accessPublishers"`
}
