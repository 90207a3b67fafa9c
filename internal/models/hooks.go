package models

import (
	"cms0/internal/events"

	"gorm.io/gorm"
)

func (u *User) AfterCreate(tx *gorm.DB) error {
	log.Info("User created %s", u.Email)
	events.Emit(events.UsersCreated, u)
	return nil
}

func (a *Affiliate) AfterCreate(tx *gorm.DB) error {
	events.Emit(events.AffiliatesCreated, a)
	return nil
}
