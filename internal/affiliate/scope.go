// Package affiliate resolves which tenant(s) a request may read or write.
package affiliate

import (
	"sort"

	"cms0/internal/apperrors"

	"gorm.io/gorm"
)

const (
	ModeSingle = "single"
	ModeGlobal = "global"
)

// Scope is the effective tenant filter of a request. Exactly one of two shapes holds:
// a single pinned AffiliateID, or Global with the union of the caller's memberships.
type Scope struct {
	AffiliateID  string   `json:"affiliateId,omitempty"`
	AffiliateIDs []string `json:"affiliateIds,omitempty"`
	Global       bool     `json:"global"`
}

func SingleScope(id string) Scope {
	return Scope{AffiliateID: id}
}

// GlobalScope copies ids sorted and de-duplicated.
func GlobalScope(ids []string) Scope {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return Scope{AffiliateIDs: out, Global: true}
}

func (s Scope) Mode() string {
	if s.Global {
		return ModeGlobal
	}
	return ModeSingle
}

// Single returns the pinned affiliate id. Detail and write paths call it and fail closed
// with ErrAmbiguousAffiliate when the scope is global.
func (s Scope) Single() (string, error) {
	if s.Global || s.AffiliateID == "" {
		return "", apperrors.ErrAmbiguousAffiliate
	}
	return s.AffiliateID, nil
}

// IDs lists every affiliate the scope can see.
func (s Scope) IDs() []string {
	if s.Global {
		return s.AffiliateIDs
	}
	if s.AffiliateID == "" {
		return nil
	}
	return []string{s.AffiliateID}
}

// Contains reports whether rows of affiliateID are visible in this scope.
func (s Scope) Contains(affiliateID string) bool {
	for _, id := range s.IDs() {
		if id == affiliateID {
			return true
		}
	}
	return false
}

// Apply adds the tenant predicate on column. A global scope with no memberships matches no rows.
func (s Scope) Apply(db *gorm.DB, column string) *gorm.DB {
	if column == "" {
		column = "affiliate_id"
	}
	ids := s.IDs()
	switch {
	case len(ids) == 0:
		return db.Where("1 = 0")
	case s.Global:
		return db.Where(column+" IN ?", ids)
	default:
		return db.Where(column+" = ?", ids[0])
	}
}

// Scoper returns Apply as a gorm scope for db.Scopes(...).
func (s Scope) Scoper(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return s.Apply(db, column)
	}
}
