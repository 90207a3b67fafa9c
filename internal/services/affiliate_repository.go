package services

import (
	"context"

	"cms0/internal/affiliate"
	"cms0/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateRepository persists affiliates, user memberships and delegations.
type AffiliateRepository interface {
	affiliate.Store

	ListAffiliates(ctx context.Context, ids []string) ([]models.Affiliate, error)
	CreateAffiliate(ctx context.Context, a *models.Affiliate) error
	UpdateAffiliate(ctx context.Context, a *models.Affiliate) error
	DeleteAffiliate(ctx context.Context, id string) error
	CountMembers(ctx context.Context, affiliateID string) (int64, error)

	AddMember(ctx context.Context, userID, affiliateID string) error
	RemoveMember(ctx context.Context, userID, affiliateID string) error

	SaveDelegation(ctx context.Context, d *models.AffiliateMember) error
	DeleteDelegation(ctx context.Context, fromID, toID string) (bool, error)
	ListDelegations(ctx context.Context, affiliateID string) ([]models.AffiliateMember, error)
}

type GormAffiliateRepository struct {
	db *gorm.DB
}

var _ AffiliateRepository = (*GormAffiliateRepository)(nil)

func NewGormAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

func (r *GormAffiliateRepository) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	var a models.Affiliate
	if err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&a).Error; err != nil {
		return nil, notFoundAs(err, "affiliate")
	}
	return &a, nil
}

func (r *GormAffiliateRepository) IsMember(ctx context.Context, userID, affiliateID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserAffiliate{}).
		Where("user_id = ? AND affiliate_id = ?", userID, affiliateID).Count(&n).Error
	return n > 0, err
}

func (r *GormAffiliateRepository) MemberAffiliateIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.UserAffiliate{}).
		Joins("JOIN affiliates ON affiliates.id = user_affiliates.affiliate_id").
		Where("user_affiliates.user_id = ? AND affiliates.is_deleted = ?", userID, false).
		Pluck("user_affiliates.affiliate_id", &ids).Error
	return ids, err
}

// ListAffiliates returns every live affiliate, or only those in ids when ids is non-nil.
func (r *GormAffiliateRepository) ListAffiliates(ctx context.Context, ids []string) ([]models.Affiliate, error) {
	var out []models.Affiliate
	query := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if ids != nil {
		if len(ids) == 0 {
			return out, nil
		}
		query = query.Where("id IN ?", ids)
	}
	err := query.Order("name").Find(&out).Error
	return out, err
}

func (r *GormAffiliateRepository) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	return r.db.WithContext(ctx).Omit("Users").Create(a).Error
}

func (r *GormAffiliateRepository) UpdateAffiliate(ctx context.Context, a *models.Affiliate) error {
	return r.db.WithContext(ctx).Model(a).Select("name", "slug", "settings", "updated_at").Updates(a).Error
}

func (r *GormAffiliateRepository) DeleteAffiliate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": gorm.Expr("NOW()")}).Error
}

func (r *GormAffiliateRepository) CountMembers(ctx context.Context, affiliateID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserAffiliate{}).Where("affiliate_id = ?", affiliateID).Count(&n).Error
	return n, err
}

func (r *GormAffiliateRepository) AddMember(ctx context.Context, userID, affiliateID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserAffiliate{UserID: userID, AffiliateID: affiliateID}).Error
}

func (r *GormAffiliateRepository) RemoveMember(ctx context.Context, userID, affiliateID string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND affiliate_id = ?", userID, affiliateID).
		Delete(&models.UserAffiliate{}).Error
}

// SaveDelegation upserts the capability flags of a (from, to) pair.
func (r *GormAffiliateRepository) SaveDelegation(ctx context.Context, d *models.AffiliateMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_affiliate_id"}, {Name: "to_affiliate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_use", "can_copy", "can_assign", "access_publishers", "updated_at"}),
	}).Create(d).Error
}

func (r *GormAffiliateRepository) DeleteDelegation(ctx context.Context, fromID, toID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("from_affiliate_id = ? AND to_affiliate_id = ?", fromID, toID).
		Delete(&models.AffiliateMember{})
	return res.RowsAffected > 0, res.Error
}

// ListDelegations returns delegations granted by or to affiliateID.
func (r *GormAffiliateRepository) ListDelegations(ctx context.Context, affiliateID string) ([]models.AffiliateMember, error) {
	var out []models.AffiliateMember
	err := r.db.WithContext(ctx).Preload("FromAffiliate").Preload("ToAffiliate").
		Where("from_affiliate_id = ? OR to_affiliate_id = ?", affiliateID, affiliateID).
		Order("created_at").Find(&out).Error
	return out, err
}
