package services

import (
	"context"
	"strings"
	"time"

	"cms0/internal/apperrors"
	"cms0/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads and writes users and the created_by forest.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User, affiliateIDs []string) error
	ListCreatedBy(ctx context.Context, creatorID string) ([]models.User, error)
	CountCreatedBy(ctx context.Context, creatorIDs []string) (map[string]int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// SessionRepository stores issued tokens.
type SessionRepository interface {
	CreateSession(ctx context.Context, tx *models.AuthTransaction) error
	FindSession(ctx context.Context, token string) (*models.AuthTransaction, error)
	FindSessionByRefresh(ctx context.Context, refresh string) (*models.AuthTransaction, error)
	UpdateSessionToken(ctx context.Context, id, token string) error
	RevokeSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

var (
	_ UserRepository    = (*GormUserRepository)(nil)
	_ SessionRepository = (*GormUserRepository)(nil)
)

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Role").Where("id = ? AND is_deleted = ?", id, false).First(&u).Error
	if err != nil {
		return nil, notFoundAs(err, "user")
	}
	return &u, nil
}

func (r *GormUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Role").
		Where("LOWER(email) = ? AND is_deleted = ?", strings.ToLower(strings.TrimSpace(email)), false).First(&u).Error
	if err != nil {
		return nil, notFoundAs(err, "user")
	}
	return &u, nil
}

// CreateUser inserts u and its affiliate memberships in one transaction.
func (r *GormUserRepository) CreateUser(ctx context.Context, u *models.User, affiliateIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Role", "Creator", "CreatedUsers", "Affiliates", "Files").Create(u).Error; err != nil {
			return err
		}
		if len(affiliateIDs) == 0 {
			return nil
		}
		links := make([]models.UserAffiliate, len(affiliateIDs))
		for i, id := range affiliateIDs {
			links[i] = models.UserAffiliate{UserID: u.ID, AffiliateID: id}
		}
		return tx.Create(&links).Error
	})
}

func (r *GormUserRepository) ListCreatedBy(ctx context.Context, creatorID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Preload("Role").
		Where("created_by = ? AND is_deleted = ?", creatorID, false).
		Order("first_name, last_name, email").Find(&users).Error
	return users, err
}

// CountCreatedBy returns the number of live users each creator made. Creators without
// any are absent from the map.
func (r *GormUserRepository) CountCreatedBy(ctx context.Context, creatorIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(creatorIDs))
	if len(creatorIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		CreatedBy string
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("created_by, COUNT(*) AS total").
		Where("created_by IN ? AND is_deleted = ?", creatorIDs, false).
		Group("created_by").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CreatedBy] = row.Total
	}
	return out, nil
}

func (r *GormUserRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_deleted = ?", false).Count(&n).Error
	return n, err
}

func (r *GormUserRepository) CreateSession(ctx context.Context, tx *models.AuthTransaction) error {
	return r.db.WithContext(ctx).Omit("User").Create(tx).Error
}

func (r *GormUserRepository) FindSession(ctx context.Context, token string) (*models.AuthTransaction, error) {
	return r.findSession(ctx, "token = ?", token)
}

func (r *GormUserRepository) FindSessionByRefresh(ctx context.Context, refresh string) (*models.AuthTransaction, error) {
	return r.findSession(ctx, "refresh = ?", refresh)
}

func (r *GormUserRepository) findSession(ctx context.Context, cond string, value string) (*models.AuthTransaction, error) {
	var tx models.AuthTransaction
	err := r.db.WithContext(ctx).Where(cond, value).Where("is_deleted = ?", false).First(&tx).Error
	if err != nil {
		return nil, notFoundAs(err, "session")
	}
	return &tx, nil
}

// UpdateSessionToken swaps the access token of a session after a refresh.
func (r *GormUserRepository) UpdateSessionToken(ctx context.Context, id, token string) error {
	res := r.db.WithContext(ctx).Model(&models.AuthTransaction{}).
		Where("id = ? AND is_deleted = ?", id, false).Update("token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("session")
	}
	return nil
}

func (r *GormUserRepository) RevokeSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.AuthTransaction{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": time.Now()}).Error
}

func (r *GormUserRepository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ? OR is_deleted = ?", now, true).Delete(&models.AuthTransaction{})
	return res.RowsAffected, res.Error
}
