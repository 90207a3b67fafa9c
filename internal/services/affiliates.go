package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/models"
	"cms0/internal/utils"

	"gorm.io/datatypes"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type AffiliateInput struct {
	Name     string         `json:"name" validate:"required,min=2"`
	Slug     string         `json:"slug" validate:"required,min=2"`
	Settings datatypes.JSON `json:"settings,omitempty"`
}

// DelegationInput sets the capabilities one affiliate grants another.
type DelegationInput struct {
	ToAffiliateID    string `json:"toAffiliateId" validate:"required,uuid"`
	CanUse           bool   `json:"canUse"`
	CanCopy          bool   `json:"canCopy"`
	CanAssign        bool   `json:"canAssign"`
	AccessPublishers bool   `json:"accessPublishers"`
}

type AffiliateService struct {
	repo AffiliateRepository
}

func NewAffiliateService(repo AffiliateRepository) *AffiliateService {
	return &AffiliateService{repo: repo}
}

// List returns the affiliates visible in scope.
func (s *AffiliateService) List(ctx context.Context, scope affiliate.Scope) ([]models.Affiliate, error) {
	ids := scope.IDs()
	if ids == nil {
		ids = []string{}
	}
	return s.repo.ListAffiliates(ctx, ids)
}

// GetByIDs is a bulk lookup restricted to the affiliates visible in scope. Unknown or
// invisible ids are skipped.
func (s *AffiliateService) GetByIDs(ctx context.Context, scope affiliate.Scope, ids []string) ([]models.Affiliate, error) {
	visible := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		if scope.Contains(id) {
			visible = append(visible, id)
		}
	}
	return s.repo.ListAffiliates(ctx, visible)
}

func (s *AffiliateService) Get(ctx context.Context, scope affiliate.Scope, id string) (*models.Affiliate, error) {
	if !scope.Contains(id) {
		return nil, apperrors.NotFound("affiliate")
	}
	return s.repo.GetAffiliate(ctx, id)
}

// Create makes a new affiliate and adds its creator as the first member.
func (s *AffiliateService) Create(ctx context.Context, creatorID string, in AffiliateInput) (*models.Affiliate, error) {
	settings, err := mergeSettings(nil, in.Settings)
	if err != nil {
		return nil, err
	}
	a := &models.Affiliate{Name: strings.TrimSpace(in.Name), Slug: strings.ToLower(strings.TrimSpace(in.Slug)), Settings: settings}
	if !slugPattern.MatchString(a.Slug) {
		return nil, apperrors.Invalid("slug", "must be lowercase letters, digits and dashes")
	}
	if err := s.repo.CreateAffiliate(ctx, a); err != nil {
		return nil, fmt.Errorf("create affiliate: %w", err)
	}
	if creatorID != "" {
		if err := s.repo.AddMember(ctx, creatorID, a.ID); err != nil {
			return a, fmt.Errorf("add creator to affiliate: %w", err)
		}
	}
	return a, nil
}

func (s *AffiliateService) Update(ctx context.Context, scope affiliate.Scope, id string, in AffiliateInput) (*models.Affiliate, error) {
	a, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		a.Name = strings.TrimSpace(in.Name)
	}
	if in.Slug != "" {
		slug := strings.ToLower(strings.TrimSpace(in.Slug))
		if !slugPattern.MatchString(slug) {
			return nil, apperrors.Invalid("slug", "must be lowercase letters, digits and dashes")
		}
		a.Slug = slug
	}
	if in.Settings != nil {
		if a.Settings, err = mergeSettings(a.Settings, in.Settings); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateAffiliate(ctx, a); err != nil {
		return nil, fmt.Errorf("update affiliate: %w", err)
	}
	return a, nil
}

// mergeSettings overlays patch on current. Settings are a flat map of strings and an
// empty value removes its key.
func mergeSettings(current, patch datatypes.JSON) (datatypes.JSON, error) {
	merged, err := utils.JSONToMap(current)
	if err != nil {
		merged = map[string]string{}
	}
	changes, err := utils.JSONToMap(patch)
	if err != nil {
		return nil, apperrors.Invalid("settings", "must be an object of string values")
	}
	for k, v := range changes {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return utils.MapToJSON(merged)
}

// Delete refuses affiliates that still have members.
func (s *AffiliateService) Delete(ctx context.Context, scope affiliate.Scope, id string) error {
	a, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	n, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return fmt.Errorf("count affiliate members: %w", err)
	}
	if n > 0 {
		return &apperrors.ConflictError{Entity: "affiliate", Name: a.Name, Dependents: n, DependentKind: "members"}
	}
	return s.repo.DeleteAffiliate(ctx, id)
}

func (s *AffiliateService) AddMember(ctx context.Context, scope affiliate.Scope, affiliateID, userID string) error {
	if _, err := s.Get(ctx, scope, affiliateID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, userID, affiliateID)
}

func (s *AffiliateService) RemoveMember(ctx context.Context, scope affiliate.Scope, affiliateID, userID string) error {
	if _, err := s.Get(ctx, scope, affiliateID); err != nil {
		return err
	}
	return s.repo.RemoveMember(ctx, userID, affiliateID)
}

// Grant records what fromID lets toID do with its content. It does not make any user a
// member of either affiliate.
func (s *AffiliateService) Grant(ctx context.Context, scope affiliate.Scope, fromID string, in DelegationInput) (*models.AffiliateMember, error) {
	if fromID == in.ToAffiliateID {
		return nil, apperrors.Invalid("toAffiliateId", "must differ from the granting affiliate")
	}
	if _, err := s.Get(ctx, scope, fromID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAffiliate(ctx, in.ToAffiliateID); err != nil {
		return nil, err
	}
	d := &models.AffiliateMember{
		FromAffiliateID:  fromID,
		ToAffiliateID:    in.ToAffiliateID,
		CanUse:           in.CanUse,
		CanCopy:          in.CanCopy,
		CanAssign:        in.CanAssign,
		AccessPublishers: in.AccessPublishers,
	}
	if err := s.repo.SaveDelegation(ctx, d); err != nil {
		return nil, fmt.Errorf("save delegation: %w", err)
	}
	return d, nil
}

func (s *AffiliateService) Revoke(ctx context.Context, scope affiliate.Scope, fromID, toID string) error {
	if _, err := s.Get(ctx, scope, fromID); err != nil {
		return err
	}
	ok, err := s.repo.DeleteDelegation(ctx, fromID, toID)
	if err != nil {
		return fmt.Errorf("revoke delegation: %w", err)
	}
	if !ok {
		return apperrors.NotFound("delegation")
	}
	return nil
}

func (s *AffiliateService) ListDelegations(ctx context.Context, scope affiliate.Scope, affiliateID string) ([]models.AffiliateMember, error) {
	if _, err := s.Get(ctx, scope, affiliateID); err != nil {
		return nil, err
	}
	return s.repo.ListDelegations(ctx, affiliateID)
}
