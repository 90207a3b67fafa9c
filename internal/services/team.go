package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cms0/internal/apperrors"
	"cms0/internal/hierarchy"
	"cms0/internal/models"
	"cms0/internal/utils"

	"golang.org/x/sync/errgroup"
)

// LoadLevelDirect loads immediate subordinates only. It is the only level supported.
const LoadLevelDirect = "direct"

// UserInput describes a user created from inside the admin panel.
type UserInput struct {
	Email        string            `json:"email" validate:"required,email"`
	Password     string            `json:"password" validate:"required,min=8"`
	FirstName    string            `json:"firstName" validate:"required"`
	LastName     string            `json:"lastName"`
	RoleID       string            `json:"roleId" validate:"omitempty,uuid"`
	Status       models.UserStatus `json:"status" validate:"omitempty,user_status"`
	AffiliateIDs []string          `json:"affiliateIds" validate:"omitempty,dive,uuid"`
}

type TeamService struct {
	users UserRepository
}

func NewTeamService(users UserRepository) *TeamService {
	return &TeamService{users: users}
}

func checkLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LoadLevelDirect:
		return nil
	default:
		return apperrors.Invalid("level", fmt.Sprintf("unsupported load level %q", level))
	}
}

// LoadTeam returns the neighbourhood of userID: its creator, the other users that creator
// made, and the users userID made. Roots have neither superior nor siblings.
func (s *TeamService) LoadTeam(ctx context.Context, userID, loadLevel string) (*hierarchy.Team, error) {
	if err := checkLevel(loadLevel); err != nil {
		return nil, err
	}
	current, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		superior     *models.User
		siblings     []models.User
		subordinates []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	if !current.IsRoot() {
		creatorID := *current.CreatedBy
		g.Go(func() error {
			u, err := s.users.GetUser(gctx, creatorID)
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			superior = u
			return err
		})
		g.Go(func() error {
			peers, err := s.users.ListCreatedBy(gctx, creatorID)
			if err != nil {
				return err
			}
			for _, p := range peers {
				if p.ID != current.ID {
					siblings = append(siblings, p)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		subordinates, err = s.users.ListCreatedBy(gctx, current.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load team of %s: %w", userID, err)
	}

	ids := []string{current.ID}
	if superior != nil {
		ids = append(ids, superior.ID)
	}
	for _, u := range siblings {
		ids = append(ids, u.ID)
	}
	for _, u := range subordinates {
		ids = append(ids, u.ID)
	}
	counts, err := s.users.CountCreatedBy(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count subordinates: %w", err)
	}

	team := &hierarchy.Team{
		CurrentUser:  hierarchy.MemberFromUser(*current, counts[current.ID]),
		Siblings:     toMembers(siblings, counts),
		Subordinates: toMembers(subordinates, counts),
	}
	if superior != nil {
		m := hierarchy.MemberFromUser(*superior, counts[superior.ID])
		team.Superior = &m
	}
	return team, nil
}

// LoadSubordinates returns the direct subordinates of userID with their own counts.
func (s *TeamService) LoadSubordinates(ctx context.Context, userID, level string) ([]hierarchy.Member, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.users.ListCreatedBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subordinates of %s: %w", userID, err)
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	counts, err := s.users.CountCreatedBy(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count subordinates: %w", err)
	}
	return toMembers(users, counts), nil
}

// CreateUser creates a user whose superior is creatorID. An empty creatorID makes a root.
func (s *TeamService) CreateUser(ctx context.Context, creatorID string, in UserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apperrors.Invalid("email", "is required")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperrors.Invalid("email", "is already registered")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	status := in.Status
	if status == "" {
		status = models.UserStatusActive
	}
	u := &models.User{
		Email:     email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Status:    status,
	}
	if in.RoleID != "" {
		roleID := in.RoleID
		u.RoleID = &roleID
	}
	if creatorID != "" {
		creator := creatorID
		u.CreatedBy = &creator
	}
	if err := s.users.CreateUser(ctx, u, dedupe(in.AffiliateIDs)); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func toMembers(users []models.User, counts map[string]int64) []hierarchy.Member {
	out := make([]hierarchy.Member, 0, len(users))
	for _, u := range users {
		out = append(out, hierarchy.MemberFromUser(u, counts[u.ID]))
	}
	return out
}
