package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cms0/internal/affiliate"
	"cms0/internal/api/middleware"
	"cms0/internal/api/validator"
	"cms0/internal/apperrors"
	"cms0/internal/authz"
	"cms0/internal/hierarchy"
	"cms0/internal/models"
	"cms0/internal/services"
	"cms0/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsers struct {
	mu       sync.Mutex
	users    []*models.User
	sessions map[string]*models.AuthTransaction
	lookups  int
}

func newMemoryUsers(users ...*models.User) *memoryUsers {
	return &memoryUsers{users: users, sessions: map[string]*models.AuthTransaction{}}
}

func (m *memoryUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (m *memoryUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (m *memoryUsers) CreateUser(ctx context.Context, u *models.User, affiliateIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users = append(m.users, u)
	return nil
}

func (m *memoryUsers) ListCreatedBy(ctx context.Context, creatorID string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.CreatedBy != nil && *u.CreatedBy == creatorID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryUsers) CountCreatedBy(ctx context.Context, creatorIDs []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, u := range m.users {
		if u.CreatedBy != nil {
			counts[*u.CreatedBy]++
		}
	}
	return counts, nil
}

func (m *memoryUsers) CountUsers(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memoryUsers) CreateSession(ctx context.Context, tx *models.AuthTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	m.sessions[tx.ID] = tx
	return nil
}

func (m *memoryUsers) FindSession(ctx context.Context, token string) (*models.AuthTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == token {
			return s, nil
		}
	}
	return nil, apperrors.NotFound("session")
}

func (m *memoryUsers) FindSessionByRefresh(ctx context.Context, refresh string) (*models.AuthTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Refresh == refresh {
			return s, nil
		}
	}
	return nil, apperrors.NotFound("session")
}

func (m *memoryUsers) UpdateSessionToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return apperrors.NotFound("session")
	}
	s.Token = token
	return nil
}

func (m *memoryUsers) RevokeSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryUsers) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type memberships map[string][]string

func (f memberships) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	return nil, apperrors.NotFound("affiliate")
}

func (f memberships) IsMember(ctx context.Context, userID, affiliateID string) (bool, error) {
	for _, id := range f[userID] {
		if id == affiliateID {
			return true, nil
		}
	}
	return false, nil
}

func (f memberships) MemberAffiliateIDs(ctx context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

type stubLimiter struct {
	allow  bool
	resets int
}

func (l *stubLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	return l.allow, nil
}

func (l *stubLimiter) Reset(ctx context.Context, identifier string) error {
	l.resets++
	return nil
}

type stubRoles map[string]*models.Role

func (r stubRoles) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	if role, ok := r[name]; ok {
		return role, nil
	}
	return nil, apperrors.NotFound("role")
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validator.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func activeUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Email: email, Password: hash, FirstName: "Ada", Status: models.UserStatusActive}
	u.ID = uuid.NewString()
	return u
}

func newAuth(users *memoryUsers, members memberships, limiter *stubLimiter, roles stubRoles) *AuthHandler {
	return NewAuthHandler(AuthOptions{
		Users:      users,
		Sessions:   users,
		Affiliates: members,
		Roles:      roles,
		Team:       services.NewTeamService(users),
		Tokens:     utils.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour),
		Limiter:    limiter,
	})
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected an HTTP error, got %v", err)
	return he.Code
}

func TestLoginOpensAffiliateSession(t *testing.T) {
	user := activeUser(t, "ada@example.com", "correct-horse")
	affiliateID := uuid.NewString()
	users := newMemoryUsers(user)
	limiter := &stubLimiter{allow: true}
	h := newAuth(users, memberships{user.ID: {affiliateID}}, limiter, nil)

	body := `{"email":"ADA@example.com","password":"correct-horse","affiliateId":"` + affiliateID + `"}`
	c, rec := newContext(http.MethodPost, "/api/admin/auth/login", body)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.Token)
	assert.NotEmpty(t, resp.Data.RefreshToken)
	assert.Equal(t, affiliateID, resp.Data.AffiliateID)

	require.Len(t, users.sessions, 1)
	for _, s := range users.sessions {
		require.NotNil(t, s.AffiliateID)
		assert.Equal(t, affiliateID, *s.AffiliateID)
		assert.Equal(t, resp.Data.Token, s.Token)
	}
	assert.Equal(t, 1, limiter.resets)
}

func TestLoginRejections(t *testing.T) {
	user := activeUser(t, "ada@example.com", "correct-horse")

	t.Run("wrong password", func(t *testing.T) {
		h := newAuth(newMemoryUsers(user), memberships{}, &stubLimiter{allow: true}, nil)
		c, _ := newContext(http.MethodPost, "/", `{"email":"ada@example.com","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, httpCode(t, h.Login(c)))
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newAuth(newMemoryUsers(user), memberships{}, &stubLimiter{allow: true}, nil)
		c, _ := newContext(http.MethodPost, "/", `{"email":"bob@example.com","password":"correct-horse"}`)
		assert.Equal(t, http.StatusUnauthorized, httpCode(t, h.Login(c)))
	})

	t.Run("rate limited before lookup", func(t *testing.T) {
		users := newMemoryUsers(user)
		h := newAuth(users, memberships{}, &stubLimiter{allow: false}, nil)
		c, _ := newContext(http.MethodPost, "/", `{"email":"ada@example.com","password":"correct-horse"}`)
		assert.Equal(t, http.StatusTooManyRequests, httpCode(t, h.Login(c)))
		assert.Zero(t, users.lookups)
	})

	t.Run("not a member of the affiliate", func(t *testing.T) {
		users := newMemoryUsers(user)
		h := newAuth(users, memberships{}, &stubLimiter{allow: true}, nil)
		body := `{"email":"ada@example.com","password":"correct-horse","affiliateId":"` + uuid.NewString() + `"}`
		c, _ := newContext(http.MethodPost, "/", body)
		assert.ErrorIs(t, h.Login(c), apperrors.ErrForbidden)
		assert.Empty(t, users.sessions)
	})

	t.Run("suspended account", func(t *testing.T) {
		suspended := activeUser(t, "sus@example.com", "correct-horse")
		suspended.Status = models.UserStatusBanned
		h := newAuth(newMemoryUsers(suspended), memberships{}, &stubLimiter{allow: true}, nil)
		c, _ := newContext(http.MethodPost, "/", `{"email":"sus@example.com","password":"correct-horse"}`)
		assert.ErrorIs(t, h.Login(c), apperrors.ErrForbidden)
	})
}

func TestRefreshKeepsAffiliateBinding(t *testing.T) {
	user := activeUser(t, "ada@example.com", "correct-horse")
	users := newMemoryUsers(user)
	h := newAuth(users, memberships{}, nil, nil)

	affiliateID := uuid.NewString()
	refresh, expires, err := h.tokens.GenerateRefreshToken(*user, affiliateID)
	require.NoError(t, err)
	session := &models.AuthTransaction{UserID: user.ID, Token: "old", Refresh: refresh, AffiliateID: &affiliateID, ExpiresAt: expires}
	require.NoError(t, users.CreateSession(context.Background(), session))

	c, rec := newContext(http.MethodPost, "/", `{"refreshToken":"`+refresh+`"}`)
	require.NoError(t, h.RefreshToken(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "old", session.Token)

	claims, err := h.tokens.ParseJWT(session.Token)
	require.NoError(t, err)
	assert.Equal(t, affiliateID, claims.AffiliateID)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	user := activeUser(t, "ada@example.com", "correct-horse")
	users := newMemoryUsers(user)
	h := newAuth(users, memberships{}, nil, nil)

	refresh, _, err := h.tokens.GenerateRefreshToken(*user, "")
	require.NoError(t, err)
	require.NoError(t, users.CreateSession(context.Background(), &models.AuthTransaction{
		UserID: user.ID, Token: "old", Refresh: refresh, ExpiresAt: time.Now().Add(-time.Minute),
	}))

	c, _ := newContext(http.MethodPost, "/", `{"refreshToken":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, h.RefreshToken(c)))
}

func TestRegisterPromotesFirstUserOnly(t *testing.T) {
	users := newMemoryUsers()
	superAdmin := &models.Role{Name: models.RoleSuperAdmin}
	superAdmin.ID = uuid.NewString()
	h := newAuth(users, memberships{}, nil, stubRoles{models.RoleSuperAdmin: superAdmin})

	c, rec := newContext(http.MethodPost, "/", `{"email":"first@example.com","password":"long-enough","firstName":"First"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, _ = newContext(http.MethodPost, "/", `{"email":"second@example.com","password":"long-enough","firstName":"Second"}`)
	require.NoError(t, h.Register(c))

	require.Len(t, users.users, 2)
	require.NotNil(t, users.users[0].RoleID)
	assert.Equal(t, superAdmin.ID, *users.users[0].RoleID)
	assert.Nil(t, users.users[1].RoleID)
	assert.True(t, users.users[1].IsRoot())
}

func TestLogoutRevokesSession(t *testing.T) {
	users := newMemoryUsers()
	session := &models.AuthTransaction{UserID: "u", Token: "t"}
	require.NoError(t, users.CreateSession(context.Background(), session))
	h := newAuth(users, memberships{}, nil, nil)

	c, rec := newContext(http.MethodPost, "/", "")
	c.Set(middleware.ContextSessionID, session.ID)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, users.sessions)
}

func teamFixture() (*memoryUsers, string, string, string) {
	me, sub, leaf := uuid.NewString(), uuid.NewString(), uuid.NewString()
	users := newMemoryUsers(
		&models.User{Base: models.Base{ID: me}, Email: "me@example.com", Status: models.UserStatusActive},
		&models.User{Base: models.Base{ID: sub}, Email: "sub@example.com", Status: models.UserStatusActive, CreatedBy: &me},
		&models.User{Base: models.Base{ID: leaf}, Email: "leaf@example.com", Status: models.UserStatusActive, CreatedBy: &sub},
	)
	return users, me, sub, leaf
}

func TestTeamTreeExpandsRequestedNodes(t *testing.T) {
	users, me, sub, leaf := teamFixture()
	h := NewTeamHandler(services.NewTeamService(users), nil, nil)

	c, rec := newContext(http.MethodGet, "/api/admin/users/my-team/tree?expand="+sub, "")
	c.Set(middleware.ContextUserID, me)
	require.NoError(t, h.Tree(c))

	var resp struct {
		Data hierarchy.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Data.Superior)
	assert.Equal(t, me, resp.Data.Current.Member.ID)
	require.Len(t, resp.Data.Current.Children, 1)

	subNode := resp.Data.Current.Children[0]
	assert.Equal(t, sub, subNode.Member.ID)
	require.Len(t, subNode.Children, 1)
	assert.Equal(t, leaf, subNode.Children[0].Member.ID)
}

func TestTeamTreeUnknownNode(t *testing.T) {
	users, me, _, _ := teamFixture()
	h := NewTeamHandler(services.NewTeamService(users), nil, nil)

	c, _ := newContext(http.MethodGet, "/?expand="+uuid.NewString(), "")
	c.Set(middleware.ContextUserID, me)
	assert.ErrorIs(t, h.Tree(c), apperrors.ErrNotFound)
}

func TestMyTeamRejectsUnsupportedLevel(t *testing.T) {
	users, me, _, _ := teamFixture()
	h := NewTeamHandler(services.NewTeamService(users), nil, nil)

	c, _ := newContext(http.MethodGet, "/?loadLevel=all", "")
	c.Set(middleware.ContextUserID, me)
	assert.ErrorIs(t, h.MyTeam(c), apperrors.ErrValidation)
}

func TestCreateUserStaysInsideScope(t *testing.T) {
	users, me, _, _ := teamFixture()
	h := NewTeamHandler(services.NewTeamService(users), nil, nil)
	pinnedID := uuid.NewString()

	t.Run("defaults to the pinned affiliate", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/", `{"email":"new@example.com","password":"long-enough","firstName":"New"}`)
		c.Set(middleware.ContextUserID, me)
		c.Set(middleware.ContextScope, affiliate.SingleScope(pinnedID))
		require.NoError(t, h.CreateUser(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		created, err := users.GetUserByEmail(context.Background(), "new@example.com")
		require.NoError(t, err)
		require.NotNil(t, created.CreatedBy)
		assert.Equal(t, me, *created.CreatedBy)
	})

	t.Run("foreign affiliate is forbidden", func(t *testing.T) {
		body := `{"email":"other@example.com","password":"long-enough","firstName":"Other","affiliateIds":["` + uuid.NewString() + `"]}`
		c, _ := newContext(http.MethodPost, "/", body)
		c.Set(middleware.ContextUserID, me)
		c.Set(middleware.ContextScope, affiliate.SingleScope(pinnedID))
		assert.ErrorIs(t, h.CreateUser(c), apperrors.ErrForbidden)
	})
}

type roleSets map[string]authz.Set

func (r roleSets) PermissionsForRole(_ context.Context, roleID string) (authz.Set, error) {
	return r[roleID], nil
}

func TestCreateUserLimitsAssignableRoles(t *testing.T) {
	users, me, _, _ := teamFixture()
	editor, admin := uuid.NewString(), uuid.NewString()
	roles := roleSets{
		editor: authz.NewSet("stories.read", "stories.update"),
		admin:  authz.NewSet("*.*", "roles.update", "users.create"),
	}
	h := NewTeamHandler(services.NewTeamService(users), roles, nil)
	pinnedID := uuid.NewString()

	create := func(email, roleID string, caller authz.Set) (*httptest.ResponseRecorder, error) {
		body := `{"email":"` + email + `","password":"long-enough","firstName":"New","roleId":"` + roleID + `"}`
		c, rec := newContext(http.MethodPost, "/", body)
		c.Set(middleware.ContextUserID, me)
		c.Set(middleware.ContextScope, affiliate.SingleScope(pinnedID))
		c.Set(middleware.ContextPermissions, caller)
		return rec, h.CreateUser(c)
	}

	_, err := create("escalate@example.com", admin, authz.NewSet("users.create"))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = users.GetUserByEmail(context.Background(), "escalate@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	rec, err := create("writer@example.com", editor, authz.NewSet("users.create", "stories.read", "stories.update"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	created, err := users.GetUserByEmail(context.Background(), "writer@example.com")
	require.NoError(t, err)
	require.NotNil(t, created.RoleID)
	assert.Equal(t, editor, *created.RoleID)

	rec, err = create("admin@example.com", admin, authz.NewSet("users.create", "roles.update"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDecodeLinks(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"missing", ``, ""},
		{"null", `null`, ""},
		{"array", `[{"title":"Home"}]`, `[{"title":"Home"}]`},
		{"string", `"[{\"title\":\"Home\"}]"`, `[{"title":"Home"}]`},
		{"empty string", `""`, `[]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeLinks(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}

	_, err := decodeLinks(json.RawMessage(`"unterminated`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMenuDetailNeedsPinnedAffiliate(t *testing.T) {
	h := NewMenuHandler(nil)

	c, _ := newContext(http.MethodGet, "/", "")
	c.Set(middleware.ContextScope, affiliate.GlobalScope([]string{"a", "b"}))
	assert.ErrorIs(t, h.Get(c), apperrors.ErrAmbiguousAffiliate)

	c, _ = newContext(http.MethodPost, "/", `{"title":"Main"}`)
	assert.ErrorIs(t, h.Create(c), apperrors.ErrAmbiguousAffiliate)
}

func TestCheckStatusNeedsPublishPermissions(t *testing.T) {
	c, _ := newContext(http.MethodPut, "/", "")
	assert.ErrorIs(t, checkStatus(c, models.ContentStatusDraft, models.ContentStatusPublished), apperrors.ErrForbidden)
	assert.ErrorIs(t, checkStatus(c, models.ContentStatusPublished, models.ContentStatusDraft), apperrors.ErrForbidden)
	assert.NoError(t, checkStatus(c, models.ContentStatusDraft, models.ContentStatusDraft))
	assert.NoError(t, checkStatus(c, models.ContentStatusPublished, ""))
}

type recordingStorage struct {
	keys []string
}

func (s *recordingStorage) UploadFile(ctx context.Context, file []byte, key string, contentType string) (string, error) {
	s.keys = append(s.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (s *recordingStorage) GetSignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	return "https://cdn.example.com/" + key + "?signed", nil
}

func TestUploadRequiresMultipartAndPinnedAffiliate(t *testing.T) {
	storage := &recordingStorage{}
	h := NewUploadHandler(storage, nil)

	c, _ := newContext(http.MethodPost, "/api/admin/files/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.UploadFile(c)))

	c, _ = newContext(http.MethodPost, "/api/admin/files/upload", "")
	c.Request().Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	c.Set(middleware.ContextScope, affiliate.GlobalScope([]string{"a", "b"}))
	assert.ErrorIs(t, h.UploadFile(c), apperrors.ErrAmbiguousAffiliate)
	assert.Empty(t, storage.keys)
}
