package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/models"

	"github.com/google/uuid"
)

type fakeRBACRepo struct {
	mu        sync.Mutex
	roles     map[string]*models.Role
	perms     map[string]*models.Permission
	links     map[string]map[string]bool
	userRoles map[string]string
}

func newFakeRBACRepo() *fakeRBACRepo {
	return &fakeRBACRepo{
		roles:     make(map[string]*models.Role),
		perms:     make(map[string]*models.Permission),
		links:     make(map[string]map[string]bool),
		userRoles: make(map[string]string),
	}
}

func (r *fakeRBACRepo) addRole(name string, system bool) *models.Role {
	role := &models.Role{Name: name, IsSystem: system}
	role.ID = uuid.NewString()
	r.roles[role.ID] = role
	return role
}

func (r *fakeRBACRepo) addPermission(entity string, action models.PermissionAction, system bool) *models.Permission {
	p := &models.Permission{Entity: entity, Action: action, Name: models.PermissionName(entity, action), IsSystem: system}
	p.ID = uuid.NewString()
	r.perms[p.ID] = p
	return p
}

func (r *fakeRBACRepo) withPerms(role models.Role) *models.Role {
	role.Permissions = nil
	for pid := range r.links[role.ID] {
		role.Permissions = append(role.Permissions, *r.perms[pid])
	}
	sort.Slice(role.Permissions, func(i, j int) bool { return role.Permissions[i].Name < role.Permissions[j].Name })
	return &role
}

func (r *fakeRBACRepo) ListRoles(ctx context.Context) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Role
	for _, role := range r.roles {
		out = append(out, *r.withPerms(*role))
	}
	return out, nil
}

func (r *fakeRBACRepo) GetRole(ctx context.Context, id string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, apperrors.NotFound("role")
	}
	return r.withPerms(*role), nil
}

func (r *fakeRBACRepo) CreateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role.ID = uuid.NewString()
	stored := *role
	r.roles[role.ID] = &stored
	return nil
}

func (r *fakeRBACRepo) UpdateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID].DisplayName = role.DisplayName
	return nil
}

func (r *fakeRBACRepo) DeleteRole(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, id)
	delete(r.links, id)
	return nil
}

func (r *fakeRBACRepo) CountUsersWithRole(ctx context.Context, roleID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rid := range r.userRoles {
		if rid == roleID {
			n++
		}
	}
	return n, nil
}

func (r *fakeRBACRepo) ListPermissions(ctx context.Context, entity string) ([]models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Permission
	for _, p := range r.perms {
		if entity == "" || p.Entity == entity {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRBACRepo) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.perms[id]
	if !ok {
		return nil, apperrors.NotFound("permission")
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRBACRepo) FindPermissions(ctx context.Context, ids []string) ([]models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Permission
	for _, id := range ids {
		if p, ok := r.perms[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRBACRepo) CreatePermission(ctx context.Context, perm *models.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.perms {
		if p.Name == perm.Name {
			return apperrors.Invalid("name", "already exists")
		}
	}
	perm.ID = uuid.NewString()
	stored := *perm
	r.perms[perm.ID] = &stored
	return nil
}

func (r *fakeRBACRepo) DeletePermission(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.perms, id)
	return nil
}

func (r *fakeRBACRepo) CountRolesWithPermission(ctx context.Context, permissionID string) (int64, error) {
	ids := r.rolesWith(permissionID)
	return int64(len(ids)), nil
}

func (r *fakeRBACRepo) rolesWith(permissionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for roleID, perms := range r.links {
		if perms[permissionID] {
			out = append(out, roleID)
		}
	}
	return out
}

func (r *fakeRBACRepo) AddRolePermission(ctx context.Context, roleID, permissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links[roleID] == nil {
		r.links[roleID] = make(map[string]bool)
	}
	r.links[roleID][permissionID] = true
	return nil
}

func (r *fakeRBACRepo) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links[roleID], permissionID)
	return nil
}

func (r *fakeRBACRepo) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[roleID] = make(map[string]bool)
	for _, id := range permissionIDs {
		r.links[roleID][id] = true
	}
	return nil
}

func (r *fakeRBACRepo) RolePermissionNames(ctx context.Context, roleID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for pid := range r.links[roleID] {
		out = append(out, r.perms[pid].Name)
	}
	return out, nil
}

func (r *fakeRBACRepo) UserRoleID(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userRoles[userID], nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	roles []string
}

func (i *recordingInvalidator) Invalidate(ctx context.Context, roleIDs ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.roles = append(i.roles, roleIDs...)
	return nil
}

func (i *recordingInvalidator) EnqueueRoleInvalidation(ctx context.Context, roleIDs []string) error {
	return i.Invalidate(ctx, roleIDs...)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	order []string
	fail  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) add(email string, creator *models.User) *models.User {
	u := &models.User{Email: email, FirstName: email, Status: models.UserStatusActive}
	u.ID = uuid.NewString()
	if creator != nil {
		id := creator.ID
		u.CreatedBy = &id
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)
	return u
}

func (r *fakeUserRepo) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, u *models.User, affiliateIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = uuid.NewString()
	stored := *u
	r.users[u.ID] = &stored
	r.order = append(r.order, u.ID)
	return nil
}

func (r *fakeUserRepo) ListCreatedBy(ctx context.Context, creatorID string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	var out []models.User
	for _, id := range r.order {
		u := r.users[id]
		if u.CreatedBy != nil && *u.CreatedBy == creatorID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CountCreatedBy(ctx context.Context, creatorIDs []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(creatorIDs))
	for _, id := range creatorIDs {
		want[id] = true
	}
	out := make(map[string]int64)
	for _, u := range r.users {
		if u.CreatedBy != nil && want[*u.CreatedBy] {
			out[*u.CreatedBy]++
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CountUsers(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

// fakeMenus is an in-memory BaseService[models.Menu] honouring affiliate scopes.
type fakeMenus struct {
	mu     sync.Mutex
	menus  map[string]*models.Menu
	failOn error
}

func newFakeMenus() *fakeMenus {
	return &fakeMenus{menus: make(map[string]*models.Menu)}
}

func (f *fakeMenus) Create(ctx context.Context, scope affiliate.Scope, m *models.Menu, _ ...string) error {
	id, err := scope.Single()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.NewString()
	m.AffiliateID = id
	m.CreatedAt = time.Now()
	stored := *m
	f.menus[m.ID] = &stored
	return nil
}

func (f *fakeMenus) Get(ctx context.Context, scope affiliate.Scope, id string, _ ...string) (*models.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.menus[id]
	if !ok || !scope.Contains(m.AffiliateID) {
		return nil, apperrors.NotFound("menus")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMenus) List(ctx context.Context, scope affiliate.Scope, params ListParams) ([]models.Menu, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Menu
	for _, m := range f.menus {
		if scope.Contains(m.AffiliateID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, int64(len(out)), nil
}

func (f *fakeMenus) Update(ctx context.Context, scope affiliate.Scope, id string, patch *models.Menu, _ ...string) error {
	if _, err := scope.Single(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil {
		return f.failOn
	}
	m, ok := f.menus[id]
	if !ok || !scope.Contains(m.AffiliateID) {
		return apperrors.NotFound("menus")
	}
	if patch.Title != "" {
		m.Title = patch.Title
	}
	if patch.Platform != "" {
		m.Platform = patch.Platform
	}
	if patch.Status != "" {
		m.Status = patch.Status
	}
	if patch.Links != nil {
		m.Links = patch.Links
	}
	*patch = *m
	return nil
}

func (f *fakeMenus) Delete(ctx context.Context, scope affiliate.Scope, id string) error {
	if _, err := scope.Single(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.menus[id]
	if !ok || !scope.Contains(m.AffiliateID) {
		return apperrors.NotFound("menus")
	}
	delete(f.menus, id)
	return nil
}
