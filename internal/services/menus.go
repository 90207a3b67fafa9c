package services

import (
	"context"
	"fmt"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/events"
	"cms0/internal/menutree"
	"cms0/internal/metrics"
	"cms0/internal/models"

	"gorm.io/datatypes"
)

// MenuService stores menus and edits their item trees. Writes replace the whole links
// document; concurrent editors of one menu follow last-write-wins.
type MenuService struct {
	menus   BaseService[models.Menu]
	metrics *metrics.Metrics
}

func NewMenuService(menus BaseService[models.Menu], m *metrics.Metrics) *MenuService {
	return &MenuService{menus: menus, metrics: m}
}

// normalizeLinks parses raw strictly, fills missing or repeated ids and validates the result.
func normalizeLinks(raw []byte) (datatypes.JSON, error) {
	tree, err := menutree.Parse(raw)
	if err != nil {
		return nil, err
	}
	menutree.Normalize(tree, nil)
	if err := menutree.Validate(tree); err != nil {
		return nil, err
	}
	out, err := menutree.Marshal(tree)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func withTotal(m *models.Menu) {
	m.TotalItems = menutree.ParseLenient(m.Links).Count()
}

func (s *MenuService) List(ctx context.Context, scope affiliate.Scope, params ListParams) ([]models.Menu, int64, error) {
	menus, total, err := s.menus.List(ctx, scope, params)
	if err != nil {
		return nil, 0, err
	}
	for i := range menus {
		withTotal(&menus[i])
	}
	return menus, total, nil
}

func (s *MenuService) Get(ctx context.Context, scope affiliate.Scope, id string) (*models.Menu, error) {
	m, err := s.menus.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	withTotal(m)
	return m, nil
}

func (s *MenuService) Create(ctx context.Context, scope affiliate.Scope, m *models.Menu) error {
	if m.Platform == "" {
		m.Platform = models.PlatformWeb
	}
	if !models.IsValidPlatform(m.Platform) {
		return apperrors.Invalid("platform", fmt.Sprintf("unknown platform %q", m.Platform))
	}
	links, err := normalizeLinks(m.Links)
	if err != nil {
		return err
	}
	m.Links = links
	if err := s.menus.Create(ctx, scope, m); err != nil {
		return err
	}
	withTotal(m)
	return nil
}

// Update changes title, platform or status and, when patch.Links is set, replaces the tree.
func (s *MenuService) Update(ctx context.Context, scope affiliate.Scope, id string, patch *models.Menu) (*models.Menu, error) {
	if patch.Platform != "" && !models.IsValidPlatform(patch.Platform) {
		return nil, apperrors.Invalid("platform", fmt.Sprintf("unknown platform %q", patch.Platform))
	}
	if patch.Links != nil {
		links, err := normalizeLinks(patch.Links)
		if err != nil {
			return nil, err
		}
		patch.Links = links
	}
	if err := s.menus.Update(ctx, scope, id, patch); err != nil {
		return nil, err
	}
	withTotal(patch)
	return patch, nil
}

// Replace overwrites the links document of a menu.
func (s *MenuService) Replace(ctx context.Context, scope affiliate.Scope, id string, links []byte) (*models.Menu, error) {
	normalized, err := normalizeLinks(links)
	if err != nil {
		s.metrics.MenuSaved(err)
		return nil, err
	}
	m, err := s.saveLinks(ctx, scope, id, normalized)
	s.metrics.MenuSaved(err)
	return m, err
}

func (s *MenuService) saveLinks(ctx context.Context, scope affiliate.Scope, id string, links datatypes.JSON) (*models.Menu, error) {
	if len(links) == 0 {
		links = datatypes.JSON("[]")
	}
	m := &models.Menu{Links: links}
	if err := s.menus.Update(ctx, scope, id, m); err != nil {
		return nil, err
	}
	withTotal(m)
	return m, nil
}

func (s *MenuService) Delete(ctx context.Context, scope affiliate.Scope, id string) error {
	return s.menus.Delete(ctx, scope, id)
}

// Edit opens an editor on the stored tree and lets fn change it. fn reports whether it
// changed anything: when it did the result is saved, otherwise the editor is discarded
// and the stored menu is returned untouched. When fn fails nothing is written. A saved
// reorder emits MenusReordered.
func (s *MenuService) Edit(ctx context.Context, scope affiliate.Scope, id string, fn func(*menutree.Editor) (bool, error)) (*models.Menu, error) {
	if _, err := scope.Single(); err != nil {
		return nil, err
	}
	current, err := s.menus.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	editor := menutree.NewEditor()
	if err := editor.ShowList(); err != nil {
		return nil, err
	}
	if err := editor.Open(current.ID, current.Links); err != nil {
		return nil, err
	}
	reordered := false
	editor.OnReorder = func(menutree.Tree) { reordered = true }

	changed, err := fn(editor)
	if err != nil || !changed {
		_ = editor.Discard()
		if err != nil {
			return nil, err
		}
		withTotal(current)
		return current, nil
	}

	var saved *models.Menu
	_, err = editor.Save(ctx, func(ctx context.Context, menuID string, links []byte) error {
		m, err := s.saveLinks(ctx, scope, menuID, datatypes.JSON(links))
		saved = m
		return err
	})
	s.metrics.MenuSaved(err)
	if err != nil {
		return nil, err
	}
	if reordered {
		events.Emit(events.MenusReordered, saved)
	}
	return saved, nil
}
