package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"cms0/internal/affiliate"
	"cms0/internal/apperrors"
	"cms0/internal/events"
	"cms0/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ListParams carries pagination, filtering and sorting for List calls.
type ListParams struct {
	Page     int
	Limit    int
	Filters  map[string]interface{}
	Excludes map[string]bool
	Sort     []string
	Order    string
	Includes []string
}

// Offset returns the row offset of the requested page.
func (p ListParams) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// BaseService defines affiliate-scoped CRUD operations. Reads honour the whole scope;
// writes require a single pinned affiliate.
type BaseService[T any] interface {
	Create(ctx context.Context, scope affiliate.Scope, entity *T, includes ...string) error
	Get(ctx context.Context, scope affiliate.Scope, id string, includes ...string) (*T, error)
	List(ctx context.Context, scope affiliate.Scope, params ListParams) ([]T, int64, error)
	Update(ctx context.Context, scope affiliate.Scope, id string, entity *T, includes ...string) error
	Delete(ctx context.Context, scope affiliate.Scope, id string) error
}

// BaseServiceImpl implements BaseService
type BaseServiceImpl[T any] struct {
	db        *gorm.DB
	modelType T
	entity    string
	columns   map[string]string
}

func GormTableName(db *gorm.DB, v any) string {
	return db.NamingStrategy.TableName(reflect.TypeOf(v).Name())
}

// NewBaseService creates a new base service
func NewBaseService[T any](db *gorm.DB, modelType T) BaseService[T] {
	return &BaseServiceImpl[T]{
		db:        db,
		modelType: modelType,
		entity:    GormTableName(db, modelType),
		columns:   columnIndex(db.NamingStrategy, reflect.TypeOf(modelType)),
	}
}

// columnIndex maps both Go field names and json names of t (embedded structs included) to
// their column so query parameters can only address real columns.
func columnIndex(naming schema.Namer, t reflect.Type) map[string]string {
	out := make(map[string]string)
	var visit func(reflect.Type)
	visit = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				visit(f.Type)
				continue
			}
			if !f.IsExported() || f.Tag.Get("gorm") == "-" {
				continue
			}
			switch f.Type.Kind() {
			case reflect.Struct, reflect.Slice, reflect.Ptr:
				if f.Type != reflect.TypeOf(time.Time{}) && !isScalarPtr(f.Type) {
					continue
				}
			}
			column := naming.ColumnName("", f.Name)
			out[f.Name] = column
			out[column] = column
			if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
				out[name] = column
			}
		}
	}
	visit(t)
	return out
}

func isScalarPtr(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && (t.Elem().Kind() != reflect.Struct || t.Elem() == reflect.TypeOf(time.Time{}))
}

// Column resolves a query field name to a column of T.
func (s *BaseServiceImpl[T]) Column(name string) (string, bool) {
	c, ok := s.columns[name]
	return c, ok
}

// applyIncludes adds preload statements to the query for each include
func (s *BaseServiceImpl[T]) applyIncludes(query *gorm.DB, includes ...string) *gorm.DB {
	for _, include := range includes {
		if include = strings.TrimSpace(include); include != "" {
			query = query.Preload(include)
		}
	}
	return query
}

func (s *BaseServiceImpl[T]) applyExcludes(query *gorm.DB, excludes map[string]bool) *gorm.DB {
	for field := range excludes {
		if column, ok := s.Column(field); ok {
			query = query.Omit(column)
		}
	}
	return query
}

func (s *BaseServiceImpl[T]) scoped(ctx context.Context, scope affiliate.Scope) *gorm.DB {
	query := s.db.WithContext(ctx).Model(new(T)).Where("is_deleted = ?", false)
	if _, owned := any(new(T)).(models.AffiliateOwned); owned {
		query = query.Scopes(scope.Scoper("affiliate_id"))
	}
	return query
}

func (s *BaseServiceImpl[T]) notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(s.entity)
	}
	return err
}

func (s *BaseServiceImpl[T]) Create(ctx context.Context, scope affiliate.Scope, entity *T, includes ...string) error {
	if owned, ok := any(entity).(models.AffiliateOwned); ok {
		affiliateID, err := scope.Single()
		if err != nil {
			return err
		}
		owned.SetAffiliateID(affiliateID)
	}

	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}

	if len(includes) > 0 {
		id := reflect.ValueOf(entity).Elem().FieldByName("ID").String()
		if err := s.applyIncludes(s.db.WithContext(ctx), includes...).First(entity, "id = ?", id).Error; err != nil {
			return s.notFound(err)
		}
	}

	events.Emit(fmt.Sprintf("%s.created", s.entity), entity)

	return nil
}

func (s *BaseServiceImpl[T]) Get(ctx context.Context, scope affiliate.Scope, id string, includes ...string) (*T, error) {
	var entity T
	query := s.applyIncludes(s.scoped(ctx, scope), includes...)
	if err := query.First(&entity, "id = ?", id).Error; err != nil {
		return nil, s.notFound(err)
	}
	return &entity, nil
}

func (s *BaseServiceImpl[T]) List(ctx context.Context, scope affiliate.Scope, params ListParams) ([]T, int64, error) {
	var entities []T
	var total int64

	query := s.scoped(ctx, scope)
	for key, value := range params.Filters {
		column, ok := s.Column(key)
		if !ok {
			return nil, 0, apperrors.Invalid(key, "unknown filter field")
		}
		query = query.Where(column+" = ?", value)
	}

	// Count before pagination so total reflects every matching row.
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = s.applyIncludes(query, params.Includes...)
	query = s.applyExcludes(query, params.Excludes)

	order := "asc"
	if strings.EqualFold(params.Order, "desc") {
		order = "desc"
	}
	sorted := false
	for _, field := range params.Sort {
		if column, ok := s.Column(strings.TrimSpace(field)); ok {
			query = query.Order(column + " " + order)
			sorted = true
		}
	}
	if !sorted {
		query = query.Order("created_at desc")
	}

	if params.Limit > 0 {
		query = query.Offset(params.Offset()).Limit(params.Limit)
	}

	if err := query.Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return entities, total, nil
}

func (s *BaseServiceImpl[T]) Update(ctx context.Context, scope affiliate.Scope, id string, entity *T, includes ...string) error {
	if _, err := scope.Single(); err != nil {
		if _, owned := any(entity).(models.AffiliateOwned); owned {
			return err
		}
	}

	result := s.scoped(ctx, scope).
		Where("id = ?", id).
		Omit("id", "affiliate_id", "author_id", "created_at").
		Updates(entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound(s.entity)
	}

	if err := s.applyIncludes(s.db.WithContext(ctx), includes...).First(entity, "id = ?", id).Error; err != nil {
		return s.notFound(err)
	}

	events.Emit(fmt.Sprintf("%s.updated", s.entity), entity)

	return nil
}

func (s *BaseServiceImpl[T]) Delete(ctx context.Context, scope affiliate.Scope, id string) error {
	if _, err := scope.Single(); err != nil {
		if _, owned := any(new(T)).(models.AffiliateOwned); owned {
			return err
		}
	}

	result := s.scoped(ctx, scope).
		Where("id = ?", id).
		Updates(map[string]interface{}{"deleted_at": time.Now(), "is_deleted": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound(s.entity)
	}

	events.Emit(fmt.Sprintf("%s.deleted", s.entity), id)

	return nil
}
