package authz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cms0/internal/metrics"
	console "cms0/internal/utils/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var log = console.New("AUTHZ")

const cacheKeyPrefix = "authz:role:"

// RoleStore loads the source of truth for role permissions.
type RoleStore interface {
	RolePermissionNames(ctx context.Context, roleID string) ([]string, error)
	UserRoleID(ctx context.Context, userID string) (string, error)
}

// Checker resolves permission sets through an optional Redis cache. Concurrent misses for
// the same role share one store load.
type Checker struct {
	store   RoleStore
	redis   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

func NewChecker(store RoleStore, client *redis.Client, ttl time.Duration, m *metrics.Metrics) *Checker {
	return &Checker{store: store, redis: client, ttl: ttl, metrics: m}
}

func cacheKey(roleID string) string {
	return cacheKeyPrefix + roleID
}

// PermissionsForRole returns the permission set of roleID. An empty roleID yields an empty set.
func (c *Checker) PermissionsForRole(ctx context.Context, roleID string) (Set, error) {
	if roleID == "" {
		return Set{}, nil
	}

	if names, ok := c.cached(ctx, roleID); ok {
		return NewSet(names...), nil
	}

	v, err, _ := c.group.Do(roleID, func() (interface{}, error) {
		names, err := c.store.RolePermissionNames(ctx, roleID)
		if err != nil {
			return nil, err
		}
		c.remember(ctx, roleID, names)
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return NewSet(v.([]string)...), nil
}

// PermissionsForUser resolves the user's role then its permission set.
func (c *Checker) PermissionsForUser(ctx context.Context, userID string) (Set, error) {
	roleID, err := c.store.UserRoleID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.PermissionsForRole(ctx, roleID)
}

// Invalidate drops cached sets so the next check reads the store.
func (c *Checker) Invalidate(ctx context.Context, roleIDs ...string) error {
	if c.redis == nil || len(roleIDs) == 0 {
		return nil
	}
	keys := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		keys[i] = cacheKey(id)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return log.Error("Failed to invalidate permission cache", err)
	}
	return nil
}

func (c *Checker) cached(ctx context.Context, roleID string) ([]string, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, cacheKey(roleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.PermissionCacheLookup("miss")
		return nil, false
	}
	if err != nil {
		c.metrics.PermissionCacheLookup("error")
		log.Warn("Permission cache read failed for role %s: %v", roleID, err)
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		c.metrics.PermissionCacheLookup("error")
		log.Warn("Discarding corrupt permission cache entry for role %s: %v", roleID, err)
		return nil, false
	}
	c.metrics.PermissionCacheLookup("hit")
	return names, true
}

func (c *Checker) remember(ctx context.Context, roleID string, names []string) {
	if c.redis == nil {
		return
	}
	if names == nil {
		names = []string{}
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(roleID), raw, c.ttl).Err(); err != nil {
		log.Warn("Permission cache write failed for role %s: %v", roleID, err)
	}
}
