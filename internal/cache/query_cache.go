package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
)

// Keys of the single-value queries a session caches.
const (
	KeyAuthUser       = "authUser"
	KeySuggestedUsers = "suggestedUsers"
	KeyNotifications  = "notifications"
	profilePrefix     = "userProfile:"
)

func ProfileKey(username string) string { return profilePrefix + username }

// QueryCache holds non-paginated query results (current user, suggested users,
// profiles, notifications). Entries go stale after a fixed time and are
// dropped by explicit invalidation after mutations.
type QueryCache struct {
	items *ttlcache.Cache[string, any]
}

func NewQueryCache(staleTime time.Duration) *QueryCache {
	return &QueryCache{
		items: ttlcache.New[string, any](
			ttlcache.WithTTL[string, any](staleTime),
			ttlcache.WithDisableTouchOnHit[string, any](),
		),
	}
}

func (q *QueryCache) Get(key string) (any, bool) {
	item := q.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (q *QueryCache) Set(key string, value any) {
	q.items.Set(key, value, ttlcache.DefaultTTL)
}

func (q *QueryCache) Has(key string) bool {
	_, ok := q.Get(key)
	return ok
}

func (q *QueryCache) Invalidate(keys ...string) {
	for _, key := range keys {
		q.items.Delete(key)
	}
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (q *QueryCache) InvalidatePrefix(prefix string) {
	for _, key := range q.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			q.items.Delete(key)
		}
	}
}

// InvalidateProfiles drops every cached user profile.
func (q *QueryCache) InvalidateProfiles() {
	q.InvalidatePrefix(profilePrefix)
}

func (q *QueryCache) Clear() {
	q.items.DeleteAll()
}

// Load returns the cached value for key, or runs loader and caches its result.
// Failed loads are not cached.
func Load[T any](ctx context.Context, q *QueryCache, key string, loader func(context.Context) (T, error)) (T, error) {
	if cached, ok := q.Get(key); ok {
		if value, ok := cached.(T); ok {
			return value, nil
		}
		q.Invalidate(key)
	}

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, errors.Wrapf(err, "load %s", key)
	}
	q.Set(key, value)
	return value, nil
}
