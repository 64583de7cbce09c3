package memory

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

const defaultUserContextEntries = 8192

// UserContextCache keeps built user contexts in an in-process expirable LRU,
// keyed by user id and current organization. Contexts are immutable once
// built, so sharing a pointer between requests is safe.
type UserContextCache struct {
	cache *lru.LRU[string, *domain.UserContext]
}

// NewUserContextCache builds an LRU-backed user context cache.
func NewUserContextCache(maxEntries int, ttl time.Duration) *UserContextCache {
	if maxEntries <= 0 {
		maxEntries = defaultUserContextEntries
	}

	return &UserContextCache{
		cache: lru.NewLRU[string, *domain.UserContext](maxEntries, nil, ttl),
	}
}

func contextKey(userID string, organizationID *string) string {
	if organizationID == nil {
		return userID
	}
	return userID + "|" + *organizationID
}

// Get retrieves a cached context for the user and organization pair.
func (c *UserContextCache) Get(_ context.Context, userID string, organizationID *string) (*domain.UserContext, error) {
	uctx, ok := c.cache.Get(contextKey(userID, organizationID))
	if !ok {
		return nil, repository.ErrNotFound
	}
	return uctx, nil
}

// Set stores a built context under its user and organization key.
func (c *UserContextCache) Set(_ context.Context, userContext *domain.UserContext, _ time.Duration) error {
	c.cache.Add(contextKey(userContext.UserID, userContext.CurrentOrganizationID), userContext)
	return nil
}

// InvalidateUser drops every cached context for the user across all
// organization keys.
func (c *UserContextCache) InvalidateUser(_ context.Context, userID string) error {
	for _, key := range c.cache.Keys() {
		if key == userID || strings.HasPrefix(key, userID+"|") {
			c.cache.Remove(key)
		}
	}
	return nil
}

// InvalidateAll drops every cached context.
func (c *UserContextCache) InvalidateAll(_ context.Context) error {
	c.cache.Purge()
	return nil
}

var _ port.UserContextCache = (*UserContextCache)(nil)
