package middleware

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CodeLoader fetches the permission codes of a role from the store.
type CodeLoader func(ctx context.Context, roleID string) ([]string, error)

// PermissionCache keeps each role's permission codes for a fixed TTL. The TTL
// is the longest a replica can keep authorizing with codes that have since
// changed.
type PermissionCache struct {
	load  CodeLoader
	cache *lru.LRU[string, []string]
}

// NewPermissionCache sizes the cache for size roles.
func NewPermissionCache(load CodeLoader, size int, ttl time.Duration) *PermissionCache {
	if size < 1 {
		size = 256
	}
	return &PermissionCache{
		load:  load,
		cache: lru.NewLRU[string, []string](size, nil, ttl),
	}
}

// Codes returns the cached codes of roleID, loading them on a miss.
func (p *PermissionCache) Codes(ctx context.Context, roleID string) ([]string, error) {
	if codes, ok := p.cache.Get(roleID); ok {
		return codes, nil
	}
	codes, err := p.load(ctx, roleID)
	if err != nil {
		return nil, err
	}
	p.cache.Add(roleID, codes)
	return codes, nil
}

// Purge drops roleID, or every role when roleID is empty.
func (p *PermissionCache) Purge(roleID string) {
	if roleID == "" {
		p.cache.Purge()
		return
	}
	p.cache.Remove(roleID)
}
