package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/linkyapp/linky/internal/config"
)

// TokenCachePrefix is prepended to every cached token key.
const TokenCachePrefix = "linky-token-"

// CachedToken is what a resolved API token is cached as.
// The user itself is never cached so that deactivation takes effect immediately.
type CachedToken struct {
	UserID    uint       `json:"userId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// TokenCache caches the owner of API tokens.
type TokenCache struct {
	tokens *PrefixedCache[CachedToken]
	ttl    time.Duration
}

// NewTokenCache creates a token cache backed by the configured store.
func NewTokenCache(cfg *config.CacheConfig) *TokenCache {
	return &TokenCache{
		tokens: NewPrefixedCache[CachedToken](newCacheInstanceByType(cfg), cfg.Type, TokenCachePrefix),
		ttl:    cfg.TTL,
	}
}

// Get returns the cached token and whether it was found.
func (t *TokenCache) Get(ctx context.Context, key string) (CachedToken, bool) {
	token, err := t.tokens.Get(ctx, key)
	if err != nil {
		return CachedToken{}, false
	}
	return token, true
}

// Set caches a resolved token.
func (t *TokenCache) Set(ctx context.Context, key string, token CachedToken) {
	if err := t.tokens.Set(ctx, key, token, store.WithExpiration(t.ttl)); err != nil {
		log.Warn("failed to cache token", "error", err)
	}
}

// Delete evicts a token, e.g. after logout.
func (t *TokenCache) Delete(ctx context.Context, key string) {
	if err := t.tokens.Delete(ctx, key); err != nil {
		log.Debug("failed to evict token from cache", "error", err)
	}
}

// Clear evicts every cached token.
func (t *TokenCache) Clear(ctx context.Context) {
	if err := t.tokens.Clear(ctx); err != nil {
		log.Errorf("failed to clear cache: %v", err)
	}
}

// Stats returns hit and miss counters of the underlying store.
func (t *TokenCache) Stats() *Stats {
	return &Stats{
		Stats:     t.tokens.GetStats(),
		CacheName: "tokens",
		Type:      t.tokens.GetType(),
	}
}

type Stats struct {
	*codec.Stats
	CacheName string           `json:"cacheName"`
	Type      config.CacheType `json:"type"`
}
