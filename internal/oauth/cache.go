package oauth

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// TokenProvider hands out access tokens for a credential.
// Both *Exchanger and *Cache implement it.
type TokenProvider interface {
	Exchange(ctx context.Context, cred *credentials.ServiceAccountCredential) (AccessToken, error)
}

// HitRecorder counts cache hits; *metrics.Metrics satisfies it.
type HitRecorder interface {
	IncTokenCacheHit()
}

type cachedToken struct {
	token     AccessToken
	refreshAt time.Time
}

// Cache reuses tokens until a fraction of their lifetime has elapsed and
// collapses concurrent refreshes for one credential into a single exchange.
type Cache struct {
	next         TokenProvider
	entries      *gocache.Cache
	group        singleflight.Group
	refreshRatio float64
	now          func() time.Time
	hits         HitRecorder
	logger       *slog.Logger
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithRefreshRatio sets the fraction of the lifetime after which a token is
// refreshed. Values outside (0, 1] fall back to 0.9.
func WithRefreshRatio(ratio float64) CacheOption {
	return func(c *Cache) {
		if ratio > 0 && ratio <= 1 {
			c.refreshRatio = ratio
		}
	}
}

// WithCacheClock overrides the clock used to decide freshness.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithHitRecorder reports cache hits to r.
func WithHitRecorder(r HitRecorder) CacheOption {
	return func(c *Cache) { c.hits = r }
}

func NewCache(next TokenProvider, logger *slog.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		next:         next,
		entries:      gocache.New(gocache.NoExpiration, 10*time.Minute),
		refreshRatio: 0.9,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange returns a cached token for cred or performs one shared exchange.
func (c *Cache) Exchange(ctx context.Context, cred *credentials.ServiceAccountCredential) (AccessToken, error) {
	key := cred.CacheKey()
	if tok, ok := c.lookup(key); ok {
		if c.hits != nil {
			c.hits.IncTokenCacheHit()
		}
		return tok, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if tok, ok := c.lookup(key); ok {
			return tok, nil
		}
		// The shared exchange must not die with whichever caller started it.
		tok, err := c.next.Exchange(context.WithoutCancel(ctx), cred)
		if err != nil {
			return AccessToken{}, err
		}
		c.store(key, tok)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return AccessToken{}, pusherr.Transport("oauth.cache", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	}
}

// Invalidate drops the cached token for cred, e.g. after the push API
// rejected it as unauthenticated.
func (c *Cache) Invalidate(cred *credentials.ServiceAccountCredential) {
	c.entries.Delete(cred.CacheKey())
}

func (c *Cache) lookup(key string) (AccessToken, bool) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return AccessToken{}, false
	}
	entry := raw.(cachedToken)
	if !c.now().Before(entry.refreshAt) {
		return AccessToken{}, false
	}
	return entry.token, true
}

func (c *Cache) store(key string, tok AccessToken) {
	lifetime := tok.Lifetime()
	refreshAt := tok.IssuedAt.Add(time.Duration(float64(lifetime) * c.refreshRatio))
	ttl := refreshAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	c.entries.Set(key, cachedToken{token: tok, refreshAt: refreshAt}, ttl)
	c.logger.Debug("cached access token", slog.Time("refresh_at", refreshAt))
}
