package client

import (
	"context"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/jellydator/ttlcache/v3"
)

// Fetcher is satisfied by *Client and by *Cache.
type Fetcher interface {
	Fetch(ctx context.Context, req voicegrant.CredentialRequest) (*Credential, error)
}

// DefaultRefreshMargin is how long before expiry a credential stops being
// served from cache.
const DefaultRefreshMargin = time.Minute

// Cache serves a credential per identity until ExpiresAt minus the refresh
// margin, then fetches a new one.
type Cache struct {
	source Fetcher
	margin time.Duration
	cache  *ttlcache.Cache[string, *Credential]
	now    func() time.Time
}

// NewCache starts the expiry loop; call Close to stop it. A margin <= 0
// means DefaultRefreshMargin.
func NewCache(source Fetcher, margin time.Duration) *Cache {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}

	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *Credential](),
	)
	go cache.Start()

	return &Cache{
		source: source,
		margin: margin,
		cache:  cache,
		now:    time.Now,
	}
}

// Fetch implements Fetcher.
func (c *Cache) Fetch(ctx context.Context, req voicegrant.CredentialRequest) (*Credential, error) {
	if item := c.cache.Get(req.Identity); item != nil {
		return item.Value(), nil
	}

	cred, err := c.source.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if ttl := cred.ExpiresAt.Sub(c.now()) - c.margin; ttl > 0 {
		c.cache.Set(req.Identity, cred, ttl)
	}
	return cred, nil
}

// Invalidate drops the cached credential for identity, e.g. after the
// platform rejected it.
func (c *Cache) Invalidate(identity string) {
	c.cache.Delete(identity)
}

func (c *Cache) Len() int {
	return c.cache.Len()
}

func (c *Cache) Close() {
	c.cache.Stop()
}
