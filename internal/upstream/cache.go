package upstream

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"llmproxy/pkg/types"
)

const modelsKey = "models"

// CachedClient serves ListModels from a TTL cache so repeated listings do not
// hammer the upstream. All other operations delegate to the wrapped Client;
// a successful Pull invalidates the cached listing.
type CachedClient struct {
	*Client
	cache *gocache.Cache
}

// NewCached wraps c with a model-list cache of the given TTL.
func NewCached(c *Client, ttl time.Duration) *CachedClient {
	return &CachedClient{
		Client: c,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// ListModels returns the cached listing when fresh, refreshing it otherwise.
func (cc *CachedClient) ListModels(ctx context.Context) ([]types.Model, error) {
	if v, ok := cc.cache.Get(modelsKey); ok {
		return v.([]types.Model), nil
	}
	models, err := cc.Client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	cc.cache.SetDefault(modelsKey, models)
	return models, nil
}

// Pull delegates to the wrapped client and drops the cached listing on
// success, so the new model shows up immediately.
func (cc *CachedClient) Pull(ctx context.Context, name string) error {
	if err := cc.Client.Pull(ctx, name); err != nil {
		return err
	}
	cc.cache.Delete(modelsKey)
	return nil
}

// Status augments the client status with the cache item count.
func (cc *CachedClient) Status(ctx context.Context) types.StatusResponse {
	st := cc.Client.Status(ctx)
	st.ModelsCached = cc.cache.ItemCount()
	return st
}
