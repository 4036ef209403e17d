package catalog

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Lister reads services and staff for a merchant.
type Lister interface {
	ListServices(ctx context.Context, merchantID string) ([]Service, error)
	ListStaff(ctx context.Context, merchantID string) ([]Staff, error)
}

// ProfileGetter reads a merchant profile.
type ProfileGetter interface {
	Get(ctx context.Context, merchantID string) (*Profile, error)
}

// CachedCatalog is a read-through Catalog over a Lister and a ProfileGetter.
type CachedCatalog struct {
	lister   Lister
	profiles ProfileGetter
	cache    *cache.Cache
}

var _ Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog creates a catalog caching entries for ttl. A ttl of zero disables caching.
func NewCachedCatalog(lister Lister, profiles ProfileGetter, ttl time.Duration) *CachedCatalog {
	c := &CachedCatalog{lister: lister, profiles: profiles}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

func (c *CachedCatalog) ListServices(ctx context.Context, merchantID string) ([]Service, error) {
	key := "services:" + merchantID
	if v, ok := c.get(key); ok {
		return v.([]Service), nil
	}
	services, err := c.lister.ListServices(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	c.set(key, services)
	return services, nil
}

func (c *CachedCatalog) ListStaff(ctx context.Context, merchantID string) ([]Staff, error) {
	key := "staff:" + merchantID
	if v, ok := c.get(key); ok {
		return v.([]Staff), nil
	}
	staff, err := c.lister.ListStaff(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	c.set(key, staff)
	return staff, nil
}

func (c *CachedCatalog) Profile(ctx context.Context, merchantID string) (*Profile, error) {
	key := "profile:" + merchantID
	if v, ok := c.get(key); ok {
		return v.(*Profile), nil
	}
	if c.profiles == nil {
		return DefaultProfile(merchantID), nil
	}
	p, err := c.profiles.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	c.set(key, p)
	return p, nil
}

// Invalidate drops every cached entry of a merchant.
func (c *CachedCatalog) Invalidate(merchantID string) {
	if c.cache == nil {
		return
	}
	c.cache.Delete("services:" + merchantID)
	c.cache.Delete("staff:" + merchantID)
	c.cache.Delete("profile:" + merchantID)
}

func (c *CachedCatalog) get(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *CachedCatalog) set(key string, v any) {
	if c.cache == nil {
		return
	}
	c.cache.SetDefault(key, v)
}
