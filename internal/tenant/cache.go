package tenant

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"jsonwidget.org/internal/obs"
)

// CachedWidgets fronts a WidgetFinder with an expirable LRU. Only found
// widgets are cached, so newly provisioned widgets are visible immediately.
// Entries are never invalidated early: a widget or client disabled in the
// store keeps resolving for at most ttl. Token verification must not go
// through this cache: a rotated secret or a disabled widget has to take
// effect on the next exchange.
type CachedWidgets struct {
	next  WidgetFinder
	cache *expirable.LRU[string, Widget]
}

// NewCachedWidgets creates a cache holding at most size entries for ttl.
func NewCachedWidgets(next WidgetFinder, size int, ttl time.Duration) *CachedWidgets {
	return &CachedWidgets{
		next:  next,
		cache: expirable.NewLRU[string, Widget](size, nil, ttl),
	}
}

func (c *CachedWidgets) Find(ctx context.Context, id string) (*Widget, error) {
	if w, ok := c.cache.Get(id); ok {
		obs.ObserveCache(true)
		return &w, nil
	}
	obs.ObserveCache(false)
	w, err := c.next.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *w)
	return w, nil
}
