package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

// DefaultIdleTTL is how long an unused controller stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// Registry keeps one bound controller per session key.
type Registry struct {
	service Bookmarks
	logger  logger.Logger
	idleTTL time.Duration

	binds singleflight.Group // one Bind per key at a time
	items *cache.Cache
}

// NewRegistry creates a registry whose controllers expire after idleTTL
// without a Get.
func NewRegistry(service Bookmarks, idleTTL time.Duration, log logger.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	items := cache.New(idleTTL, idleTTL/2)
	items.OnEvicted(func(key string, v interface{}) {
		if c, ok := v.(*Controller); ok {
			c.Close()
		}
		log.Debug("session controller evicted", logger.String("key", key))
	})

	return &Registry{
		service: service,
		logger:  log,
		idleTTL: idleTTL,
		items:   items,
	}
}

// Get returns the controller of key, creating and binding it with the
// provider from newProvider on first use. Concurrent first uses of a key
// share one Bind; other keys are not held up.
func (r *Registry) Get(ctx context.Context, key string, newProvider func() Provider) (*Controller, error) {
	if c, ok := r.Lookup(key); ok {
		return c, nil
	}

	v, err, _ := r.binds.Do(key, func() (interface{}, error) {
		if c, ok := r.Lookup(key); ok {
			return c, nil
		}

		c := r.newController(key, newProvider())
		if err := c.Bind(ctx); err != nil {
			c.Close()
			return nil, err
		}

		r.items.SetDefault(key, c)
		r.logger.Debug("session controller created", logger.String("key", key))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Controller), nil
}

// Resolve returns the live controller of key. When there is none and the
// provider reports no principal, it returns a detached controller instead:
// it is neither subscribed nor kept, so signed-out traffic holds no
// resources. Commands on it fail with ErrUnauthenticated, while SignIn and
// SignOut still reach the provider.
func (r *Registry) Resolve(ctx context.Context, key string, newProvider func() Provider) (*Controller, error) {
	if c, ok := r.Lookup(key); ok {
		return c, nil
	}

	provider := newProvider()
	p, err := provider.Current(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return r.newController(key, provider), nil
	}
	return r.Get(ctx, key, func() Provider { return provider })
}

// Lookup returns the controller of key if one is live and refreshes its
// idle deadline.
func (r *Registry) Lookup(key string) (*Controller, bool) {
	v, ok := r.items.Get(key)
	if !ok {
		return nil, false
	}
	c := v.(*Controller)
	r.items.SetDefault(key, c)
	return c, true
}

// Forget closes and drops the controller of key.
func (r *Registry) Forget(key string) {
	r.items.Delete(key)
}

// Count returns the number of live controllers.
func (r *Registry) Count() int {
	return r.items.ItemCount()
}

// Close closes every controller.
func (r *Registry) Close() {
	for key := range r.items.Items() {
		r.items.Delete(key)
	}
}

func (r *Registry) newController(key string, provider Provider) *Controller {
	return NewController(provider, r.service, r.logger.With(logger.String("session_key", key)))
}
