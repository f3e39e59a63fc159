package knowledge

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// CacheStats counts lookups served by a CachedClassifier.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// CachedClassifier decorates a Classifier with a persistent cache. Each key is
// delegated at most once while the store is shared: concurrent callers for the
// same key wait on one flight, and the store insert keeps the first value.
type CachedClassifier struct {
	inner Classifier
	store CacheStore
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedClassifier(inner Classifier, store CacheStore) *CachedClassifier {
	return &CachedClassifier{inner: inner, store: store}
}

func (c *CachedClassifier) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *CachedClassifier) ClassifyClass(ctx context.Context, class string) (Classification, error) {
	return c.once(ctx, "class\x00"+class, func() (Classification, error) {
		if got, ok, err := c.store.ClassDomain(ctx, class); err != nil || ok {
			if ok {
				c.hits.Add(1)
			}
			return got, err
		}

		c.misses.Add(1)
		res, err := c.inner.ClassifyClass(ctx, class)
		if err != nil || res.Degraded {
			return res, err
		}
		return c.store.PutClassDomain(ctx, class, res)
	})
}

func (c *CachedClassifier) ClassifyFunction(ctx context.Context, class, function, domain string) (Classification, error) {
	if _, ok, err := c.store.ClassDomain(ctx, class); err != nil {
		return Classification{}, err
	} else if !ok {
		return Classification{}, fmt.Errorf("%w: %s", ErrCachePrecondition, class)
	}

	return c.once(ctx, "func\x00"+class+"\x00"+function, func() (Classification, error) {
		if got, ok, err := c.store.FunctionSubdomain(ctx, class, function); err != nil || ok {
			if ok {
				c.hits.Add(1)
			}
			return got, err
		}

		c.misses.Add(1)
		res, err := c.inner.ClassifyFunction(ctx, class, function, domain)
		if err != nil || res.Degraded {
			return res, err
		}
		return c.store.PutFunctionSubdomain(ctx, class, function, res)
	})
}

func (c *CachedClassifier) once(ctx context.Context, key string, fn func() (Classification, error)) (Classification, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		return Classification{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Classification{}, r.Err
		}
		return r.Val.(Classification), nil
	}
}
