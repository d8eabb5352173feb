package erp

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesflow/backend/internal/models"
)

const DefaultTTL = 2 * time.Minute

// getManyConcurrency bounds parallel single-order fetches so a large ID set
// does not hammer the rate-limited ERP.
const getManyConcurrency = 8

type snapshot struct {
	data      []models.ProductionOrder
	fetchedAt time.Time
}

// Cache is a time-boxed snapshot of the full production-order list. The cell
// is replaced wholesale with an atomic pointer swap, so concurrent readers
// never see a torn record. Concurrent refreshes may both hit the gateway;
// the last swap wins and either snapshot is internally consistent.
type Cache struct {
	Gateway Gateway
	TTL     time.Duration
	Now     func() time.Time

	cell atomic.Pointer[snapshot]
}

func NewCache(gw Gateway, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{Gateway: gw, TTL: ttl}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// GetAll returns the cached snapshot while it is fresh, otherwise refreshes
// from the gateway. A failed refresh leaves the existing cell untouched and
// surfaces the upstream error; stale data is never silently substituted.
func (c *Cache) GetAll(ctx context.Context) ([]models.ProductionOrder, bool, error) {
	if s := c.cell.Load(); s != nil && c.now().Sub(s.fetchedAt) < c.TTL {
		return s.data, true, nil
	}

	data, err := c.Gateway.FetchOrders(ctx)
	if err != nil {
		return nil, false, err
	}
	c.cell.Store(&snapshot{data: data, fetchedAt: c.now()})
	return data, false, nil
}

// OrderResult is the per-ID outcome of a GetMany batch.
type OrderResult struct {
	ID      string                  `json:"id"`
	Success bool                    `json:"success"`
	Data    *models.ProductionOrder `json:"data,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// GetMany fetches each order independently and concurrently. The result
// preserves input order and length; a failed ID is reported inline and never
// fails its siblings.
func (c *Cache) GetMany(ctx context.Context, ids []string) []OrderResult {
	results := make([]OrderResult, len(ids))

	var g errgroup.Group
	g.SetLimit(getManyConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			order, err := c.Gateway.FetchOrder(ctx, id)
			if err != nil {
				results[i] = OrderResult{ID: id, Error: err.Error()}
				return nil
			}
			results[i] = OrderResult{ID: id, Success: true, Data: &order}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
