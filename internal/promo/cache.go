// Package promo caches per-product promotion lookups. Lookups within the
// debounce window are coalesced into a single batched fetch; entries older
// than the TTL are treated as absent, never served stale. A failed batch
// fetch resolves to "no promotions" so pricing falls back to full price
// instead of blocking the sale.
package promo

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
)

type Clock func() time.Time

// BatchFetcher performs the network lookup for a batch of product IDs.
// Missing keys in the result mean "no active promotion for this product".
type BatchFetcher interface {
	FetchBatch(ctx context.Context, productIDs []string) (map[string]domain.Promotion, error)
}

type entry struct {
	promo     *domain.Promotion // nil: known to have no promotion
	fetchedAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	pending map[string]struct{}
	timer   *time.Timer

	ttl          time.Duration
	debounce     time.Duration
	fetchTimeout time.Duration
	fetcher      BatchFetcher
	clock        Clock
}

func NewCache(fetcher BatchFetcher, ttl, debounce, fetchTimeout time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		entries:      map[string]entry{},
		pending:      map[string]struct{}{},
		ttl:          ttl,
		debounce:     debounce,
		fetchTimeout: fetchTimeout,
		fetcher:      fetcher,
		clock:        clock,
	}
}

// Lookup returns the cached promotion for a product. The second return is
// false when the entry is absent or past the TTL; a true with a nil
// promotion means the product is known to have none.
func (c *Cache) Lookup(productID string) (*domain.Promotion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(productID)
}

func (c *Cache) lookupLocked(productID string) (*domain.Promotion, bool) {
	e, ok := c.entries[productID]
	if !ok || c.clock().Sub(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.promo, true
}

// QueueFetch adds a product to the pending batch. All queued IDs within one
// debounce window go out as a single request.
func (c *Cache) QueueFetch(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[productID] = struct{}{}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.debounce, c.flush)
	}
}

func (c *Cache) flush() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.pending = map[string]struct{}{}
	c.timer = nil
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()
	c.FetchPromotions(ctx, ids)
}

// FetchPromotions resolves promotions for the given IDs: fresh entries come
// from the cache, the rest go to the server in one batched call. The
// response updates the cache for exactly the IDs that were fetched; other
// entries are untouched. Fetch failures are absorbed, leaving the stale IDs
// unresolved for this round.
func (c *Cache) FetchPromotions(ctx context.Context, productIDs []string) map[string]domain.Promotion {
	found := map[string]domain.Promotion{}
	var stale []string

	c.mu.Lock()
	for _, id := range productIDs {
		if p, ok := c.lookupLocked(id); ok {
			if p != nil {
				found[id] = *p
			}
			continue
		}
		stale = append(stale, id)
	}
	c.mu.Unlock()

	if len(stale) == 0 {
		return found
	}

	fetched, err := c.fetcher.FetchBatch(ctx, stale)
	if err != nil {
		applog.PromoWarn("batch.fetch.failed", err, map[string]any{"count": len(stale)})
		return found
	}

	now := c.clock()
	c.mu.Lock()
	for _, id := range stale {
		if p, ok := fetched[id]; ok {
			cp := p
			c.entries[id] = entry{promo: &cp, fetchedAt: now}
			found[id] = p
		} else {
			c.entries[id] = entry{promo: nil, fetchedAt: now}
		}
	}
	c.mu.Unlock()
	return found
}

// EffectivePrice applies the cached percentage promotion to a price, floored
// at zero. Bundle promotions are not priced here. A cache miss queues a
// background fetch and charges full price for now.
func (c *Cache) EffectivePrice(productID string, original decimal.Decimal) (decimal.Decimal, bool, decimal.Decimal) {
	p, ok := c.Lookup(productID)
	if !ok {
		c.QueueFetch(productID)
		return original, false, decimal.Zero
	}
	if p == nil || p.Type == domain.PromoBundle || !p.DiscountPercent.IsPositive() {
		return original, false, decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	discounted := original.Sub(original.Mul(p.DiscountPercent).Div(hundred)).Round(2)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	return discounted, true, original.Sub(discounted)
}
