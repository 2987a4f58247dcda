package promo_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/domain"
	"tillpoint/internal/promo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu      sync.Mutex
	batches [][]string
	promos  map[string]domain.Promotion
	err     error
	notify  chan []string
}

func (f *fakeFetcher) FetchBatch(_ context.Context, ids []string) (map[string]domain.Promotion, error) {
	f.mu.Lock()
	cp := append([]string(nil), ids...)
	sort.Strings(cp)
	f.batches = append(f.batches, cp)
	f.mu.Unlock()
	if f.notify != nil {
		f.notify <- cp
	}
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]domain.Promotion{}
	for _, id := range ids {
		if p, ok := f.promos[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeFetcher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func pct(t *testing.T, id, productID, percent string) domain.Promotion {
	t.Helper()
	d, err := decimal.NewFromString(percent)
	if err != nil {
		t.Fatal(err)
	}
	return domain.Promotion{ID: id, ProductID: productID, Type: domain.PromoPercentage, DiscountPercent: d}
}

func newCache(fetcher promo.BatchFetcher, clock *fakeClock) *promo.Cache {
	return promo.NewCache(fetcher, 60*time.Second, 100*time.Millisecond, 5*time.Second, clock.Now)
}

func TestTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{promos: map[string]domain.Promotion{"p1": pct(t, "promo-1", "p1", "20")}}
	c := newCache(f, clock)

	c.FetchPromotions(context.Background(), []string{"p1"})
	if f.batchCount() != 1 {
		t.Fatalf("want 1 fetch, got %d", f.batchCount())
	}

	// 59s later: still fresh, served from cache, no refetch.
	clock.Advance(59 * time.Second)
	if _, ok := c.Lookup("p1"); !ok {
		t.Fatal("entry should be fresh at TTL-1s")
	}
	c.FetchPromotions(context.Background(), []string{"p1"})
	if f.batchCount() != 1 {
		t.Fatalf("fresh entry must not refetch, got %d fetches", f.batchCount())
	}

	// 61s after the fetch: logically expired, treated as absent.
	clock.Advance(2 * time.Second)
	if _, ok := c.Lookup("p1"); ok {
		t.Fatal("entry past TTL must be treated as absent")
	}
	c.FetchPromotions(context.Background(), []string{"p1"})
	if f.batchCount() != 2 {
		t.Fatalf("expired entry must refetch, got %d fetches", f.batchCount())
	}
}

func TestFetchPartitionsFreshFromStale(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{promos: map[string]domain.Promotion{
		"p1": pct(t, "promo-1", "p1", "10"),
		"p2": pct(t, "promo-2", "p2", "15"),
	}}
	c := newCache(f, clock)

	c.FetchPromotions(context.Background(), []string{"p1"})

	// p1 is fresh; only p2 and p3 should hit the network.
	got := c.FetchPromotions(context.Background(), []string{"p1", "p2", "p3"})
	f.mu.Lock()
	last := f.batches[len(f.batches)-1]
	f.mu.Unlock()
	if len(last) != 2 || last[0] != "p2" || last[1] != "p3" {
		t.Fatalf("stale partition wrong: %v", last)
	}
	if _, ok := got["p1"]; !ok {
		t.Fatal("fresh entry missing from combined result")
	}
	if _, ok := got["p2"]; !ok {
		t.Fatal("fetched entry missing from combined result")
	}

	// p3 had no promotion in the response: known-none, cached.
	p, ok := c.Lookup("p3")
	if !ok || p != nil {
		t.Fatalf("missing response key should cache known-none, got %v ok=%v", p, ok)
	}
}

func TestFetchFailureFallsBackToFullPrice(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{err: errors.New("timeout")}
	c := newCache(f, clock)

	got := c.FetchPromotions(context.Background(), []string{"p1"})
	if len(got) != 0 {
		t.Fatalf("failed batch should resolve to no promotions, got %v", got)
	}
	// The failure is not cached as known-none; the next round retries.
	if _, ok := c.Lookup("p1"); ok {
		t.Fatal("failed fetch must not populate the cache")
	}

	price, discounted, _ := c.EffectivePrice("p1", decimal.RequireFromString("10.00"))
	if discounted || !price.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unknown promotion must charge full price, got %s", price)
	}
}

func TestEffectivePrice(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{promos: map[string]domain.Promotion{
		"p1": pct(t, "promo-1", "p1", "20"),
		"p2": {ID: "promo-2", ProductID: "p2", Type: domain.PromoBundle, DiscountPercent: decimal.RequireFromString("50")},
		"p3": pct(t, "promo-3", "p3", "150"),
	}}
	c := newCache(f, clock)
	c.FetchPromotions(context.Background(), []string{"p1", "p2", "p3"})

	price, discounted, savings := c.EffectivePrice("p1", decimal.RequireFromString("10.00"))
	if !discounted || !price.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("20%% off 10.00: want 8.00, got %s", price)
	}
	if !savings.Equal(decimal.RequireFromString("2.00")) {
		t.Fatalf("savings: want 2.00, got %s", savings)
	}

	// Bundles are not priced by this engine.
	price, discounted, _ = c.EffectivePrice("p2", decimal.RequireFromString("10.00"))
	if discounted || !price.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("bundle must not discount, got %s", price)
	}

	// An absurd percentage floors at zero rather than going negative.
	price, discounted, _ = c.EffectivePrice("p3", decimal.RequireFromString("10.00"))
	if !discounted || !price.IsZero() {
		t.Fatalf("discount must floor at zero, got %s", price)
	}
}

func TestDebounceCoalescesQueuedFetches(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{notify: make(chan []string, 1)}
	c := promo.NewCache(f, 60*time.Second, 5*time.Millisecond, 5*time.Second, clock.Now)

	c.QueueFetch("p1")
	c.QueueFetch("p2")
	c.QueueFetch("p1") // duplicate within the window

	select {
	case batch := <-f.notify:
		if len(batch) != 2 || batch[0] != "p1" || batch[1] != "p2" {
			t.Fatalf("want one deduplicated batch [p1 p2], got %v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced batch never fired")
	}
	if f.batchCount() != 1 {
		t.Fatalf("want a single batched request, got %d", f.batchCount())
	}
}
