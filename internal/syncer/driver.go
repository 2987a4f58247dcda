// Package syncer decides when queued sales get delivered. The driver watches
// connectivity, drains the queue oldest-first when the register comes back
// online, and retries failed records with bounded exponential backoff.
// Records are never dropped: persistent failure surfaces as a growing
// pending count, with a separate escalated count once records pass the
// attempt threshold.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
	"tillpoint/internal/metrics"
	"tillpoint/internal/store"
)

const (
	drainBatchSize = 50
	// claimStale bounds how long an in-flight claim blocks other drain
	// passes; a crash mid-flight frees the record after this long.
	claimStale = 2 * time.Minute
)

type Options struct {
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	EscalateAfter int
	Clock         func() time.Time
}

// DrainResult summarizes one drain pass. Coalesced means another drain was
// already in flight and this trigger was a no-op.
type DrainResult struct {
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Coalesced bool `json:"coalesced"`
}

type Driver struct {
	store     store.DurableStore
	transport Transport
	metrics   *metrics.Collector
	opts      Options

	online   atomic.Bool
	draining atomic.Bool
	wake     chan struct{}

	// OnConfirm runs after the server acknowledges a record, before it is
	// removed from the queue view of callers. Used for the receipt journal.
	OnConfirm func(rec domain.OfflineSaleRecord, conf domain.SaleConfirmation)

	mu        sync.Mutex
	lastDrain DrainResult
	lastAt    time.Time
}

func NewDriver(st store.DurableStore, tr Transport, m *metrics.Collector, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 5 * time.Second
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 10 * time.Minute
	}
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = 5
	}
	return &Driver{
		store:     st,
		transport: tr,
		metrics:   m,
		opts:      opts,
		wake:      make(chan struct{}, 1),
	}
}

func (d *Driver) Online() bool { return d.online.Load() }

// SetOnline records a connectivity transition. Going from offline to online
// schedules a drain; every other transition is just state.
func (d *Driver) SetOnline(online bool) {
	was := d.online.Swap(online)
	if online && !was {
		applog.SyncInfo("online.transition", nil)
		d.Wake()
	}
	if !online && was {
		applog.SyncInfo("offline.transition", nil)
	}
}

// Wake is the best-effort nudge shared by the online transition, the manual
// sync action, and any platform background-sync hint. The buffered channel
// coalesces bursts.
func (d *Driver) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run services wake-ups until the context ends.
func (d *Driver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			if d.online.Load() {
				d.Drain(ctx)
			}
		}
	}
}

// SyncNow is the manual "sync now" action. Same drain path as the automatic
// trigger; there is deliberately no separate code path.
func (d *Driver) SyncNow(ctx context.Context) DrainResult {
	return d.Drain(ctx)
}

// Drain replays all due records oldest-first. Process-wide single-flight: a
// second call while one runs coalesces into a no-op rather than queueing.
// Individual records are additionally claimed in the store, so even another
// process sharing the store cannot double-send a record.
func (d *Driver) Drain(ctx context.Context) DrainResult {
	if !d.draining.CompareAndSwap(false, true) {
		return DrainResult{Coalesced: true}
	}
	defer d.draining.Store(false)

	start := d.opts.Clock()
	var res DrainResult

	for {
		now := d.opts.Clock()
		recs, err := d.store.DuePending(now, now.Add(-claimStale), drainBatchSize)
		if err != nil {
			applog.SyncWarn("drain.read", err, nil)
			break
		}
		if len(recs) == 0 {
			break
		}
		progressed := false
		for _, rec := range recs {
			if ctx.Err() != nil {
				d.finish(start, res)
				return res
			}
			now = d.opts.Clock()
			ok, err := d.store.Claim(rec.ID, now, now.Add(-claimStale))
			if err != nil || !ok {
				continue
			}
			progressed = true
			res.Attempted++
			if d.deliver(ctx, rec) {
				res.Delivered++
			} else {
				res.Failed++
			}
		}
		if !progressed {
			break
		}
	}

	d.finish(start, res)
	return res
}

func (d *Driver) deliver(ctx context.Context, rec domain.OfflineSaleRecord) bool {
	conf, err := d.transport.Deliver(ctx, rec)
	if err != nil {
		attempts := rec.Attempts + 1
		next := d.opts.Clock().Add(d.backoff(attempts))
		if rerr := d.store.Release(rec.ID, attempts, err.Error(), next); rerr != nil {
			applog.SyncWarn("drain.release", rerr, map[string]any{"id": rec.ID})
		}
		if d.metrics != nil {
			d.metrics.ReplayFailure.Inc()
		}
		applog.SyncWarn("replay.failed", err, map[string]any{
			"id": rec.ID, "key": rec.IdempotencyKey, "attempts": attempts,
		})
		return false
	}

	if d.OnConfirm != nil {
		d.OnConfirm(rec, conf)
	}
	// Remove only after the acknowledgment (and journal hook) landed.
	if err := d.store.Confirm(rec.ID); err != nil {
		applog.SyncWarn("drain.confirm", err, map[string]any{"id": rec.ID})
		return false
	}
	if d.metrics != nil {
		d.metrics.ReplaySuccess.Inc()
	}
	applog.SyncInfo("replay.delivered", map[string]any{"id": rec.ID, "key": rec.IdempotencyKey})
	return true
}

// backoff doubles per attempt from the base, capped.
func (d *Driver) backoff(attempts int) time.Duration {
	delay := d.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.opts.BackoffCap {
			return d.opts.BackoffCap
		}
	}
	if delay > d.opts.BackoffCap {
		delay = d.opts.BackoffCap
	}
	return delay
}

func (d *Driver) finish(start time.Time, res DrainResult) {
	if d.metrics != nil {
		d.metrics.DrainDuration.Observe(d.opts.Clock().Sub(start).Seconds())
	}
	d.mu.Lock()
	d.lastDrain = res
	d.lastAt = d.opts.Clock()
	d.mu.Unlock()
}

// LastDrain reports the outcome of the most recent completed drain pass.
func (d *Driver) LastDrain() (DrainResult, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDrain, d.lastAt
}
