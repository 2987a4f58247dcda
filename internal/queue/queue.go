// Package queue fronts the durable offline-sale queue: enqueue, counts for
// the pending-sync badge, and a drain trigger the sync driver registers into.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
	"tillpoint/internal/metrics"
	"tillpoint/internal/store"
)

// Request is a fully-formed submission descriptor. The idempotency key is
// always supplied by the caller, generated once outside any retry loop, so
// retries of the same logical sale reuse the same key.
type Request struct {
	URL            string
	Headers        map[string]string
	Payload        []byte
	IdempotencyKey string
}

type Service struct {
	Store   store.DurableStore
	Metrics *metrics.Collector
	// EscalateAfter is the attempt count past which a record counts as
	// escalated. Visibility only; records are never dropped.
	EscalateAfter int

	drain func()
}

func NewService(st store.DurableStore, m *metrics.Collector, escalateAfter int) *Service {
	return &Service{Store: st, Metrics: m, EscalateAfter: escalateAfter}
}

// Enqueue appends one record per call, even for logically identical
// payloads. A store failure here means the sale is lost, which must be loud.
func (s *Service) Enqueue(req Request) (localID string, err error) {
	if req.IdempotencyKey == "" {
		return "", errors.New("enqueue requires a caller-supplied idempotency key")
	}
	now := time.Now()
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey}
	for k, v := range req.Headers {
		headers[k] = v
	}
	rec := &domain.OfflineSaleRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		URL:            req.URL,
		Method:         "POST",
		Headers:        headers,
		Payload:        req.Payload,
		CreatedAt:      now,
		Attempts:       0,
		NextAttemptAt:  now,
	}
	if err := s.Store.AppendSale(rec); err != nil {
		applog.StoreWarn("enqueue.failed", err, map[string]any{"key": req.IdempotencyKey})
		return "", fmt.Errorf("%w: %v", domain.ErrDataLoss, err)
	}
	if s.Metrics != nil {
		s.Metrics.SalesQueued.Inc()
	}
	s.RefreshGauges()
	return rec.ID, nil
}

func (s *Service) Count() (int, error) { return s.Store.PendingCount() }

func (s *Service) Escalated() (int, error) { return s.Store.EscalatedCount(s.EscalateAfter) }

// RefreshGauges pushes the current counts into the metrics gauges.
func (s *Service) RefreshGauges() {
	if s.Metrics == nil {
		return
	}
	if n, err := s.Store.PendingCount(); err == nil {
		s.Metrics.PendingSales.Set(float64(n))
	}
	if n, err := s.Store.EscalatedCount(s.EscalateAfter); err == nil {
		s.Metrics.EscalatedSales.Set(float64(n))
	}
}

// SetDrainFunc registers the replay entry point. The queue itself never
// talks to the network; drainage is coordinated by the sync driver.
func (s *Service) SetDrainFunc(f func()) { s.drain = f }

// Drain asks the registered drainer to attempt delivery of all pending
// records. Safe to call redundantly; the driver coalesces concurrent drains.
func (s *Service) Drain() {
	if s.drain != nil {
		s.drain()
	}
}
