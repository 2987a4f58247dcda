// Package sales orchestrates sale submission: validate and freeze the cart,
// mint the idempotency key, then either deliver directly (online) or capture
// into the offline queue. Queued or confirmed, the cashier sees the sale as
// captured either way.
package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tillpoint/internal/cart"
	"tillpoint/internal/domain"
	"tillpoint/internal/idkey"
	applog "tillpoint/internal/log"
	"tillpoint/internal/metrics"
	"tillpoint/internal/queue"
	"tillpoint/internal/receipt"
	"tillpoint/internal/store"
	"tillpoint/internal/syncer"
)

type Service struct {
	Engine    *cart.Engine
	Queue     *queue.Service
	Driver    *syncer.Driver
	Transport syncer.Transport
	Store     store.DurableStore
	Metrics   *metrics.Collector

	SalesURL  string
	StoreName string
	StoreID   string
	CashierID string
}

type SubmitResult struct {
	Status         string `json:"status"` // confirmed | queued
	IdempotencyKey string `json:"idempotencyKey"`
	SaleNumber     string `json:"saleNumber,omitempty"`
	Receipt        string `json:"receipt,omitempty"`
}

// Submit commits the working sale. The idempotency key is minted here,
// exactly once, before any delivery attempt; the direct path and the queued
// path (including every later replay) all carry this same key.
func (s *Service) Submit(ctx context.Context) (SubmitResult, error) {
	payload, err := s.Engine.Checkout(s.StoreID, s.CashierID)
	if err != nil {
		return SubmitResult{}, err
	}
	payload.IdempotencyKey = idkey.New()

	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode sale: %w", err)
	}

	if s.Driver.Online() {
		rec := domain.OfflineSaleRecord{
			ID:             uuid.NewString(),
			IdempotencyKey: payload.IdempotencyKey,
			URL:            s.SalesURL,
			Method:         "POST",
			Payload:        body,
			CreatedAt:      payload.CreatedAt,
		}
		conf, err := s.Transport.Deliver(ctx, rec)
		if err == nil {
			s.journal(rec, conf)
			if s.Metrics != nil {
				s.Metrics.SalesDirect.Inc()
			}
			s.Engine.Clear()
			text, _ := s.ReceiptByKey(payload.IdempotencyKey)
			return SubmitResult{
				Status:         "confirmed",
				IdempotencyKey: payload.IdempotencyKey,
				SaleNumber:     conf.SaleNumber,
				Receipt:        text,
			}, nil
		}
		// Direct send failed: fall through to the queue with the SAME key,
		// so a server that already applied the sale dedupes the replay.
		applog.SyncWarn("direct.submit.failed", err, map[string]any{"key": payload.IdempotencyKey})
	}

	if _, err := s.Queue.Enqueue(queue.Request{
		URL:            s.SalesURL,
		Payload:        body,
		IdempotencyKey: payload.IdempotencyKey,
	}); err != nil {
		// Both stores gone: the sale is lost and the cashier must know.
		return SubmitResult{}, err
	}
	s.Engine.Clear()
	s.Driver.Wake()
	return SubmitResult{Status: "queued", IdempotencyKey: payload.IdempotencyKey}, nil
}

// journal persists the acknowledged sale so its receipt can be re-rendered.
// Keyed by idempotency key, so a replayed acknowledgment never duplicates.
func (s *Service) journal(rec domain.OfflineSaleRecord, conf domain.SaleConfirmation) {
	saleNumber := conf.SaleNumber
	if saleNumber == "" {
		saleNumber = rec.IdempotencyKey[:8]
	}
	err := s.Store.RecordConfirmation(&domain.ConfirmedSale{
		ID:             uuid.NewString(),
		IdempotencyKey: rec.IdempotencyKey,
		SaleNumber:     saleNumber,
		Payload:        rec.Payload,
		CompletedAt:    time.Now().UTC(),
	})
	if err != nil {
		applog.StoreWarn("journal.write", err, map[string]any{"key": rec.IdempotencyKey})
	}
	s.Queue.RefreshGauges()
}

// ConfirmHook is wired into the sync driver so replayed sales land in the
// journal through the same path as direct ones.
func (s *Service) ConfirmHook(rec domain.OfflineSaleRecord, conf domain.SaleConfirmation) {
	s.journal(rec, conf)
}

// ReceiptByKey re-renders the receipt for an acknowledged sale.
func (s *Service) ReceiptByKey(key string) (string, error) {
	c, err := s.Store.ConfirmationByKey(key)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("no confirmed sale for key %s", key)
	}
	var payload domain.SalePayload
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return "", fmt.Errorf("decode journaled sale: %w", err)
	}
	return receipt.Render(receipt.FromConfirmation(*c, payload, s.StoreName)), nil
}

// Recent lists the latest confirmed sales for the register's history view.
func (s *Service) Recent(limit int) ([]domain.ConfirmedSale, error) {
	return s.Store.Confirmations(limit)
}
