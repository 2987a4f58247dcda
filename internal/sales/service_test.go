package sales_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/cart"
	"tillpoint/internal/domain"
	"tillpoint/internal/queue"
	"tillpoint/internal/sales"
	"tillpoint/internal/store"
	"tillpoint/internal/syncer"
)

type stubTransport struct {
	mu       sync.Mutex
	keys     []string
	failNext bool
	conf     domain.SaleConfirmation
}

func (s *stubTransport) Deliver(_ context.Context, rec domain.OfflineSaleRecord) (domain.SaleConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, rec.IdempotencyKey)
	if s.failNext {
		s.failNext = false
		return domain.SaleConfirmation{}, errors.New("upstream down")
	}
	return s.conf, nil
}

func (s *stubTransport) seenKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func newService(tr syncer.Transport) (*sales.Service, store.DurableStore) {
	st := store.NewMemoryStore()
	engine := cart.NewEngine(st, nil, decimal.RequireFromString("0.10"), false, decimal.Zero)
	q := queue.NewService(st, nil, 5)
	driver := syncer.NewDriver(st, tr, nil, syncer.Options{})
	svc := &sales.Service{
		Engine:    engine,
		Queue:     q,
		Driver:    driver,
		Transport: tr,
		Store:     st,
		SalesURL:  "http://upstream/api/sales",
		StoreName: "TillPoint Books",
		StoreID:   "S-01",
		CashierID: "anna",
	}
	driver.OnConfirm = svc.ConfirmHook
	return svc, st
}

func addCardSale(svc *sales.Service) {
	svc.Engine.AddItem(domain.Product{ID: "p1", Name: "Field Notes", Price: decimal.RequireFromString("4.50")})
	svc.Engine.SetPayment(domain.PayCard, decimal.Zero)
}

func TestSubmitDirectConfirmed(t *testing.T) {
	tr := &stubTransport{conf: domain.SaleConfirmation{SaleNumber: "2026-000318"}}
	svc, st := newService(tr)
	svc.Driver.SetOnline(true)
	addCardSale(svc)

	res, err := svc.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "confirmed" || res.SaleNumber != "2026-000318" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Receipt == "" || !strings.Contains(res.Receipt, "Field Notes") {
		t.Fatalf("confirmed submit should return the rendered receipt, got %q", res.Receipt)
	}
	if n, _ := st.PendingCount(); n != 0 {
		t.Fatalf("direct delivery must not enqueue, pending=%d", n)
	}
	if svc.Engine.Summary().ItemCount != 0 {
		t.Fatal("cart should be cleared after a confirmed sale")
	}
	if c, _ := st.ConfirmationByKey(res.IdempotencyKey); c == nil {
		t.Fatal("confirmed sale missing from journal")
	}
}

func TestSubmitDirectFailureQueuesSameKey(t *testing.T) {
	tr := &stubTransport{failNext: true}
	svc, st := newService(tr)
	svc.Driver.SetOnline(true)
	addCardSale(svc)

	res, err := svc.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "queued" {
		t.Fatalf("failed direct send should queue, got %q", res.Status)
	}
	if n, _ := st.PendingCount(); n != 1 {
		t.Fatalf("pending=%d, want 1", n)
	}

	// The queued record carries the exact key the failed attempt used, so
	// the server can dedupe if the first request actually landed.
	keys := tr.seenKeys()
	if len(keys) != 1 || keys[0] != res.IdempotencyKey {
		t.Fatalf("queued key %q does not match attempted key %v", res.IdempotencyKey, keys)
	}
	now := time.Now().Add(time.Minute)
	recs, err := st.DuePending(now, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].IdempotencyKey != res.IdempotencyKey {
		t.Fatalf("stored record key mismatch: %+v", recs)
	}
}

func TestSubmitOfflineQueuesWithoutNetworkCall(t *testing.T) {
	tr := &stubTransport{}
	svc, st := newService(tr)
	addCardSale(svc)

	res, err := svc.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "queued" || res.IdempotencyKey == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := tr.seenKeys(); len(got) != 0 {
		t.Fatalf("offline submit must not hit the network, saw %v", got)
	}
	if n, _ := st.PendingCount(); n != 1 {
		t.Fatalf("pending=%d, want 1", n)
	}
	if svc.Engine.Summary().ItemCount != 0 {
		t.Fatal("cart should be cleared once the sale is safely queued")
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	svc, _ := newService(&stubTransport{})
	if _, err := svc.Submit(context.Background()); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("want ErrEmptyCart, got %v", err)
	}
}

func TestConfirmHookDedupesReplayedAcks(t *testing.T) {
	svc, st := newService(&stubTransport{})
	rec := domain.OfflineSaleRecord{
		ID:             "r1",
		IdempotencyKey: "11111111-2222-3333-4444-555555555555",
		Payload:        []byte(`{"storeId":"S-01"}`),
	}
	conf := domain.SaleConfirmation{SaleNumber: "2026-000319"}

	svc.ConfirmHook(rec, conf)
	svc.ConfirmHook(rec, conf) // replayed acknowledgment

	all, err := st.Confirmations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("journal must dedupe by idempotency key, got %d entries", len(all))
	}
}

func TestReceiptByKeyUnknown(t *testing.T) {
	svc, _ := newService(&stubTransport{})
	if _, err := svc.ReceiptByKey("missing"); err == nil {
		t.Fatal("want error for unknown key")
	}
}
