package cart_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tillpoint/internal/cart"
	"tillpoint/internal/domain"
	"tillpoint/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newEngine(t *testing.T, rate string, included bool) *cart.Engine {
	t.Helper()
	return cart.NewEngine(store.NewMemoryStore(), nil, dec(t, rate), included, dec(t, "0.01"))
}

func gameboy(t *testing.T) domain.Product {
	t.Helper()
	return domain.Product{ID: "gbc-001", Name: "Game Boy Color", Barcode: "0123456789", Price: dec(t, "100.00")}
}

func TestAddItemMergesLines(t *testing.T) {
	e := newEngine(t, "0", false)
	e.AddItem(gameboy(t))
	s := e.AddItem(gameboy(t))

	items := e.Items()
	if len(items) != 1 {
		t.Fatalf("want 1 line, got %d", len(items))
	}
	if items[0].Quantity != 2 {
		t.Fatalf("want quantity 2, got %d", items[0].Quantity)
	}
	if !items[0].LineTotal.Equal(dec(t, "200.00")) {
		t.Fatalf("want line total 200.00, got %s", items[0].LineTotal)
	}
	if s.ItemCount != 2 {
		t.Fatalf("want item count 2, got %d", s.ItemCount)
	}
}

func TestExclusiveTax(t *testing.T) {
	e := newEngine(t, "0.085", false)
	e.AddItem(gameboy(t))
	s := e.AddItem(gameboy(t)) // qty 2, subtotal 200.00

	if !s.Subtotal.Equal(dec(t, "200.00")) {
		t.Fatalf("subtotal: want 200.00, got %s", s.Subtotal)
	}
	if !s.Tax.Equal(dec(t, "17.00")) {
		t.Fatalf("tax: want 17.00, got %s", s.Tax)
	}
	if !s.Total.Equal(dec(t, "217.00")) {
		t.Fatalf("total: want 217.00, got %s", s.Total)
	}
	// total == subtotal - discount + tax, exactly
	if !s.Total.Equal(s.Subtotal.Sub(s.RedeemDiscount).Add(s.Tax)) {
		t.Fatalf("exclusive identity broken: %+v", s)
	}
}

func TestInclusiveTaxBackCalculation(t *testing.T) {
	e := newEngine(t, "0.085", true)
	e.AddItem(gameboy(t))
	s := e.AddItem(gameboy(t))

	if !s.Subtotal.Equal(dec(t, "184.33")) {
		t.Fatalf("pre-tax subtotal: want 184.33, got %s", s.Subtotal)
	}
	if !s.Tax.Equal(dec(t, "15.67")) {
		t.Fatalf("tax: want 15.67, got %s", s.Tax)
	}
	if !s.Total.Equal(dec(t, "200.00")) {
		t.Fatalf("total: want 200.00, got %s", s.Total)
	}
	// displayed subtotal + tax == total, exactly
	if !s.Subtotal.Add(s.Tax).Equal(s.Total) {
		t.Fatalf("inclusive identity broken: %+v", s)
	}
}

func TestZeroRateInclusiveMatchesExclusive(t *testing.T) {
	incl := newEngine(t, "0", true)
	excl := newEngine(t, "0", false)
	p := gameboy(t)
	si := incl.AddItem(p)
	se := excl.AddItem(p)

	if !si.Total.Equal(se.Total) || !si.Subtotal.Equal(se.Subtotal) || !si.Tax.Equal(se.Tax) {
		t.Fatalf("zero-rate modes diverge: inclusive %+v exclusive %+v", si, se)
	}
	if !si.Tax.IsZero() {
		t.Fatalf("zero rate should yield zero tax, got %s", si.Tax)
	}
}

func TestRedemptionClampedAtSubtotal(t *testing.T) {
	e := newEngine(t, "0.085", false)
	e.AddItem(gameboy(t)) // subtotal 100.00

	// 50k points at 0.01 each = 500.00, way past the subtotal
	s := e.SetRedemption(50000, dec(t, "0.01"))
	if !s.RedeemDiscount.Equal(dec(t, "100.00")) {
		t.Fatalf("discount should clamp to subtotal, got %s", s.RedeemDiscount)
	}
	if s.Total.IsNegative() {
		t.Fatalf("total went negative: %s", s.Total)
	}
	if !s.Total.IsZero() {
		t.Fatalf("fully redeemed sale should total zero, got %s", s.Total)
	}
}

func TestNegativeRedemptionInputsClamped(t *testing.T) {
	e := newEngine(t, "0", false)
	e.AddItem(gameboy(t))
	s := e.SetRedemption(-5, dec(t, "-0.25"))
	if !s.RedeemDiscount.IsZero() {
		t.Fatalf("negative inputs should clamp to zero discount, got %s", s.RedeemDiscount)
	}
}

func TestZeroQuantityLineContributesNothingButBlocksCheckout(t *testing.T) {
	e := newEngine(t, "0", false)
	e.AddItem(gameboy(t))
	items := e.Items()

	s, err := e.UpdateQuantity(items[0].ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Items()) != 1 {
		t.Fatal("zero-quantity line must not be auto-removed")
	}
	if !s.Subtotal.IsZero() {
		t.Fatalf("zero-quantity line should contribute nothing, got subtotal %s", s.Subtotal)
	}

	_, err = e.Checkout("store-1", "cashier-1")
	if !errors.Is(err, domain.ErrZeroQuantityLine) {
		t.Fatalf("want ErrZeroQuantityLine, got %v", err)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	e := newEngine(t, "0", false)
	_, err := e.Checkout("store-1", "cashier-1")
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("want ErrEmptyCart, got %v", err)
	}
}

func TestChangeDueAndCompletionGate(t *testing.T) {
	e := newEngine(t, "0.085", false)
	e.AddItem(gameboy(t))
	e.AddItem(gameboy(t)) // total 217.00

	e.SetPayment(domain.PayCash, dec(t, "250.00"))
	pay := e.Payment()
	if !pay.ChangeDue.Equal(dec(t, "33.00")) {
		t.Fatalf("change: want 33.00, got %s", pay.ChangeDue)
	}
	if _, err := e.Checkout("store-1", "cashier-1"); err != nil {
		t.Fatalf("cash above total should check out: %v", err)
	}

	e.SetPayment(domain.PayCash, dec(t, "200.00"))
	pay = e.Payment()
	if !pay.ChangeDue.IsZero() {
		t.Fatalf("change never negative, got %s", pay.ChangeDue)
	}
	if _, err := e.Checkout("store-1", "cashier-1"); !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("want ErrInsufficientPayment, got %v", err)
	}

	// Card is completable regardless of amount received.
	e.SetPayment(domain.PayCard, decimal.Zero)
	if _, err := e.Checkout("store-1", "cashier-1"); err != nil {
		t.Fatalf("card should check out: %v", err)
	}
}

func TestRemoveItem(t *testing.T) {
	e := newEngine(t, "0", false)
	e.AddItem(gameboy(t))
	id := e.Items()[0].ID

	if _, err := e.RemoveItem(id); err != nil {
		t.Fatal(err)
	}
	if len(e.Items()) != 0 {
		t.Fatal("line should be gone")
	}
	if _, err := e.RemoveItem(id); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("want ErrLineNotFound, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	e := cart.NewEngine(st, nil, dec(t, "0.085"), false, dec(t, "0.01"))
	e.AddItem(gameboy(t))
	e.SetPayment(domain.PayCash, dec(t, "250.00"))
	e.SetRedemption(100, dec(t, "0.01"))

	// A new engine over the same store restores the in-progress sale.
	e2 := cart.NewEngine(st, nil, dec(t, "0.085"), false, dec(t, "0.01"))
	items := e2.Items()
	if len(items) != 1 || items[0].ProductID != "gbc-001" {
		t.Fatalf("restore failed: %+v", items)
	}
	if !e2.Summary().RedeemDiscount.Equal(dec(t, "1.00")) {
		t.Fatalf("redemption not restored: %+v", e2.Summary())
	}
	if e2.Payment().Method != domain.PayCash {
		t.Fatalf("payment not restored: %+v", e2.Payment())
	}
}

func TestRestoreClampsCorruptSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	// Simulate a stale snapshot from an older version with out-of-range values.
	bad := map[string]any{
		"items": []map[string]any{{
			"id": "line-1", "productId": "p-1", "name": "Thing",
			"unitPrice": "-5.00", "quantity": -3,
		}},
		"payment":      map[string]any{"method": "wire", "amountReceived": "-10"},
		"taxRate":      "5.0",
		"taxIncluded":  false,
		"redeemValue":  "-1",
		"redeemPoints": -40,
	}
	data, _ := json.Marshal(bad)
	if err := st.SaveCartSnapshot(data); err != nil {
		t.Fatal(err)
	}

	e := cart.NewEngine(st, nil, dec(t, "0.085"), false, dec(t, "0.01"))
	s := e.Summary()
	if s.TaxRate.GreaterThan(dec(t, "1")) || s.TaxRate.IsNegative() {
		t.Fatalf("tax rate not clamped: %s", s.TaxRate)
	}
	if s.RedeemDiscount.IsNegative() || s.Subtotal.IsNegative() {
		t.Fatalf("negative money leaked through restore: %+v", s)
	}
	if e.Payment().Method != domain.PayCash {
		t.Fatalf("unknown method should fall back to cash, got %s", e.Payment().Method)
	}
}

func TestClearResetsStateAndSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	e := cart.NewEngine(st, nil, dec(t, "0.085"), false, dec(t, "0.01"))
	e.AddItem(gameboy(t))
	e.SetRedemption(100, dec(t, "0.01"))
	e.SetPayment(domain.PayCash, dec(t, "50"))

	s := e.Clear()
	if s.ItemCount != 0 || !s.Total.IsZero() || !s.RedeemDiscount.IsZero() {
		t.Fatalf("clear left state behind: %+v", s)
	}
	data, err := st.LoadCartSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Fatal("clear must purge the persisted snapshot")
	}
}
