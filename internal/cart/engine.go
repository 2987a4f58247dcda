// Package cart holds the working sale and computes its summary. The summary
// is recomputed synchronously on every mutation, so callers never observe
// stale totals next to fresh items, and the whole cart state is snapshotted
// to the durable store after each change so the sale in progress survives a
// restart.
package cart

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
	"tillpoint/internal/validate"
)

// SnapshotStore persists the sale in progress. This is deliberately not the
// offline queue: one store holds the cart being edited, the other holds
// sales already committed but unacknowledged.
type SnapshotStore interface {
	SaveCartSnapshot(data []byte) error
	LoadCartSnapshot() ([]byte, error)
	ClearCartSnapshot() error
}

// PriceSource resolves the effective unit price for a product, promotions
// applied. Optional; without one the catalog price is used as-is.
type PriceSource interface {
	EffectivePrice(productID string, original decimal.Decimal) (price decimal.Decimal, discounted bool, savings decimal.Decimal)
}

type Engine struct {
	mu sync.Mutex

	items        []domain.CartItem
	payment      domain.PaymentData
	taxRate      decimal.Decimal
	taxIncluded  bool
	redeemPoints int64
	redeemValue  decimal.Decimal

	summary domain.CartSummary

	snaps  SnapshotStore
	prices PriceSource

	defaultTaxRate     decimal.Decimal
	defaultTaxIncluded bool
	defaultRedeemValue decimal.Decimal
}

// snapshot is the persisted shape of the cart state. Restored fields are
// clamped into valid ranges; the snapshot may be stale or corrupted across
// app versions.
type snapshot struct {
	Items        []domain.CartItem  `json:"items"`
	Payment      domain.PaymentData `json:"payment"`
	TaxRate      decimal.Decimal    `json:"taxRate"`
	TaxIncluded  bool               `json:"taxIncluded"`
	RedeemValue  decimal.Decimal    `json:"redeemValue"`
	RedeemPoints int64              `json:"redeemPoints"`
}

func NewEngine(snaps SnapshotStore, prices PriceSource, taxRate decimal.Decimal, taxIncluded bool, redeemValue decimal.Decimal) *Engine {
	e := &Engine{
		snaps:              snaps,
		prices:             prices,
		taxRate:            validate.ClampRate(taxRate),
		taxIncluded:        taxIncluded,
		redeemValue:        clampNonNegative(redeemValue),
		payment:            domain.PaymentData{Method: domain.PayCash},
		defaultTaxRate:     validate.ClampRate(taxRate),
		defaultTaxIncluded: taxIncluded,
		defaultRedeemValue: clampNonNegative(redeemValue),
	}
	e.restore()
	e.recompute()
	return e
}

func (e *Engine) restore() {
	if e.snaps == nil {
		return
	}
	data, err := e.snaps.LoadCartSnapshot()
	if err != nil || data == nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		applog.StoreWarn("cart.snapshot.corrupt", err, nil)
		return
	}
	e.items = nil
	for _, it := range snap.Items {
		if it.ID == "" || it.ProductID == "" {
			continue
		}
		if it.Quantity < 0 {
			it.Quantity = 0
		}
		if it.UnitPrice.IsNegative() {
			it.UnitPrice = decimal.Zero
		}
		it.LineTotal = lineTotal(it)
		e.items = append(e.items, it)
	}
	e.payment = snap.Payment
	if e.payment.Method != domain.PayCard {
		e.payment.Method = domain.PayCash
	}
	e.payment.AmountReceived = clampNonNegative(e.payment.AmountReceived)
	e.taxRate = validate.ClampRate(snap.TaxRate)
	e.taxIncluded = snap.TaxIncluded
	e.redeemValue = clampNonNegative(snap.RedeemValue)
	if snap.RedeemPoints > 0 {
		e.redeemPoints = snap.RedeemPoints
	}
}

// AddItem appends a new line with quantity 1, or bumps an existing line for
// the same product. The unit price is the promotion-effective price at the
// moment of adding.
func (e *Engine) AddItem(p domain.Product) domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	price := p.Price
	if e.prices != nil {
		price, _, _ = e.prices.EffectivePrice(p.ID, p.Price)
	}
	for i := range e.items {
		if e.items[i].ProductID == p.ID {
			e.items[i].Quantity++
			e.items[i].LineTotal = lineTotal(e.items[i])
			return e.mutated()
		}
	}
	it := domain.CartItem{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   p.Barcode,
		UnitPrice: price,
		Quantity:  1,
	}
	it.LineTotal = lineTotal(it)
	e.items = append(e.items, it)
	return e.mutated()
}

// UpdateQuantity sets a line's quantity. Zero is allowed mid-edit and the
// line is kept (removal is explicit); a zero line contributes nothing to the
// subtotal but blocks submission.
func (e *Engine) UpdateQuantity(lineID string, qty int) (domain.CartSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if qty < 0 {
		qty = 0
	}
	for i := range e.items {
		if e.items[i].ID == lineID {
			e.items[i].Quantity = qty
			e.items[i].LineTotal = lineTotal(e.items[i])
			return e.mutated(), nil
		}
	}
	return e.summary, domain.ErrLineNotFound
}

func (e *Engine) RemoveItem(lineID string) (domain.CartSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].ID == lineID {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return e.mutated(), nil
		}
	}
	return e.summary, domain.ErrLineNotFound
}

// Clear resets items, payment and redemption to defaults and purges the
// persisted snapshot. The offline queue is untouched; queued sales are
// independent of the working cart.
func (e *Engine) Clear() domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.payment = domain.PaymentData{Method: domain.PayCash}
	e.redeemPoints = 0
	e.redeemValue = e.defaultRedeemValue
	e.taxRate = e.defaultTaxRate
	e.taxIncluded = e.defaultTaxIncluded
	e.recompute()
	if e.snaps != nil {
		if err := e.snaps.ClearCartSnapshot(); err != nil {
			applog.StoreWarn("cart.snapshot.clear", err, nil)
		}
	}
	return e.summary
}

func (e *Engine) SetTax(rate decimal.Decimal, included bool) domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taxRate = validate.ClampRate(rate)
	e.taxIncluded = included
	return e.mutated()
}

func (e *Engine) SetRedemption(points int64, valuePerPoint decimal.Decimal) domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if points < 0 {
		points = 0
	}
	e.redeemPoints = points
	e.redeemValue = clampNonNegative(valuePerPoint)
	return e.mutated()
}

func (e *Engine) SetPayment(method domain.PaymentMethod, amountReceived decimal.Decimal) domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if method != domain.PayCard {
		method = domain.PayCash
	}
	e.payment.Method = method
	e.payment.AmountReceived = clampNonNegative(amountReceived)
	return e.mutated()
}

func (e *Engine) Summary() domain.CartSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

func (e *Engine) Items() []domain.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.CartItem(nil), e.items...)
}

func (e *Engine) Payment() domain.PaymentData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paymentView()
}

func (e *Engine) RedeemPoints() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.redeemPoints
}

// Checkout validates the cart and freezes it into a sale payload. The
// payload carries copies of everything; the live cart can be cleared or
// edited afterwards without touching it. The idempotency key is left empty
// here: the submission layer mints it exactly once per logical sale.
func (e *Engine) Checkout(storeID, cashierID string) (domain.SalePayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.items) == 0 {
		return domain.SalePayload{}, domain.ErrEmptyCart
	}
	for _, it := range e.items {
		if it.Quantity == 0 {
			return domain.SalePayload{}, domain.ErrZeroQuantityLine
		}
	}
	pay := e.paymentView()
	if pay.Method == domain.PayCash && pay.AmountReceived.LessThan(e.summary.Total) {
		return domain.SalePayload{}, domain.ErrInsufficientPayment
	}

	return domain.SalePayload{
		StoreID:      storeID,
		CashierID:    cashierID,
		Items:        append([]domain.CartItem(nil), e.items...),
		Summary:      e.summary,
		Payment:      pay,
		RedeemPoints: e.redeemPoints,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// mutated recomputes the summary and persists the snapshot; callers hold the
// lock. Snapshot failures are non-fatal: the cart keeps working, the sale in
// progress just would not survive a crash.
func (e *Engine) mutated() domain.CartSummary {
	e.recompute()
	if e.snaps != nil {
		data, err := json.Marshal(snapshot{
			Items:        e.items,
			Payment:      e.payment,
			TaxRate:      e.taxRate,
			TaxIncluded:  e.taxIncluded,
			RedeemValue:  e.redeemValue,
			RedeemPoints: e.redeemPoints,
		})
		if err == nil {
			err = e.snaps.SaveCartSnapshot(data)
		}
		if err != nil {
			applog.StoreWarn("cart.snapshot.save", err, nil)
		}
	}
	return e.summary
}

func (e *Engine) recompute() {
	e.summary = ComputeSummary(e.items, e.taxRate, e.taxIncluded, e.redeemPoints, e.redeemValue)
}

func (e *Engine) paymentView() domain.PaymentData {
	pay := e.payment
	if pay.Method == domain.PayCash {
		change := pay.AmountReceived.Sub(e.summary.Total)
		if change.IsNegative() {
			change = decimal.Zero
		}
		pay.ChangeDue = change
	} else {
		pay.AmountReceived = decimal.Zero
		pay.ChangeDue = decimal.Zero
	}
	return pay
}

// ComputeSummary is the pure pricing function behind the engine.
//
// Exclusive mode: tax is added on top of the discounted subtotal.
// Inclusive mode: item prices already contain tax; the pre-tax amount is
// back-calculated and reported as the subtotal, so subtotal + tax equals the
// total exactly in both modes. A zero rate makes the two modes coincide.
func ComputeSummary(items []domain.CartItem, taxRate decimal.Decimal, taxIncluded bool, redeemPoints int64, redeemValue decimal.Decimal) domain.CartSummary {
	taxRate = validate.ClampRate(taxRate)
	redeemValue = clampNonNegative(redeemValue)
	if redeemPoints < 0 {
		redeemPoints = 0
	}

	sub := decimal.Zero
	count := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		sub = sub.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}

	sub = sub.Round(2)
	redeem := decimal.NewFromInt(redeemPoints).Mul(redeemValue).Round(2)
	if redeem.GreaterThan(sub) {
		redeem = sub
	}
	discounted := sub.Sub(redeem)

	s := domain.CartSummary{
		ItemCount:      count,
		RedeemDiscount: redeem,
		TaxRate:        taxRate,
		TaxIncluded:    taxIncluded,
	}
	if taxIncluded {
		one := decimal.NewFromInt(1)
		preTax := discounted.Div(one.Add(taxRate)).Round(2)
		s.Subtotal = preTax
		s.Tax = discounted.Sub(preTax)
		s.Total = discounted
		return s
	}
	tax := discounted.Mul(taxRate).Round(2)
	s.Subtotal = sub
	s.Tax = tax
	s.Total = discounted.Add(tax)
	return s
}

func lineTotal(it domain.CartItem) decimal.Decimal {
	if it.Quantity <= 0 {
		return decimal.Zero
	}
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
