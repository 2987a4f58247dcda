// Package receipt turns a finalized sale into a printable text document.
// Rendering is pure: identical inputs yield byte-identical output, which is
// what makes print-retry logic safe to build on top. Device specifics live
// behind the Printer interface.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/domain"
)

// Document is everything the renderer needs, already finalized. No live
// cart state reaches this package.
type Document struct {
	StoreName   string
	StoreID     string
	CashierID   string
	SaleNumber  string
	Key         string
	CompletedAt time.Time
	Items       []domain.CartItem
	Summary     domain.CartSummary
	Payment     domain.PaymentData
}

const width = 42

// Render produces the receipt text. Deterministic by construction: all
// inputs are in the Document, times are formatted in UTC.
func Render(doc Document) string {
	var b strings.Builder
	line := strings.Repeat("-", width)

	center(&b, doc.StoreName)
	center(&b, fmt.Sprintf("store %s / cashier %s", doc.StoreID, doc.CashierID))
	b.WriteString(line + "\n")
	row(&b, "Sale", doc.SaleNumber)
	row(&b, "Date", doc.CompletedAt.UTC().Format("2006-01-02 15:04:05"))
	row(&b, "Ref", shortKey(doc.Key))
	b.WriteString(line + "\n")

	for _, it := range doc.Items {
		b.WriteString(it.Name + "\n")
		qty := fmt.Sprintf("  %d x %s", it.Quantity, it.UnitPrice.StringFixed(2))
		row(&b, qty, it.LineTotal.StringFixed(2))
	}
	b.WriteString(line + "\n")

	row(&b, "Subtotal", doc.Summary.Subtotal.StringFixed(2))
	if doc.Summary.RedeemDiscount.IsPositive() {
		row(&b, "Points redeemed", "-"+doc.Summary.RedeemDiscount.StringFixed(2))
	}
	taxLabel := "Tax"
	if doc.Summary.TaxIncluded {
		taxLabel = "Tax (included)"
	}
	row(&b, fmt.Sprintf("%s %s%%", taxLabel, ratePercent(doc.Summary.TaxRate)), doc.Summary.Tax.StringFixed(2))
	row(&b, "TOTAL", doc.Summary.Total.StringFixed(2))
	b.WriteString(line + "\n")

	switch doc.Payment.Method {
	case domain.PayCash:
		row(&b, "Cash", doc.Payment.AmountReceived.StringFixed(2))
		row(&b, "Change", doc.Payment.ChangeDue.StringFixed(2))
	case domain.PayCard:
		row(&b, "Card", doc.Summary.Total.StringFixed(2))
	}
	b.WriteString(line + "\n")
	center(&b, "Thank you!")
	return b.String()
}

func row(b *strings.Builder, left, right string) {
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left + strings.Repeat(" ", gap) + right + "\n")
}

func center(b *strings.Builder, s string) {
	if len(s) >= width {
		b.WriteString(s + "\n")
		return
	}
	pad := (width - len(s)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func ratePercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String()
}

// FromConfirmation rebuilds a Document from a journaled sale.
func FromConfirmation(c domain.ConfirmedSale, payload domain.SalePayload, storeName string) Document {
	return Document{
		StoreName:   storeName,
		StoreID:     payload.StoreID,
		CashierID:   payload.CashierID,
		SaleNumber:  c.SaleNumber,
		Key:         c.IdempotencyKey,
		CompletedAt: c.CompletedAt,
		Items:       payload.Items,
		Summary:     payload.Summary,
		Payment:     payload.Payment,
	}
}
