package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the register works from. The catalog itself
// lives upstream; the register only ever sees these read-only fields.
type Product struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Barcode string          `json:"barcode"`
	Price   decimal.Decimal `json:"price"`
}

// CartItem is one line of the working sale.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type PaymentMethod string

const (
	PayCash PaymentMethod = "cash"
	PayCard PaymentMethod = "card"
)

type PaymentData struct {
	Method         PaymentMethod   `json:"method"`
	AmountReceived decimal.Decimal `json:"amountReceived"`
	ChangeDue      decimal.Decimal `json:"changeDue"`
}

// CartSummary is always derived from the items plus tax/redemption state,
// never stored on its own. In tax-inclusive mode Subtotal is the
// back-calculated pre-tax amount, so Subtotal + Tax == Total in both modes
// after redemption.
type CartSummary struct {
	ItemCount      int             `json:"itemCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	RedeemDiscount decimal.Decimal `json:"redeemDiscount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TaxIncluded    bool            `json:"taxIncluded"`
}

type PromotionType string

const (
	PromoPercentage PromotionType = "percentage"
	PromoBundle     PromotionType = "bundle"
)

// Promotion is a server-defined discount rule. Bundle promotions are looked
// up for display but never priced by the register.
type Promotion struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId"`
	Type            PromotionType   `json:"type"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// SalePayload is the frozen snapshot of a sale at the moment the cashier
// commits it. It embeds copies of the cart lines, not live cart state; the
// cart may be cleared and reused long before a queued payload is replayed.
type SalePayload struct {
	IdempotencyKey string      `json:"idempotencyKey"`
	StoreID        string      `json:"storeId"`
	CashierID      string      `json:"cashierId"`
	Items          []CartItem  `json:"items"`
	Summary        CartSummary `json:"summary"`
	Payment        PaymentData `json:"payment"`
	RedeemPoints   int64       `json:"redeemPoints"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// OfflineSaleRecord is the unit of durable queued work: a fully-formed
// submission request waiting for the server to acknowledge it. Destroyed
// only after a 2xx for its idempotency key.
type OfflineSaleRecord struct {
	ID             string            `json:"id"`
	IdempotencyKey string            `json:"idempotencyKey"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Payload        []byte            `json:"payload"`
	CreatedAt      time.Time         `json:"createdAt"`
	Attempts       int               `json:"attempts"`
	NextAttemptAt  time.Time         `json:"nextAttemptAt"`
	LastError      string            `json:"lastError"`
}

// SaleConfirmation is what the sales endpoint returns on success.
type SaleConfirmation struct {
	SaleNumber string `json:"saleNumber"`
	Message    string `json:"message,omitempty"`
}

// ConfirmedSale is the local journal row written once the server has
// acknowledged a sale, so receipts can be re-rendered later.
type ConfirmedSale struct {
	ID             string
	IdempotencyKey string
	SaleNumber     string
	Payload        []byte
	CompletedAt    time.Time
}
