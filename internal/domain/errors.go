package domain

import "errors"

// Validation failures are rejected synchronously at the engine boundary,
// before any queue or network interaction.
var (
	ErrEmptyCart           = errors.New("cart has no items")
	ErrZeroQuantityLine    = errors.New("cart has a line with zero quantity")
	ErrInsufficientPayment = errors.New("cash received is less than the total")
	ErrLineNotFound        = errors.New("cart line not found")
)

// ErrDataLoss means the sale could not be persisted anywhere. This is the
// one failure that must be surfaced loudly instead of degraded around.
var ErrDataLoss = errors.New("sale could not be persisted to any local store")
