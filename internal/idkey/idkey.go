// Package idkey generates the idempotency key attached to a sale submission.
//
// The key is generated exactly once per logical sale, when the cashier
// commits it, and is reused verbatim across every retry of that sale. Any
// path that mints a fresh key for the same sale breaks at-most-once delivery.
package idkey

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// New returns a UUIDv4 from the crypto source, falling back to a
// timestamp+random composite if that source is unavailable.
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%d-%08x", time.Now().UnixNano(), rand.Uint32())
	}
	return id.String()
}
