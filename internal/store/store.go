// Package store is the register's durable local storage: the offline sale
// queue, the working-cart snapshot, and the confirmed-sale journal.
//
// Two implementations exist behind one interface: SQLite (survives a full
// process restart) and an in-memory fallback (survives only the process).
// The implementation is picked once at startup by capability probe; callers
// never branch on which backend is active.
package store

import (
	"time"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
)

type DurableStore interface {
	// AppendSale appends a new queue record. Never deduplicates: the caller
	// owns calling it once per sale.
	AppendSale(rec *domain.OfflineSaleRecord) error
	// PendingCount is the number of records not yet confirmed by the server.
	PendingCount() (int, error)
	// EscalatedCount is the number of pending records with at least
	// minAttempts failed attempts, surfaced separately so the UI can escalate.
	EscalatedCount(minAttempts int) (int, error)
	// DuePending returns unclaimed records whose nextAttemptAt has passed,
	// oldest first. Records claimed after staleBefore are skipped: they are
	// in flight under another drain pass.
	DuePending(now, staleBefore time.Time, limit int) ([]domain.OfflineSaleRecord, error)
	// Claim marks a record in flight. Returns false if the record is gone or
	// already claimed since staleBefore.
	Claim(id string, now, staleBefore time.Time) (bool, error)
	// Release records a failed attempt and schedules the next one.
	Release(id string, attempts int, lastError string, nextAttemptAt time.Time) error
	// Confirm removes a record after the server acknowledged its key.
	Confirm(id string) error

	SaveCartSnapshot(data []byte) error
	LoadCartSnapshot() ([]byte, error) // nil, nil when no snapshot exists
	ClearCartSnapshot() error

	RecordConfirmation(c *domain.ConfirmedSale) error
	Confirmations(limit int) ([]domain.ConfirmedSale, error)
	ConfirmationByKey(key string) (*domain.ConfirmedSale, error)

	Close() error
}

// OpenWithFallback probes the durable backend and degrades to the in-memory
// store when it is unavailable. The second return reports durability, for
// logging only; callers get the same interface either way.
func OpenWithFallback(path string) (DurableStore, bool) {
	s, err := OpenSQLite(path)
	if err != nil {
		applog.StoreWarn("sqlite.unavailable", err, map[string]any{"path": path})
		return NewMemoryStore(), false
	}
	return s, true
}
