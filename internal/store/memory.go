package store

import (
	"sort"
	"sync"
	"time"

	"tillpoint/internal/domain"
)

// MemoryStore is the degraded fallback when SQLite cannot be opened. Queued
// sales survive only until the process exits; the operator debugging data
// loss is the only one who should ever care which backend is live.
type MemoryStore struct {
	mu        sync.Mutex
	sales     map[string]*memSale
	snapshot  []byte
	confirmed []domain.ConfirmedSale
}

type memSale struct {
	rec       domain.OfflineSaleRecord
	claimedAt time.Time
	claimed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sales: map[string]*memSale{}}
}

func (m *MemoryStore) AppendSale(rec *domain.OfflineSaleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.sales[rec.ID] = &memSale{rec: cp}
	return nil
}

func (m *MemoryStore) PendingCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales), nil
}

func (m *MemoryStore) EscalatedCount(minAttempts int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sales {
		if s.rec.Attempts >= minAttempts {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DuePending(now, staleBefore time.Time, limit int) ([]domain.OfflineSaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OfflineSaleRecord
	for _, s := range m.sales {
		if s.rec.NextAttemptAt.After(now) {
			continue
		}
		if s.claimed && !s.claimedAt.Before(staleBefore) {
			continue
		}
		out = append(out, s.rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Claim(id string, now, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return false, nil
	}
	if s.claimed && !s.claimedAt.Before(staleBefore) {
		return false, nil
	}
	s.claimed = true
	s.claimedAt = now
	return true, nil
}

func (m *MemoryStore) Release(id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok {
		s.rec.Attempts = attempts
		s.rec.LastError = lastError
		s.rec.NextAttemptAt = nextAttemptAt
		s.claimed = false
	}
	return nil
}

func (m *MemoryStore) Confirm(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sales, id)
	return nil
}

func (m *MemoryStore) SaveCartSnapshot(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) LoadCartSnapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, nil
	}
	return append([]byte(nil), m.snapshot...), nil
}

func (m *MemoryStore) ClearCartSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}

func (m *MemoryStore) RecordConfirmation(c *domain.ConfirmedSale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.confirmed {
		if existing.IdempotencyKey == c.IdempotencyKey {
			return nil
		}
	}
	m.confirmed = append(m.confirmed, *c)
	return nil
}

func (m *MemoryStore) Confirmations(limit int) ([]domain.ConfirmedSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.ConfirmedSale(nil), m.confirmed...)
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ConfirmationByKey(key string) (*domain.ConfirmedSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.confirmed {
		if m.confirmed[i].IdempotencyKey == key {
			c := m.confirmed[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Close() error { return nil }
