package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tillpoint/internal/domain"
)

type SQLiteStore struct{ db *sqlx.DB }

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Sales captured offline (or after a failed direct send), append-only until
-- the server acknowledges the idempotency key.
CREATE TABLE IF NOT EXISTS offline_sales(
  id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL,
  url TEXT NOT NULL,
  method TEXT NOT NULL DEFAULT 'POST',
  headers_json TEXT NOT NULL DEFAULT '{}',
  payload BLOB NOT NULL,
  created_at INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  next_attempt_at INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  claimed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_offline_sales_created_at ON offline_sales(created_at);
CREATE INDEX IF NOT EXISTS idx_offline_sales_next_attempt ON offline_sales(next_attempt_at);

-- The sale in progress. Overwritten on every cart mutation; one row.
CREATE TABLE IF NOT EXISTS cart_snapshot(
  id INTEGER PRIMARY KEY CHECK (id = 1),
  data BLOB NOT NULL,
  updated_at TEXT
);

-- Server-acknowledged sales, kept so receipts can be re-rendered.
CREATE TABLE IF NOT EXISTS confirmed_sales(
  id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL UNIQUE,
  sale_number TEXT NOT NULL,
  payload BLOB NOT NULL,
  completed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_confirmed_sales_completed ON confirmed_sales(completed_at);
`
	_, err := db.Exec(schema)
	return err
}

type saleRow struct {
	ID             string        `db:"id"`
	IdempotencyKey string        `db:"idempotency_key"`
	URL            string        `db:"url"`
	Method         string        `db:"method"`
	HeadersJSON    string        `db:"headers_json"`
	Payload        []byte        `db:"payload"`
	CreatedAt      int64         `db:"created_at"`
	Attempts       int           `db:"attempts"`
	NextAttemptAt  int64         `db:"next_attempt_at"`
	LastError      string        `db:"last_error"`
	ClaimedAt      sql.NullInt64 `db:"claimed_at"`
}

func (r saleRow) record() domain.OfflineSaleRecord {
	headers := map[string]string{}
	_ = json.Unmarshal([]byte(r.HeadersJSON), &headers)
	return domain.OfflineSaleRecord{
		ID:             r.ID,
		IdempotencyKey: r.IdempotencyKey,
		URL:            r.URL,
		Method:         r.Method,
		Headers:        headers,
		Payload:        r.Payload,
		CreatedAt:      time.Unix(0, r.CreatedAt),
		Attempts:       r.Attempts,
		NextAttemptAt:  time.Unix(0, r.NextAttemptAt),
		LastError:      r.LastError,
	}
}

func (s *SQLiteStore) AppendSale(rec *domain.OfflineSaleRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO offline_sales(id, idempotency_key, url, method, headers_json, payload,
		  created_at, attempts, next_attempt_at, last_error)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.IdempotencyKey, rec.URL, rec.Method, string(headers), rec.Payload,
		rec.CreatedAt.UnixNano(), rec.Attempts, rec.NextAttemptAt.UnixNano(), rec.LastError)
	return err
}

func (s *SQLiteStore) PendingCount() (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM offline_sales`)
	return n, err
}

func (s *SQLiteStore) EscalatedCount(minAttempts int) (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM offline_sales WHERE attempts >= ?`, minAttempts)
	return n, err
}

func (s *SQLiteStore) DuePending(now, staleBefore time.Time, limit int) ([]domain.OfflineSaleRecord, error) {
	var rows []saleRow
	err := s.db.Select(&rows, `
		SELECT id, idempotency_key, url, method, headers_json, payload,
		       created_at, attempts, next_attempt_at, last_error, claimed_at
		FROM offline_sales
		WHERE next_attempt_at <= ?
		  AND (claimed_at IS NULL OR claimed_at < ?)
		ORDER BY created_at ASC
		LIMIT ?`, now.UnixNano(), staleBefore.UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OfflineSaleRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SQLiteStore) Claim(id string, now, staleBefore time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE offline_sales SET claimed_at = ?
		WHERE id = ? AND (claimed_at IS NULL OR claimed_at < ?)`,
		now.UnixNano(), id, staleBefore.UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLiteStore) Release(id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE offline_sales
		SET attempts = ?, last_error = ?, next_attempt_at = ?, claimed_at = NULL
		WHERE id = ?`, attempts, lastError, nextAttemptAt.UnixNano(), id)
	return err
}

func (s *SQLiteStore) Confirm(id string) error {
	_, err := s.db.Exec(`DELETE FROM offline_sales WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) SaveCartSnapshot(data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO cart_snapshot(id, data, updated_at) VALUES(1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		data, time.Now().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) LoadCartSnapshot() ([]byte, error) {
	var data []byte
	err := s.db.Get(&data, `SELECT data FROM cart_snapshot WHERE id = 1`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return data, err
}

func (s *SQLiteStore) ClearCartSnapshot() error {
	_, err := s.db.Exec(`DELETE FROM cart_snapshot WHERE id = 1`)
	return err
}

func (s *SQLiteStore) RecordConfirmation(c *domain.ConfirmedSale) error {
	_, err := s.db.Exec(`
		INSERT INTO confirmed_sales(id, idempotency_key, sale_number, payload, completed_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(idempotency_key) DO NOTHING`,
		c.ID, c.IdempotencyKey, c.SaleNumber, c.Payload, c.CompletedAt.UnixNano())
	return err
}

type confirmedRow struct {
	ID             string `db:"id"`
	IdempotencyKey string `db:"idempotency_key"`
	SaleNumber     string `db:"sale_number"`
	Payload        []byte `db:"payload"`
	CompletedAt    int64  `db:"completed_at"`
}

func (r confirmedRow) sale() domain.ConfirmedSale {
	return domain.ConfirmedSale{
		ID:             r.ID,
		IdempotencyKey: r.IdempotencyKey,
		SaleNumber:     r.SaleNumber,
		Payload:        r.Payload,
		CompletedAt:    time.Unix(0, r.CompletedAt),
	}
}

func (s *SQLiteStore) Confirmations(limit int) ([]domain.ConfirmedSale, error) {
	var rows []confirmedRow
	err := s.db.Select(&rows, `
		SELECT id, idempotency_key, sale_number, payload, completed_at
		FROM confirmed_sales ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ConfirmedSale, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.sale())
	}
	return out, nil
}

func (s *SQLiteStore) ConfirmationByKey(key string) (*domain.ConfirmedSale, error) {
	var r confirmedRow
	err := s.db.Get(&r, `
		SELECT id, idempotency_key, sale_number, payload, completed_at
		FROM confirmed_sales WHERE idempotency_key = ?`, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := r.sale()
	return &c, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
