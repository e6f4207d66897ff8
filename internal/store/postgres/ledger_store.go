package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phindlabs/revloop/internal/domain"
)

// LedgerStore persists ledger events in PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a LedgerStore on the client's pool.
func NewLedgerStore(client *Client) *LedgerStore {
	return &LedgerStore{pool: client.Pool()}
}

// Append inserts one ledger event. Replaying an already-stored event ID
// is a no-op, so the in-memory ledger can retry safely.
func (s *LedgerStore) Append(ctx context.Context, ev domain.LedgerEvent) error {
	const q = `
		INSERT INTO ledger_events (id, ts, kind, amount, label, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	details := ev.Details
	if details == nil {
		details = map[string]string{}
	}
	if _, err := s.pool.Exec(ctx, q, ev.ID, ev.Timestamp, string(ev.Kind), ev.Amount, ev.Label, details); err != nil {
		return fmt.Errorf("postgres: append ledger event: %w", err)
	}
	return nil
}

// LoadAll returns every persisted event ordered by timestamp.
func (s *LedgerStore) LoadAll(ctx context.Context) ([]domain.LedgerEvent, error) {
	const q = `
		SELECT id, ts, kind, amount, label, details
		FROM ledger_events
		ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: load ledger events: %w", err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			ev   domain.LedgerEvent
			kind string
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &kind, &ev.Amount, &ev.Label, &ev.Details); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate ledger events: %w", err)
	}
	return events, nil
}

// DailySum returns the income or expense total for one "2006-01-02" day
// bucket, computed in SQL.
func (s *LedgerStore) DailySum(ctx context.Context, kind domain.EventKind, date string) (float64, error) {
	const q = `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_events
		WHERE kind = $1 AND to_char(ts, 'YYYY-MM-DD') = $2`
	var sum float64
	if err := s.pool.QueryRow(ctx, q, string(kind), date).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: daily sum: %w", err)
	}
	return sum, nil
}

// Close satisfies domain.LedgerStore; the pool is owned by the Client.
func (s *LedgerStore) Close() error { return nil }
