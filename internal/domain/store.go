package domain

import "context"

// LedgerStore persists ledger events. The ledger service keeps the
// authoritative copy in memory; the store is the durable mirror.
type LedgerStore interface {
	Append(ctx context.Context, ev LedgerEvent) error
	LoadAll(ctx context.Context) ([]LedgerEvent, error)
	Close() error
}
