package domain

import "context"

// BusMessage is one event delivered over the signal bus.
type BusMessage struct {
	Channel string
	Payload []byte
}

// SignalBus fans domain events (income, risk, opportunities) out to
// dashboard consumers and any external subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
	// StreamAppend mirrors the event onto a durable stream for replay.
	StreamAppend(ctx context.Context, stream string, payload any) error
	Close() error
}

// LockManager provides a coarse leader lock so only one control loop
// runs against a shared ledger at a time.
type LockManager interface {
	// Acquire returns ErrLockHeld when another holder owns the lock.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// BlobWriter persists JSON snapshots to object storage.
type BlobWriter interface {
	PutJSON(ctx context.Context, key string, v any) error
}
