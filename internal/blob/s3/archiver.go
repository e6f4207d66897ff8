package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

// LedgerArchiveSource exposes the aged ledger events the archiver copies
// to cold storage. The ledger service satisfies this.
type LedgerArchiveSource interface {
	EventsBefore(cutoff time.Time) []domain.LedgerEvent
}

// RiskArchiveSource exposes the violation log. Archived violations are
// pruned from memory after a successful upload.
type RiskArchiveSource interface {
	Violations() []domain.RiskViolation
	Prune(olderThan time.Time) int
}

// ArchiverConfig holds the archival loop's tunables.
type ArchiverConfig struct {
	// Interval between archive passes.
	Interval time.Duration
	// Retention is how much recent history stays out of cold storage.
	Retention time.Duration
}

// Archiver periodically snapshots aged ledger events and risk violations
// to object storage as JSONL, then prunes the archived violations.
// Ledger events stay in their primary store; the upload is a mirror.
type Archiver struct {
	writer *Writer
	ledger LedgerArchiveSource
	risk   RiskArchiveSource
	cfg    ArchiverConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver. Zero config fields get 1h interval
// and 24h retention.
func NewArchiver(writer *Writer, ledger LedgerArchiveSource, risk RiskArchiveSource, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &Archiver{
		writer: writer,
		ledger: ledger,
		risk:   risk,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Run executes archive passes on the configured interval until the
// context is cancelled. A failed pass is logged and retried next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := a.now().Add(-a.cfg.Retention)
			if err := a.ArchiveOnce(ctx, cutoff); err != nil {
				a.logger.WarnContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveOnce uploads everything older than the cutoff.
func (a *Archiver) ArchiveOnce(ctx context.Context, cutoff time.Time) error {
	if err := a.archiveLedger(ctx, cutoff); err != nil {
		return err
	}
	return a.archiveRisk(ctx, cutoff)
}

func (a *Archiver) archiveLedger(ctx context.Context, cutoff time.Time) error {
	events := a.ledger.EventsBefore(cutoff)
	if len(events) == 0 {
		return nil
	}
	buf, err := marshalJSONL(events)
	if err != nil {
		return fmt.Errorf("s3blob: archive ledger marshal: %w", err)
	}

	path := archivePath("ledger", cutoff)
	if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize); err != nil {
		return fmt.Errorf("s3blob: archive ledger upload: %w", err)
	}
	a.logger.InfoContext(ctx, "ledger events archived",
		slog.String("path", path),
		slog.Int("count", len(events)),
	)
	return nil
}

func (a *Archiver) archiveRisk(ctx context.Context, cutoff time.Time) error {
	all := a.risk.Violations()
	var aged []domain.RiskViolation
	for _, v := range all {
		if v.Timestamp.Before(cutoff) {
			aged = append(aged, v)
		}
	}
	if len(aged) == 0 {
		return nil
	}
	buf, err := marshalJSONL(aged)
	if err != nil {
		return fmt.Errorf("s3blob: archive risk marshal: %w", err)
	}

	path := archivePath("risk_violations", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive risk upload: %w", err)
	}

	pruned := a.risk.Prune(cutoff)
	a.logger.InfoContext(ctx, "risk violations archived",
		slog.String("path", path),
		slog.Int("archived", len(aged)),
		slog.Int("pruned", pruned),
	)
	return nil
}

// archivePath partitions archive keys by the cutoff's year-month:
//
//	archive/ledger/2026-08.jsonl
//	archive/risk_violations/2026-08.jsonl
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006-01"))
}

// marshalJSONL encodes a slice as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
