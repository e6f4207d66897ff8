// Package jsonfile implements the default ledger backend: two JSON
// documents (income and expense) rewritten in full on every append.
// Suited to the single-writer control loop; anything heavier should use
// the postgres backend.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/phindlabs/revloop/internal/domain"
)

const (
	incomeFile  = "income.json"
	expenseFile = "expense.json"
)

// document is the on-disk shape of each ledger file.
type document struct {
	Entries []domain.LedgerEvent `json:"entries"`
}

// Store is a file-backed domain.LedgerStore.
type Store struct {
	mu  sync.Mutex
	dir string

	income   []domain.LedgerEvent
	expenses []domain.LedgerEvent
}

var _ domain.LedgerStore = (*Store)(nil)

// New opens (or creates) the ledger directory and loads any existing
// documents into memory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create dir: %w", err)
	}
	s := &Store{dir: dir}
	var err error
	if s.income, err = readDocument(filepath.Join(dir, incomeFile)); err != nil {
		return nil, err
	}
	if s.expenses, err = readDocument(filepath.Join(dir, expenseFile)); err != nil {
		return nil, err
	}
	return s, nil
}

func readDocument(path string) ([]domain.LedgerEvent, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", filepath.Base(path), err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: parse %s: %w", filepath.Base(path), err)
	}
	return doc.Entries, nil
}

// Append adds the event to its document and rewrites the file.
func (s *Store) Append(ctx context.Context, ev domain.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("jsonfile: append: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case domain.EventIncome:
		s.income = append(s.income, ev)
		return s.writeLocked(incomeFile, s.income)
	case domain.EventExpense:
		s.expenses = append(s.expenses, ev)
		return s.writeLocked(expenseFile, s.expenses)
	default:
		return fmt.Errorf("jsonfile: append: unknown event kind %q", ev.Kind)
	}
}

// writeLocked rewrites one document atomically (temp file + rename).
func (s *Store) writeLocked(name string, entries []domain.LedgerEvent) error {
	data, err := json.MarshalIndent(document{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("jsonfile: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("jsonfile: rename %s: %w", name, err)
	}
	return nil
}

// LoadAll returns every persisted event ordered by timestamp.
func (s *Store) LoadAll(ctx context.Context) ([]domain.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("jsonfile: load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.LedgerEvent, 0, len(s.income)+len(s.expenses))
	out = append(out, s.income...)
	out = append(out, s.expenses...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Close is a no-op; every append already left the files consistent.
func (s *Store) Close() error { return nil }
