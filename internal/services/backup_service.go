package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/storage"
)

const backupVersion = "1.0"

// backupBag is the portable JSON form of the whole book. The four required
// collections are pointers so a missing key is distinguishable from an
// empty one on import.
type backupBag struct {
	ExportDate    string               `json:"exportDate"`
	Version       string               `json:"version"`
	Config        *core.Config         `json:"config"`
	Members       *[]core.Member       `json:"members"`
	Loans         *[]core.Loan         `json:"loans"`
	Contributions *[]core.Contribution `json:"contributions"`
	Expenses      []core.Expense       `json:"expenses"`
	Transactions  []core.Transaction   `json:"transactions"`
	Refunds       []core.Refund        `json:"refunds"`
	Activities    []core.ActivityLog   `json:"activities"`
	Cashbox       float64              `json:"cashbox"`
}

// BackupService exports and restores the whole book as a single JSON
// document.
type BackupService struct {
	book     *Book
	store    storage.Store
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time
}

func NewBackupService(d Deps) *BackupService {
	d = d.withDefaults()
	return &BackupService{
		book:     d.Book,
		store:    d.Store,
		notifier: d.Notifier,
		logger:   d.Logger.WithComponent(log.ComponentBackup),
		now:      d.Clock,
	}
}

// nonNil keeps empty collections serializing as [] rather than null, so a
// freshly exported bag always round-trips through Import.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Export writes the full book as an indented JSON bag.
func (s *BackupService) Export(w io.Writer) error {
	members := nonNil(s.book.Members)
	loans := nonNil(s.book.Loans)
	contributions := nonNil(s.book.Contributions)

	bag := backupBag{
		ExportDate:    s.now().UTC().Format(time.RFC3339),
		Version:       backupVersion,
		Config:        &s.book.Config,
		Members:       &members,
		Loans:         &loans,
		Contributions: &contributions,
		Expenses:      nonNil(s.book.Expenses),
		Transactions:  nonNil(s.book.Transactions),
		Refunds:       nonNil(s.book.Refunds),
		Activities:    nonNil(s.book.Activities),
		Cashbox:       s.book.Cashbox,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bag); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	s.logger.Info("Backup exported",
		log.FieldOperation, log.OpExport,
		"members", len(s.book.Members),
		"loans", len(s.book.Loans))
	return nil
}

// Import replaces the entire book with the bag's contents. The bag must
// carry config, members, loans and contributions; the remaining collections
// default to empty. The store is cleared before the restored book is
// flushed, so no stale collection survives.
func (s *BackupService) Import(ctx context.Context, r io.Reader) error {
	var bag backupBag
	if err := json.NewDecoder(r).Decode(&bag); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidBackupFormat, err)
	}
	if bag.Config == nil || bag.Members == nil || bag.Loans == nil || bag.Contributions == nil {
		return fmt.Errorf("%w: missing required collections", core.ErrInvalidBackupFormat)
	}

	restored := Book{
		Config:        *bag.Config,
		Members:       *bag.Members,
		Loans:         *bag.Loans,
		Contributions: *bag.Contributions,
		Expenses:      bag.Expenses,
		Transactions:  bag.Transactions,
		Refunds:       bag.Refunds,
		Activities:    bag.Activities,
		Cashbox:       bag.Cashbox,
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store before restore: %w", err)
	}
	*s.book = restored
	if err := s.book.Flush(ctx, s.store); err != nil {
		return fmt.Errorf("persist restored book: %w", err)
	}

	s.notifier.Notify(notify.Success, "Backup restored",
		fmt.Sprintf("Restored %d members and %d loans.", len(s.book.Members), len(s.book.Loans)))
	s.logger.InfoContext(ctx, "Backup imported",
		log.FieldOperation, log.OpImport,
		"members", len(s.book.Members),
		"loans", len(s.book.Loans))
	return nil
}
