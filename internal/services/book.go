// Package services implements the cooperative's lifecycle operations on top
// of an explicit aggregate root. Every operation is a synchronous, total
// function over the in-memory book plus a best-effort persistence flush;
// there is a single logical writer and no locking.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coopledger/internal/core"
	"coopledger/internal/storage"
)

// Book is the aggregate root: the whole cooperative state held in memory.
// All mutation goes through its methods or the services that own it; there
// is no ambient global state.
type Book struct {
	Config        core.Config
	Members       []core.Member
	Loans         []core.Loan
	Contributions []core.Contribution
	Expenses      []core.Expense
	Transactions  []core.Transaction
	Refunds       []core.Refund
	Activities    []core.ActivityLog
	Cashbox       float64
}

// NewBook returns an empty book with default configuration.
func NewBook() *Book {
	return &Book{Config: core.DefaultConfig()}
}

// Load replaces the book's state with the store's contents. Collections
// that were never written keep their zero value.
func (b *Book) Load(ctx context.Context, store storage.Store) error {
	load := func(name string, target any) error {
		data, err := store.Get(ctx, name)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode collection %s: %w", name, err)
		}
		return nil
	}

	fresh := NewBook()
	if err := load(storage.CollectionConfig, &fresh.Config); err != nil {
		return err
	}
	if err := load(storage.CollectionMembers, &fresh.Members); err != nil {
		return err
	}
	if err := load(storage.CollectionLoans, &fresh.Loans); err != nil {
		return err
	}
	if err := load(storage.CollectionContributions, &fresh.Contributions); err != nil {
		return err
	}
	if err := load(storage.CollectionExpenses, &fresh.Expenses); err != nil {
		return err
	}
	if err := load(storage.CollectionTransactions, &fresh.Transactions); err != nil {
		return err
	}
	if err := load(storage.CollectionRefunds, &fresh.Refunds); err != nil {
		return err
	}
	if err := load(storage.CollectionActivities, &fresh.Activities); err != nil {
		return err
	}
	if err := load(storage.CollectionCashbox, &fresh.Cashbox); err != nil {
		return err
	}

	*b = *fresh
	return nil
}

// Flush writes every collection wholesale. The in-memory mutation has
// already happened by the time Flush runs; a failed flush leaves the book
// ahead of the store, which callers tolerate and retry.
func (b *Book) Flush(ctx context.Context, store storage.Store) error {
	save := func(name string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", name, err)
		}
		return store.Set(ctx, name, data)
	}

	if err := save(storage.CollectionConfig, b.Config); err != nil {
		return err
	}
	if err := save(storage.CollectionMembers, b.Members); err != nil {
		return err
	}
	if err := save(storage.CollectionLoans, b.Loans); err != nil {
		return err
	}
	if err := save(storage.CollectionContributions, b.Contributions); err != nil {
		return err
	}
	if err := save(storage.CollectionExpenses, b.Expenses); err != nil {
		return err
	}
	if err := save(storage.CollectionTransactions, b.Transactions); err != nil {
		return err
	}
	if err := save(storage.CollectionRefunds, b.Refunds); err != nil {
		return err
	}
	if err := save(storage.CollectionActivities, b.Activities); err != nil {
		return err
	}
	return save(storage.CollectionCashbox, b.Cashbox)
}

// FindMember returns a pointer into the members slice, or nil.
func (b *Book) FindMember(id string) *core.Member {
	for i := range b.Members {
		if b.Members[i].ID == id {
			return &b.Members[i]
		}
	}
	return nil
}

// FindLoan returns a pointer into the loans slice, or nil.
func (b *Book) FindLoan(id string) *core.Loan {
	for i := range b.Loans {
		if b.Loans[i].ID == id {
			return &b.Loans[i]
		}
	}
	return nil
}

// AppendTransaction appends an immutable ledger entry and returns it. The
// append never fails; business validation is the caller's responsibility.
func (b *Book) AppendTransaction(kind core.TransactionType, amount float64, description, referenceID string, now time.Time) core.Transaction {
	tx := core.Transaction{
		ID:          uuid.NewString(),
		Type:        kind,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		Date:        core.FormatDate(now),
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
	b.Transactions = append(b.Transactions, tx)
	return tx
}

// LogActivity records an audited mutation.
func (b *Book) LogActivity(activityType, description, details, referenceID string, now time.Time) core.ActivityLog {
	entry := core.ActivityLog{
		ID:          uuid.NewString(),
		Type:        activityType,
		Description: description,
		Details:     details,
		ReferenceID: referenceID,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	b.Activities = append(b.Activities, entry)
	return entry
}

// AvailableCash derives the cash position from the current snapshot.
func (b *Book) AvailableCash() float64 {
	return core.AvailableCash(b.Transactions, b.Contributions, b.Config.OpeningBalance)
}

// RemoveLoan removes a loan record. Reports whether it existed.
func (b *Book) RemoveLoan(id string) bool {
	for i := range b.Loans {
		if b.Loans[i].ID == id {
			b.Loans = append(b.Loans[:i], b.Loans[i+1:]...)
			return true
		}
	}
	return false
}

// PurgeLoanTransactions removes every ledger entry referencing the loan.
// This is the only structural history removal in the system; it runs after
// the compensating entries (which carry no reference id) have been appended.
func (b *Book) PurgeLoanTransactions(loanID string) {
	kept := b.Transactions[:0]
	for _, t := range b.Transactions {
		if t.ReferenceID != loanID {
			kept = append(kept, t)
		}
	}
	b.Transactions = kept
}
