package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"coopledger/internal/core"
	"coopledger/internal/storage"
)

func newBackupFixture(t *testing.T) (*BackupService, *Book, *storage.MemoryStore) {
	t.Helper()

	book := NewBook()
	book.Members = append(book.Members, core.Member{ID: "m1", Name: "Maria Gomez", Status: core.MemberActive})
	book.Contributions = append(book.Contributions, core.Contribution{
		ID: "c1", MemberID: "m1", ShareAmount: 25, TotalAmount: 25, Status: core.ContributionPaid,
	})
	book.Transactions = append(book.Transactions, core.Transaction{
		ID: "t1", Type: core.TxManualAdjustment, Amount: 100,
	})
	book.Activities = append(book.Activities, core.ActivityLog{
		ID: "a1", Type: "member_added", Description: "Member added: Maria Gomez",
	})

	store := storage.NewMemoryStore()
	svc := NewBackupService(Deps{
		Book:  book,
		Store: store,
		Clock: testClock,
	})
	return svc, book, store
}

func TestExportBag(t *testing.T) {
	svc, _, _ := newBackupFixture(t)

	var sb strings.Builder
	if err := svc.Export(&sb); err != nil {
		t.Fatalf("export: %v", err)
	}

	var bag map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sb.String()), &bag); err != nil {
		t.Fatalf("exported bag is not valid JSON: %v", err)
	}

	keys := []string{
		"exportDate", "version", "config", "members", "loans", "contributions",
		"expenses", "transactions", "refunds", "activities", "cashbox",
	}
	for _, key := range keys {
		if _, ok := bag[key]; !ok {
			t.Errorf("bag missing key %q", key)
		}
	}

	var version string
	if err := json.Unmarshal(bag["version"], &version); err != nil || version != "1.0" {
		t.Errorf("version = %q (%v), want 1.0", version, err)
	}
}

func TestExportEmptyBookRoundTrips(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewBackupService(Deps{Book: NewBook(), Store: store, Clock: testClock})

	var sb strings.Builder
	if err := svc.Export(&sb); err != nil {
		t.Fatalf("export: %v", err)
	}

	var bag map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sb.String()), &bag); err != nil {
		t.Fatalf("exported bag is not valid JSON: %v", err)
	}
	for _, key := range []string{"members", "loans", "contributions", "activities"} {
		if string(bag[key]) == "null" {
			t.Errorf("empty collection %q serialized as null, want []", key)
		}
	}

	fresh := NewBook()
	restore := NewBackupService(Deps{Book: fresh, Store: store, Clock: testClock})
	if err := restore.Import(context.Background(), strings.NewReader(sb.String())); err != nil {
		t.Fatalf("import of own empty export: %v", err)
	}
}

func TestImportRoundTrip(t *testing.T) {
	svc, book, store := newBackupFixture(t)

	var sb strings.Builder
	if err := svc.Export(&sb); err != nil {
		t.Fatalf("export: %v", err)
	}
	cashBefore := book.AvailableCash()

	// Restore into a fresh book backed by the same store.
	fresh := NewBook()
	restore := NewBackupService(Deps{Book: fresh, Store: store, Clock: testClock})
	if err := restore.Import(context.Background(), strings.NewReader(sb.String())); err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(fresh.Members) != 1 || fresh.Members[0].Name != "Maria Gomez" {
		t.Errorf("members not restored: %+v", fresh.Members)
	}
	if len(fresh.Activities) != 1 || fresh.Activities[0].ID != "a1" {
		t.Errorf("activity log not restored: %+v", fresh.Activities)
	}
	if fresh.AvailableCash() != cashBefore {
		t.Errorf("cash after restore = %.2f, want %.2f", fresh.AvailableCash(), cashBefore)
	}

	// The restored book must survive a reload from the store.
	reloaded := NewBook()
	if err := reloaded.Load(context.Background(), store); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Transactions) != 1 || reloaded.Transactions[0].ID != "t1" {
		t.Errorf("transactions not persisted: %+v", reloaded.Transactions)
	}
}

func TestImportMissingCollections(t *testing.T) {
	tests := []struct {
		name string
		bag  string
	}{
		{"not json", "{nope"},
		{"missing config", `{"members":[],"loans":[],"contributions":[]}`},
		{"missing members", `{"config":{},"loans":[],"contributions":[]}`},
		{"missing loans", `{"config":{},"members":[],"contributions":[]}`},
		{"missing contributions", `{"config":{},"members":[],"loans":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, book, _ := newBackupFixture(t)
			membersBefore := len(book.Members)

			err := svc.Import(context.Background(), strings.NewReader(tt.bag))
			if !errors.Is(err, core.ErrInvalidBackupFormat) {
				t.Fatalf("error = %v, want ErrInvalidBackupFormat", err)
			}
			if len(book.Members) != membersBefore {
				t.Error("failed import mutated the book")
			}
		})
	}
}

func TestImportDefaultsOptionalCollections(t *testing.T) {
	svc, book, _ := newBackupFixture(t)

	bag := `{"config":{"openingBalance":500},"members":[],"loans":[],"contributions":[]}`
	if err := svc.Import(context.Background(), strings.NewReader(bag)); err != nil {
		t.Fatalf("import: %v", err)
	}

	if book.Config.OpeningBalance != 500 {
		t.Errorf("opening balance = %.2f, want 500", book.Config.OpeningBalance)
	}
	if len(book.Expenses) != 0 || len(book.Transactions) != 0 || len(book.Refunds) != 0 {
		t.Error("optional collections not reset")
	}
	if got := book.AvailableCash(); got != 500 {
		t.Errorf("available cash = %.2f, want 500", got)
	}
}
