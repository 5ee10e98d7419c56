package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"coopledger/internal/cache"
	"coopledger/internal/core"
	"coopledger/internal/storage"
)

func testClock() time.Time {
	return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
}

func newLoanFixture(t *testing.T) (*LoanService, *Book) {
	t.Helper()

	book := NewBook()
	book.Members = append(book.Members, core.Member{
		ID:       "m1",
		Name:     "Maria Gomez",
		Status:   core.MemberActive,
		JoinDate: "2023-01-01",
	})

	svc := NewLoanService(Deps{
		Book:  book,
		Store: storage.NewMemoryStore(),
		Clock: testClock,
	})
	return svc, book
}

func approveTestLoan(t *testing.T, svc *LoanService, retentionPaid bool) *core.Loan {
	t.Helper()
	loan, err := svc.Approve(context.Background(), ApproveLoanInput{
		MemberID:            "m1",
		Amount:              1000,
		MonthlyInterestRate: 1,
		TermMonths:          12,
		StartDate:           "2024-01-15",
		RetentionPaid:       retentionPaid,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return loan
}

func cashNear(t *testing.T, book *Book, want float64) {
	t.Helper()
	got := book.AvailableCash()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("available cash = %.4f, want %.2f", got, want)
	}
}

func TestApprovePendingRetention(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, false)

	if loan.Status != core.LoanPendingRetention {
		t.Errorf("status = %s, want pending_retention", loan.Status)
	}
	if loan.MonthlyPayment != 94.21 {
		t.Errorf("monthly payment = %.2f, want 94.21", loan.MonthlyPayment)
	}
	if loan.TotalAmount != 1130.41 {
		t.Errorf("total amount = %.2f, want 1130.41", loan.TotalAmount)
	}
	if loan.RetentionAmount != 10 {
		t.Errorf("retention = %.2f, want 10.00", loan.RetentionAmount)
	}
	if loan.RemainingPrincipal != 1130.52 {
		t.Errorf("remaining = %.2f, want 1130.52", loan.RemainingPrincipal)
	}

	if len(book.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(book.Transactions))
	}
	tx := book.Transactions[0]
	if tx.Type != core.TxLoanApproval || tx.Amount != -1000 || tx.ReferenceID != loan.ID {
		t.Errorf("unexpected disbursement entry: %+v", tx)
	}
	cashNear(t, book, -1000)
}

func TestApproveRetentionPrepaid(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)

	if loan.Status != core.LoanActive {
		t.Errorf("status = %s, want active", loan.Status)
	}
	if !loan.RetentionPaid {
		t.Error("retention not marked paid")
	}
	if len(book.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(book.Transactions))
	}
	retention := book.Transactions[0]
	if retention.Type != core.TxRetention || retention.Amount != 10 || retention.ReferenceID != "" {
		t.Errorf("unexpected retention entry: %+v", retention)
	}
	cashNear(t, book, -990)
}

func TestApproveErrors(t *testing.T) {
	svc, _ := newLoanFixture(t)

	tests := []struct {
		name    string
		in      ApproveLoanInput
		wantErr error
	}{
		{
			"unknown member",
			ApproveLoanInput{MemberID: "ghost", Amount: 1000, MonthlyInterestRate: 1, TermMonths: 12, StartDate: "2024-01-15"},
			core.ErrMemberNotFound,
		},
		{
			"non-positive amount",
			ApproveLoanInput{MemberID: "m1", Amount: 0, MonthlyInterestRate: 1, TermMonths: 12, StartDate: "2024-01-15"},
			core.ErrInvalidLoanTerms,
		},
		{
			"bad start date",
			ApproveLoanInput{MemberID: "m1", Amount: 1000, MonthlyInterestRate: 1, TermMonths: 12, StartDate: "15/01/2024"},
			core.ErrInvalidLoanTerms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Approve(context.Background(), tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetentionGate(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, false)
	ctx := context.Background()

	if err := svc.PayInstallment(ctx, loan.ID, 1); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("pay installment before retention: %v", err)
	}
	if err := svc.Prepay(ctx, loan.ID, 100); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("prepay before retention: %v", err)
	}
	if _, err := svc.Refinance(ctx, loan.ID, 6); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("refinance before retention: %v", err)
	}

	if err := svc.PayRetention(ctx, loan.ID); err != nil {
		t.Fatalf("pay retention: %v", err)
	}
	loan = book.FindLoan(loan.ID)
	if loan.Status != core.LoanActive || !loan.RetentionPaid {
		t.Errorf("loan not activated: status=%s retentionPaid=%v", loan.Status, loan.RetentionPaid)
	}
	cashNear(t, book, -990)

	if err := svc.PayRetention(ctx, loan.ID); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("second pay retention: %v", err)
	}
}

func TestPayInstallmentLedger(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)
	ctx := context.Background()

	if err := svc.PayInstallment(ctx, loan.ID, 1); err != nil {
		t.Fatalf("pay installment: %v", err)
	}

	loan = book.FindLoan(loan.ID)
	if loan.RemainingPrincipal != 1036.31 {
		t.Errorf("remaining = %.2f, want 1036.31", loan.RemainingPrincipal)
	}

	last := book.Transactions[len(book.Transactions)-1]
	if last.Type != core.TxLoanPayment || last.Amount != 94.62 || last.ReferenceID != "" {
		t.Errorf("unexpected payment entry: %+v", last)
	}
	cashNear(t, book, -990+94.62)
}

func TestPayInstallmentOutOfRangeIsNoOp(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)

	before := len(book.Transactions)
	if err := svc.PayInstallment(context.Background(), loan.ID, 13); err != nil {
		t.Fatalf("out-of-range installment: %v", err)
	}
	if len(book.Transactions) != before {
		t.Error("no-op installment appended a ledger entry")
	}
	if book.FindLoan(loan.ID).PaidInstallments != 0 {
		t.Error("no-op installment advanced progress")
	}
}

func TestPrepayExcessiveLeavesStateUnchanged(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)

	cashBefore := book.AvailableCash()
	txBefore := len(book.Transactions)

	err := svc.Prepay(context.Background(), loan.ID, 5000)
	if !errors.Is(err, core.ErrExcessivePayment) {
		t.Fatalf("error = %v, want ErrExcessivePayment", err)
	}
	if book.AvailableCash() != cashBefore {
		t.Error("failed prepay moved cash")
	}
	if len(book.Transactions) != txBefore {
		t.Error("failed prepay appended a ledger entry")
	}
	loan = book.FindLoan(loan.ID)
	if loan.RemainingPrincipal != 1130.52 || loan.Status != core.LoanActive {
		t.Error("failed prepay mutated the loan")
	}
}

func TestPrepayFullPayoff(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)
	ctx := context.Background()

	if err := svc.Prepay(ctx, loan.ID, loan.RemainingPrincipal); err != nil {
		t.Fatalf("prepay: %v", err)
	}

	loan = book.FindLoan(loan.ID)
	if loan.Status != core.LoanPaid {
		t.Errorf("status = %s, want paid", loan.Status)
	}
	if loan.RemainingPrincipal != 0 {
		t.Errorf("remaining = %.2f, want exactly 0", loan.RemainingPrincipal)
	}
	if loan.PaidInstallments != loan.TotalInstallments {
		t.Errorf("paid installments = %d, want %d", loan.PaidInstallments, loan.TotalInstallments)
	}

	if err := svc.Prepay(ctx, loan.ID, 10); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("prepay on paid loan: %v", err)
	}
}

func TestRefinance(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)
	ctx := context.Background()

	if err := svc.Prepay(ctx, loan.ID, 100); err != nil {
		t.Fatalf("prepay: %v", err)
	}

	newLoan, err := svc.Refinance(ctx, loan.ID, 6)
	if err != nil {
		t.Fatalf("refinance: %v", err)
	}

	source := book.FindLoan(loan.ID)
	if source.Status != core.LoanRefinanced {
		t.Errorf("source status = %s, want refinanced", source.Status)
	}
	if newLoan.Amount != 1030.52 {
		t.Errorf("new loan amount = %.2f, want 1030.52", newLoan.Amount)
	}
	if newLoan.TermMonths != 6 {
		t.Errorf("new loan term = %d, want 6", newLoan.TermMonths)
	}
	if newLoan.RefinancedFromID != loan.ID {
		t.Errorf("refinancedFromId = %q, want %q", newLoan.RefinancedFromID, loan.ID)
	}
	if newLoan.MonthlyInterestRate != book.Config.MonthlyInterestRate {
		t.Errorf("new loan rate = %.2f, want config default %.2f",
			newLoan.MonthlyInterestRate, book.Config.MonthlyInterestRate)
	}

	if err := svc.PayInstallment(ctx, loan.ID, 2); !errors.Is(err, core.ErrInvalidLoanState) {
		t.Errorf("pay on refinanced loan: %v", err)
	}
}

func TestDeleteRestoresCashExactly(t *testing.T) {
	svc, book := newLoanFixture(t)
	cashBefore := book.AvailableCash()

	loan := approveTestLoan(t, svc, true)
	if err := svc.Delete(context.Background(), loan.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := book.AvailableCash(); got != cashBefore {
		t.Errorf("available cash = %.4f, want exactly %.4f", got, cashBefore)
	}
	if book.FindLoan(loan.ID) != nil {
		t.Error("loan record still present")
	}
	for _, tx := range book.Transactions {
		if tx.ReferenceID == loan.ID {
			t.Errorf("referenced entry survived deletion: %+v", tx)
		}
	}
}

func TestDeleteKeepsInstallmentPayments(t *testing.T) {
	svc, book := newLoanFixture(t)
	loan := approveTestLoan(t, svc, true)
	ctx := context.Background()

	if err := svc.PayInstallment(ctx, loan.ID, 1); err != nil {
		t.Fatalf("pay installment: %v", err)
	}
	if err := svc.Delete(ctx, loan.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Disbursement purged, retention reversed; the installment entry stays.
	cashNear(t, book, 94.62)
}

// recordingCache counts lookups so tests can tell a computed quote from a
// cached one.
type recordingCache struct {
	inner *cache.MemoryCache
	hits  int
}

func (r *recordingCache) Get(key string) (string, bool) {
	val, ok := r.inner.Get(key)
	if ok {
		r.hits++
	}
	return val, ok
}

func (r *recordingCache) Set(key, value string) error { return r.inner.Set(key, value) }

func TestQuoteServedFromCache(t *testing.T) {
	rc := &recordingCache{inner: cache.NewMemoryCache()}
	book := NewBook()
	svc := NewLoanService(Deps{
		Book:  book,
		Store: storage.NewMemoryStore(),
		Cache: rc,
		Clock: testClock,
	})

	params := core.QuoteParams{
		Amount:              1000,
		MonthlyInterestRate: 1,
		TermMonths:          12,
		StartDate:           testClock(),
		TransferFee:         0.41,
	}

	first, err := svc.Quote(params)
	if err != nil {
		t.Fatalf("first quote: %v", err)
	}
	second, err := svc.Quote(params)
	if err != nil {
		t.Fatalf("second quote: %v", err)
	}

	if rc.hits != 1 {
		t.Errorf("cache hits = %d, want 1", rc.hits)
	}
	if first.MonthlyPayment != second.MonthlyPayment || first.TotalAmount != second.TotalAmount {
		t.Errorf("cached quote diverged: %+v vs %+v", first, second)
	}
	if len(second.Schedule) != 12 {
		t.Errorf("cached schedule rows = %d, want 12", len(second.Schedule))
	}
}
