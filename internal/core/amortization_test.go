package core

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func quoteParams() QuoteParams {
	return QuoteParams{
		Amount:              1000,
		MonthlyInterestRate: 1,
		TermMonths:          12,
		StartDate:           time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TransferFee:         0.41,
	}
}

func TestQuoteTotals(t *testing.T) {
	q, err := Quote(quoteParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.TotalInterest != 120 {
		t.Errorf("total interest = %v, want 120", q.TotalInterest)
	}
	if q.TotalAmount != 1130.41 {
		t.Errorf("total amount = %v, want 1130.41", q.TotalAmount)
	}
	if q.TotalTransferFees != 0.41 {
		t.Errorf("total transfer fees = %v, want 0.41 (single flat value)", q.TotalTransferFees)
	}
	// 1130.41 / 12 = 94.20083..., rounded up to the cent.
	if q.MonthlyPayment != 94.21 {
		t.Errorf("monthly payment = %v, want 94.21", q.MonthlyPayment)
	}
}

func TestQuoteFirstInstallment(t *testing.T) {
	q, err := Quote(quoteParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := q.Schedule[0]
	if first.InstallmentNumber != 1 {
		t.Errorf("installment number = %d, want 1", first.InstallmentNumber)
	}
	if first.Interest != 10.00 {
		t.Errorf("interest = %v, want 10.00", first.Interest)
	}
	if first.Principal != 84.21 {
		t.Errorf("principal = %v, want 84.21", first.Principal)
	}
	if first.Balance != 915.79 {
		t.Errorf("balance = %v, want 915.79", first.Balance)
	}
	// First due date is one month after start, never the start date itself.
	if first.DueDate != "2024-02-15" {
		t.Errorf("due date = %s, want 2024-02-15", first.DueDate)
	}
	if first.Payment != 94.21 || first.TransferFee != 0.41 {
		t.Errorf("payment/fee = %v/%v, want 94.21/0.41", first.Payment, first.TransferFee)
	}
}

func TestQuoteScheduleProperties(t *testing.T) {
	p := quoteParams()
	q, err := Quote(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.Schedule) != p.TermMonths {
		t.Fatalf("schedule length = %d, want %d", len(q.Schedule), p.TermMonths)
	}

	// Principal column sums back to the amount within accumulated rounding.
	var principalSum float64
	for _, e := range q.Schedule {
		principalSum += e.Principal
	}
	drift := math.Abs(principalSum - p.Amount)
	if drift > float64(p.TermMonths)*0.01 {
		t.Errorf("principal sum %v drifts %v from amount %v", principalSum, drift, p.Amount)
	}

	// Final row balance is forced to exactly zero.
	last := q.Schedule[len(q.Schedule)-1]
	if last.Balance != 0 {
		t.Errorf("final balance = %v, want exactly 0", last.Balance)
	}
}

func TestQuoteIdempotent(t *testing.T) {
	p := quoteParams()
	a, err := Quote(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Quote(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs must produce identical quotes")
	}
}

func TestQuoteInvalidTerms(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*QuoteParams)
	}{
		{"zero amount", func(p *QuoteParams) { p.Amount = 0 }},
		{"negative amount", func(p *QuoteParams) { p.Amount = -100 }},
		{"zero term", func(p *QuoteParams) { p.TermMonths = 0 }},
		{"negative term", func(p *QuoteParams) { p.TermMonths = -3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := quoteParams()
			tc.mutate(&p)
			if _, err := Quote(p); !errors.Is(err, ErrInvalidLoanTerms) {
				t.Fatalf("expected ErrInvalidLoanTerms, got %v", err)
			}
		})
	}
}

func TestQuoteZeroRate(t *testing.T) {
	p := quoteParams()
	p.MonthlyInterestRate = 0
	q, err := Quote(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TotalInterest != 0 {
		t.Errorf("total interest = %v, want 0", q.TotalInterest)
	}
	// 1000 + 10 retention + 0.41 fee = 1010.41 over 12 months.
	if q.TotalAmount != 1010.41 {
		t.Errorf("total amount = %v, want 1010.41", q.TotalAmount)
	}
	for _, e := range q.Schedule {
		if e.Interest != 0 {
			t.Fatalf("installment %d interest = %v, want 0", e.InstallmentNumber, e.Interest)
		}
	}
}
