package core

import (
	"fmt"
	"time"
)

// QuoteRetentionRate is the retention percentage baked into loan quotes.
// Loan approval computes the collected retention from the configured rate
// instead; the two can disagree when the configuration changes. Both values
// are kept explicit so the discrepancy is visible to callers.
const QuoteRetentionRate = 1.0

// QuoteParams are the inputs to the amortization engine.
type QuoteParams struct {
	Amount              float64
	MonthlyInterestRate float64 // percentage, 1 means 1% per month
	TermMonths          int
	StartDate           time.Time
	TransferFee         float64
}

// LoanQuote is the ephemeral result of running the engine. It is not
// persisted; approval copies its fields into a Loan.
type LoanQuote struct {
	MonthlyPayment    float64             `json:"monthlyPayment"`
	TotalInterest     float64             `json:"totalInterest"`
	TotalTransferFees float64             `json:"totalTransferFees"`
	TotalAmount       float64             `json:"totalAmount"`
	Schedule          []AmortizationEntry `json:"schedule"`
}

// Quote computes a fixed-installment schedule under the cooperative's flat
// total model: the quoted total is principal + 1% retention + simple
// interest (rate x term on the full principal) + one flat transfer fee, and
// the installment is that total divided by the term, rounded up to the cent.
//
// The per-row breakdown then walks the pure principal down: each row's
// interest is charged on the remaining principal, the rest of the
// installment amortizes principal, and the final row forces the balance to
// exactly zero to absorb rounding drift. Each row repeats the flat transfer
// fee even though the total includes it only once.
func Quote(p QuoteParams) (*LoanQuote, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidLoanTerms)
	}
	if p.TermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", ErrInvalidLoanTerms)
	}

	retention := p.Amount * QuoteRetentionRate / 100
	baseWithRetention := p.Amount + retention

	totalInterest := p.Amount * (p.MonthlyInterestRate / 100) * float64(p.TermMonths)
	totalBeforeTransfer := baseWithRetention + totalInterest
	totalAmount := totalBeforeTransfer + p.TransferFee

	rawMonthlyPayment := totalAmount / float64(p.TermMonths)
	monthlyPayment := CeilCents(rawMonthlyPayment)

	monthlyRate := p.MonthlyInterestRate / 100
	remainingBalance := p.Amount // pure principal, excluding retention and fee

	schedule := make([]AmortizationEntry, 0, p.TermMonths)
	for installment := 1; installment <= p.TermMonths; installment++ {
		interest := RoundCents(remainingBalance * monthlyRate)
		principal := RoundCents(monthlyPayment - interest)
		remainingBalance = RoundCents(remainingBalance - principal)
		if installment == p.TermMonths {
			remainingBalance = 0
		}

		schedule = append(schedule, AmortizationEntry{
			InstallmentNumber: installment,
			DueDate:           FormatDate(AddMonths(p.StartDate, installment)),
			Principal:         principal,
			Interest:          interest,
			TransferFee:       p.TransferFee,
			Payment:           monthlyPayment,
			Balance:           max(0, remainingBalance),
			Status:            InstallmentPending,
		})
	}

	return &LoanQuote{
		MonthlyPayment:    monthlyPayment,
		TotalInterest:     RoundCents(totalInterest),
		TotalTransferFees: p.TransferFee,
		TotalAmount:       RoundCents(totalAmount),
		Schedule:          schedule,
	}, nil
}
