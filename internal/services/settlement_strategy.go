// This file implements the Strategy Pattern for loan settlement. The two
// payment paths are observably different algorithms and are kept separate
// on purpose: the schedule-exact path recomputes the remaining balance from
// the full schedule, while the freeform path works off the loan's scalar
// progress fields and only estimates installments.

package services

import (
	"fmt"
	"math"
	"time"

	"coopledger/internal/core"
)

// SettlementMode names a settlement algorithm.
type SettlementMode string

const (
	// ScheduleExactSettlement pays one fixed installment from the schedule.
	ScheduleExactSettlement SettlementMode = "schedule_exact"
	// FreeformSettlement applies an arbitrary amount directly to principal.
	FreeformSettlement SettlementMode = "freeform"
)

// SettlementInput carries the per-mode parameters. InstallmentNumber is
// used by the schedule-exact path, Amount by the freeform path.
type SettlementInput struct {
	InstallmentNumber int
	Amount            float64
	TransferFee       float64
	Now               time.Time
}

// SettlementResult reports what a settlement did to the loan.
type SettlementResult struct {
	// Applied is the cash amount credited before the transfer fee.
	Applied float64
	// FullyPaid is true when the settlement closed the loan.
	FullyPaid bool
	// NoOp is true when nothing happened (out-of-range installment).
	NoOp bool
}

// Settler mutates a loan's progress under one settlement policy. A returned
// error guarantees the loan was not modified.
type Settler interface {
	Settle(loan *core.Loan, in SettlementInput) (SettlementResult, error)
}

// ScheduleExactSettler marks one schedule row paid and recomputes the
// remaining principal as the sum of all still-pending row payments, a full
// recomputation rather than a subtraction.
type ScheduleExactSettler struct{}

func (ScheduleExactSettler) Settle(loan *core.Loan, in SettlementInput) (SettlementResult, error) {
	if in.InstallmentNumber < 1 || in.InstallmentNumber > loan.TotalInstallments {
		return SettlementResult{NoOp: true}, nil
	}

	var remaining float64
	for i := range loan.Schedule {
		row := &loan.Schedule[i]
		if row.InstallmentNumber == in.InstallmentNumber {
			row.Status = core.InstallmentPaid
			row.PaidDate = core.FormatDate(in.Now)
		}
		if row.Status == core.InstallmentPending {
			remaining += row.Payment
		}
	}
	remaining = core.RoundCents(remaining)

	loan.PaidInstallments++

	if core.ApproxZero(remaining) {
		loan.RemainingPrincipal = 0
		loan.PaidPrincipal = loan.TotalAmount
		loan.Status = core.LoanPaid
		return SettlementResult{Applied: loan.MonthlyPayment, FullyPaid: true}, nil
	}

	loan.RemainingPrincipal = remaining
	loan.PaidPrincipal = core.RoundCents(loan.TotalAmount - remaining)
	return SettlementResult{Applied: loan.MonthlyPayment}, nil
}

// FreeformSettler applies a prepayment directly against the remaining
// principal. It never touches the stored schedule rows; installment progress
// is estimated from the monthly payment, deliberately conservative.
type FreeformSettler struct{}

func (FreeformSettler) Settle(loan *core.Loan, in SettlementInput) (SettlementResult, error) {
	remaining := loan.RemainingPrincipal

	if in.Amount < 0 {
		return SettlementResult{}, fmt.Errorf("%w: prepayment must not be negative", core.ErrInvalidLoanTerms)
	}
	if in.Amount == 0 && !core.ApproxZero(remaining) {
		return SettlementResult{}, fmt.Errorf("%w: zero prepayment is only a finalize call", core.ErrInvalidLoanTerms)
	}
	if in.Amount > remaining && !core.ApproxZero(remaining) {
		return SettlementResult{}, fmt.Errorf("%w: %.2f exceeds remaining principal %.2f",
			core.ErrExcessivePayment, in.Amount, remaining)
	}

	applied := math.Min(in.Amount, remaining)
	newRemaining := core.RoundCents(remaining - applied)

	if core.ApproxZero(newRemaining) {
		loan.RemainingPrincipal = 0
		loan.PaidPrincipal = loan.Amount
		loan.PaidInstallments = loan.TotalInstallments
		loan.Status = core.LoanPaid
		return SettlementResult{Applied: applied, FullyPaid: true}, nil
	}

	estimated := loan.PaidInstallments + int(math.Floor(applied/loan.MonthlyPayment))
	if estimated > loan.TotalInstallments {
		estimated = loan.TotalInstallments
	}

	loan.RemainingPrincipal = math.Max(0, newRemaining)
	loan.PaidPrincipal = core.RoundCents(loan.PaidPrincipal + applied)
	loan.PaidInstallments = estimated
	return SettlementResult{Applied: applied}, nil
}

// settlementStrategies maps modes to their settlers.
var settlementStrategies = map[SettlementMode]Settler{
	ScheduleExactSettlement: ScheduleExactSettler{},
	FreeformSettlement:      FreeformSettler{},
}

// GetSettler returns the settler for a mode.
func GetSettler(mode SettlementMode) (Settler, error) {
	settler, ok := settlementStrategies[mode]
	if !ok {
		return nil, fmt.Errorf("unknown settlement mode: %s", mode)
	}
	return settler, nil
}
