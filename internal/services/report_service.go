package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/storage"
)

// ReportService derives read models from the book and runs the annual
// closing. Everything but the closing is read-only.
type ReportService struct {
	book      *Book
	store     storage.Store
	publisher Publisher
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewReportService(d Deps) *ReportService {
	d = d.withDefaults()
	return &ReportService{
		book:      d.Book,
		store:     d.Store,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger.WithComponent(log.ComponentReport),
		now:       d.Clock,
	}
}

// AvailableCash returns the cooperative's current cash position.
func (s *ReportService) AvailableCash() float64 {
	return s.book.AvailableCash()
}

// Dashboard computes the cooperative's summary snapshot.
func (s *ReportService) Dashboard() core.DashboardStats {
	stats := core.DashboardStats{
		TotalMembers: len(s.book.Members),
		TotalLoans:   len(s.book.Loans),
	}

	for _, m := range s.book.Members {
		if m.Status == core.MemberActive {
			stats.ActiveMembers++
		}
	}

	today := core.FormatDate(s.now())
	delinquent := 0
	for _, l := range s.book.Loans {
		stats.TotalLoaned += l.Amount
		if l.Status != core.LoanActive {
			continue
		}
		stats.ActiveLoans++
		if l.TotalInstallments > 0 {
			stats.TotalInterestEarned += l.TotalInterest * float64(l.PaidInstallments) / float64(l.TotalInstallments)
		}
		for _, row := range l.Schedule {
			if row.Status == core.InstallmentPending && row.DueDate < today {
				delinquent++
				break
			}
		}
	}
	for _, l := range s.book.Loans {
		if l.Status == core.LoanPaid || l.Status == core.LoanRefinanced {
			stats.TotalInterestEarned += l.TotalInterest * float64(l.PaidInstallments) / float64(l.TotalInstallments)
		}
	}
	if stats.ActiveLoans > 0 {
		stats.DelinquencyRate = float64(delinquent) / float64(stats.ActiveLoans)
	}

	for _, c := range s.book.Contributions {
		if c.Status != core.ContributionPaid {
			continue
		}
		stats.TotalContributions += c.ShareAmount + c.ExpenseAmount
		stats.TotalPenalties += c.PenaltyAmount
	}
	for _, e := range s.book.Expenses {
		stats.TotalExpenses += e.Amount
	}

	stats.TotalInterestEarned = core.RoundCents(stats.TotalInterestEarned)
	stats.AvailableCash = s.book.AvailableCash()
	return stats
}

// MemberBalances builds the per-member savings report, active members
// first in roster order.
func (s *ReportService) MemberBalances() []core.MemberBalanceLine {
	lines := make([]core.MemberBalanceLine, 0, len(s.book.Members))
	for _, m := range s.book.Members {
		savings := core.MemberSavings(s.book.Contributions, m.ID)
		debt := core.MemberDebt(s.book.Loans, m.ID)
		penalties := core.MemberPenalties(s.book.Contributions, m.ID)
		lines = append(lines, core.MemberBalanceLine{
			Name:       m.Name,
			Savings:    savings,
			Debt:       debt,
			Penalties:  penalties,
			NetBalance: core.RoundCents(savings - debt),
		})
	}
	return lines
}

// WriteMemberReportCSV writes the member balance report with a trailing
// summary block.
func (s *ReportService) WriteMemberReportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Member", "Savings", "Debt", "Penalties", "Net Balance"}); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	var totalSavings, totalDebt float64
	for _, line := range s.MemberBalances() {
		totalSavings += line.Savings
		totalDebt += line.Debt
		record := []string{
			line.Name,
			fmt.Sprintf("%.2f", line.Savings),
			fmt.Sprintf("%.2f", line.Debt),
			fmt.Sprintf("%.2f", line.Penalties),
			fmt.Sprintf("%.2f", line.NetBalance),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}

	summary := [][]string{
		{},
		{"Total savings", fmt.Sprintf("%.2f", totalSavings)},
		{"Total outstanding debt", fmt.Sprintf("%.2f", totalDebt)},
		{"Available cash", fmt.Sprintf("%.2f", s.book.AvailableCash())},
	}
	for _, record := range summary {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write report summary: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// AnnualClosing folds the current available cash into the opening balance
// and starts a fresh year: the transaction log and contribution records are
// archived out of the live book. The cash position is identical before and
// after.
func (s *ReportService) AnnualClosing(ctx context.Context) (float64, error) {
	cash := core.RoundCents(s.book.AvailableCash())

	s.book.Config.OpeningBalance = cash
	s.book.Transactions = nil
	s.book.Contributions = nil

	s.logActivity(ctx, "annual_closing",
		fmt.Sprintf("Annual closing: opening balance carried at %.2f", cash), "")
	s.notifier.Notify(notify.Success, "Annual closing complete",
		fmt.Sprintf("Opening balance carried forward: %.2f", cash))

	s.logger.InfoContext(ctx, "Annual closing completed",
		log.FieldOperation, log.OpClosing,
		log.FieldAmount, cash)

	if err := s.book.Flush(ctx, s.store); err != nil {
		return cash, fmt.Errorf("persist annual closing: %w", err)
	}
	return cash, nil
}

func (s *ReportService) logActivity(ctx context.Context, activityType, description, referenceID string) {
	entry := s.book.LogActivity(activityType, description, "", referenceID, s.now())
	if s.publisher == nil {
		return
	}
	msg := amqpx.NewActivityMessage(entry.ID, entry.Type, entry.Description, entry.ReferenceID)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity", log.FieldError, err)
	}
}
