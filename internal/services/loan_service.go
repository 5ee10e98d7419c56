package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/cache"
	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/storage"
)

// LoanService owns the loan lifecycle: quoting, approval, retention
// collection, installment and freeform payments, refinancing and deletion.
type LoanService struct {
	book      *Book
	store     storage.Store
	cache     cache.Repository
	publisher Publisher
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewLoanService(d Deps) *LoanService {
	d = d.withDefaults()
	return &LoanService{
		book:      d.Book,
		store:     d.Store,
		cache:     d.Cache,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger.WithComponent(log.ComponentLoan),
		now:       d.Clock,
	}
}

// ApproveLoanInput are the approval parameters. RetentionPaid marks the
// retention as collected up front, activating the loan immediately.
type ApproveLoanInput struct {
	MemberID            string
	Amount              float64
	MonthlyInterestRate float64
	TermMonths          int
	StartDate           string
	Notes               string
	RetentionPaid       bool
}

// Quote previews a loan without touching any state. Identical parameters
// are served from the quote cache when one is configured.
func (s *LoanService) Quote(p core.QuoteParams) (*core.LoanQuote, error) {
	key := fmt.Sprintf("quote:%.2f:%.4f:%d:%s:%.2f",
		p.Amount, p.MonthlyInterestRate, p.TermMonths, core.FormatDate(p.StartDate), p.TransferFee)

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			var q core.LoanQuote
			if err := json.Unmarshal([]byte(cached), &q); err == nil {
				return &q, nil
			}
			s.logger.Warn("Discarding malformed cached quote", "key", key)
		}
	}

	q, err := core.Quote(p)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(q); err == nil {
			if err := s.cache.Set(key, string(data)); err != nil {
				s.logger.Warn("Failed to cache quote", log.FieldError, err)
			}
		}
	}

	return q, nil
}

// Approve creates a loan for a member, appends the disbursement ledger
// entry and, when the retention is pre-paid, the retention entry. The loan
// starts active when retention is pre-paid, pending_retention otherwise.
func (s *LoanService) Approve(ctx context.Context, in ApproveLoanInput) (*core.Loan, error) {
	member := s.book.FindMember(in.MemberID)
	if member == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrMemberNotFound, in.MemberID)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", core.ErrInvalidLoanTerms)
	}

	start, err := core.ParseDate(in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start date %q", core.ErrInvalidLoanTerms, in.StartDate)
	}

	cfg := s.book.Config
	quote, err := core.Quote(core.QuoteParams{
		Amount:              in.Amount,
		MonthlyInterestRate: in.MonthlyInterestRate,
		TermMonths:          in.TermMonths,
		StartDate:           start,
		TransferFee:         cfg.TransferFee,
	})
	if err != nil {
		return nil, err
	}

	// Retention collected at approval follows the configured rate, unlike
	// the quote's fixed QuoteRetentionRate.
	retention := core.RoundCents(in.Amount * cfg.RetentionRate / 100)

	now := s.now()
	status := core.LoanPendingRetention
	if in.RetentionPaid {
		status = core.LoanActive
	}

	loan := core.Loan{
		ID:                  uuid.NewString(),
		MemberID:            member.ID,
		MemberName:          member.Name,
		Amount:              in.Amount,
		MonthlyInterestRate: in.MonthlyInterestRate,
		TermMonths:          in.TermMonths,
		MonthlyPayment:      quote.MonthlyPayment,
		TransferFee:         cfg.TransferFee,
		TotalInterest:       quote.TotalInterest,
		TotalAmount:         quote.TotalAmount,
		RetentionAmount:     retention,
		RetentionPaid:       in.RetentionPaid,
		PaidPrincipal:       0,
		RemainingPrincipal:  core.RoundCents(quote.MonthlyPayment * float64(in.TermMonths)),
		PaidInstallments:    0,
		TotalInstallments:   in.TermMonths,
		StartDate:           in.StartDate,
		EndDate:             quote.Schedule[len(quote.Schedule)-1].DueDate,
		Status:              status,
		Notes:               in.Notes,
		Schedule:            quote.Schedule,
		CreatedAt:           now.UTC().Format(time.RFC3339),
	}
	s.book.Loans = append(s.book.Loans, loan)

	if in.RetentionPaid {
		s.book.AppendTransaction(core.TxRetention, retention,
			fmt.Sprintf("Retention (supplies) - %s", member.Name), "", now)
	}
	s.book.AppendTransaction(core.TxLoanApproval, -in.Amount,
		fmt.Sprintf("Loan disbursement to %s", member.Name), loan.ID, now)

	s.logActivity(ctx, "loan_add",
		fmt.Sprintf("Loan approved: %s - %s%.2f", member.Name, cfg.CurrencySymbol, in.Amount), loan.ID)

	if in.RetentionPaid {
		s.notifier.Notify(notify.Success, "Loan approved",
			fmt.Sprintf("Loan of %s%.2f disbursed. Retention collected: %s%.2f",
				cfg.CurrencySymbol, in.Amount, cfg.CurrencySymbol, retention))
	} else {
		s.notifier.Notify(notify.Success, "Loan approved",
			fmt.Sprintf("Loan of %s%.2f created. Retention pending: %s%.2f",
				cfg.CurrencySymbol, in.Amount, cfg.CurrencySymbol, retention))
	}

	s.logger.InfoContext(ctx, "Loan approved",
		log.FieldOperation, log.OpApprove,
		log.FieldLoanID, loan.ID,
		log.FieldMemberID, member.ID,
		log.FieldAmount, in.Amount,
		log.FieldStatus, string(status))

	s.flush(ctx)
	return s.book.FindLoan(loan.ID), nil
}

// PayRetention collects the retention on a pending loan and activates it.
func (s *LoanService) PayRetention(ctx context.Context, loanID string) error {
	loan := s.book.FindLoan(loanID)
	if loan == nil {
		return fmt.Errorf("%w: loan %s not found", core.ErrInvalidLoanState, loanID)
	}
	if loan.Status != core.LoanPendingRetention {
		return fmt.Errorf("%w: retention already settled for loan %s", core.ErrInvalidLoanState, loanID)
	}

	now := s.now()
	loan.Status = core.LoanActive
	loan.RetentionPaid = true

	s.book.AppendTransaction(core.TxRetention, loan.RetentionAmount,
		fmt.Sprintf("Retention (supplies) - %s", loan.MemberName), "", now)

	s.logActivity(ctx, "loan_retention_pay",
		fmt.Sprintf("Retention paid: %s - %.2f", loan.MemberName, loan.RetentionAmount), loanID)
	s.notifier.Notify(notify.Success, "Retention collected",
		fmt.Sprintf("Collected %.2f retention. Loan activated.", loan.RetentionAmount))

	s.flush(ctx)
	return nil
}

// PayInstallment settles one fixed installment through the schedule-exact
// strategy and appends a loan_payment entry of installment plus transfer
// fee. Out-of-range installment numbers are a no-op.
func (s *LoanService) PayInstallment(ctx context.Context, loanID string, installmentNumber int) error {
	loan := s.book.FindLoan(loanID)
	if loan == nil {
		return fmt.Errorf("%w: loan %s not found", core.ErrInvalidLoanState, loanID)
	}
	if loan.Status != core.LoanActive {
		return fmt.Errorf("%w: loan %s is %s", core.ErrInvalidLoanState, loanID, loan.Status)
	}

	settler, err := GetSettler(ScheduleExactSettlement)
	if err != nil {
		return err
	}

	now := s.now()
	result, err := settler.Settle(loan, SettlementInput{
		InstallmentNumber: installmentNumber,
		TransferFee:       loan.TransferFee,
		Now:               now,
	})
	if err != nil {
		return err
	}
	if result.NoOp {
		return nil
	}

	total := core.RoundCents(result.Applied + loan.TransferFee)
	s.book.AppendTransaction(core.TxLoanPayment, total,
		fmt.Sprintf("Installment %d payment - %s (installment: %.2f, transfer: %.2f)",
			installmentNumber, loan.MemberName, result.Applied, loan.TransferFee), "", now)

	s.logActivity(ctx, "loan_pay",
		fmt.Sprintf("Installment paid: %s - %d/%d", loan.MemberName, installmentNumber, loan.TotalInstallments), loanID)

	if result.FullyPaid {
		s.notifier.Notify(notify.Success, "Loan paid", "All installments have been settled.")
	} else {
		s.notifier.Notify(notify.Success, "Payment recorded",
			fmt.Sprintf("Installment %d paid.", installmentNumber))
	}

	s.logger.InfoContext(ctx, "Installment settled",
		log.FieldOperation, log.OpPay,
		log.FieldLoanID, loanID,
		log.FieldInstallment, installmentNumber,
		log.FieldAmount, total)

	s.flush(ctx)
	return nil
}

// Prepay applies a freeform payment directly to principal. Amounts beyond
// the remaining principal fail with ErrExcessivePayment; a zero amount is
// accepted only to finalize a loan whose remaining principal is already
// within a cent of zero.
func (s *LoanService) Prepay(ctx context.Context, loanID string, amount float64) error {
	loan := s.book.FindLoan(loanID)
	if loan == nil {
		return fmt.Errorf("%w: loan %s not found", core.ErrInvalidLoanState, loanID)
	}
	if loan.Status != core.LoanActive {
		return fmt.Errorf("%w: loan %s is %s", core.ErrInvalidLoanState, loanID, loan.Status)
	}

	settler, err := GetSettler(FreeformSettlement)
	if err != nil {
		return err
	}

	now := s.now()
	result, err := settler.Settle(loan, SettlementInput{
		Amount:      amount,
		TransferFee: loan.TransferFee,
		Now:         now,
	})
	if err != nil {
		return err
	}

	total := core.RoundCents(result.Applied + loan.TransferFee)
	s.book.AppendTransaction(core.TxLoanPayment, total,
		fmt.Sprintf("Loan payment - %s (principal: %.2f, transfer: %.2f)",
			loan.MemberName, result.Applied, loan.TransferFee), "", now)

	s.logActivity(ctx, "loan_pay",
		fmt.Sprintf("Prepayment: %s - %.2f", loan.MemberName, result.Applied), loanID)

	if result.FullyPaid {
		s.notifier.Notify(notify.Success, "Loan settled", "The loan has been fully paid.")
	} else {
		s.notifier.Notify(notify.Success, "Payment recorded",
			fmt.Sprintf("Applied %.2f to principal. Remaining: %.2f", result.Applied, loan.RemainingPrincipal))
	}

	s.flush(ctx)
	return nil
}

// Refinance closes an active loan and opens a new one for its outstanding
// balance at the cooperative's current default rate. The source loan's
// history stays untouched; only the new loan links back via
// RefinancedFromID.
func (s *LoanService) Refinance(ctx context.Context, loanID string, newTermMonths int) (*core.Loan, error) {
	loan := s.book.FindLoan(loanID)
	if loan == nil {
		return nil, fmt.Errorf("%w: loan %s not found", core.ErrInvalidLoanState, loanID)
	}
	if loan.Status != core.LoanActive {
		return nil, fmt.Errorf("%w: cannot refinance a %s loan", core.ErrInvalidLoanState, loan.Status)
	}
	if newTermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", core.ErrInvalidLoanTerms)
	}
	if loan.RemainingPrincipal <= 0 {
		return nil, fmt.Errorf("%w: nothing left to refinance", core.ErrInvalidLoanTerms)
	}

	now := s.now()
	loan.Status = core.LoanRefinanced

	newLoan, err := s.Approve(ctx, ApproveLoanInput{
		MemberID:            loan.MemberID,
		Amount:              loan.RemainingPrincipal,
		MonthlyInterestRate: s.book.Config.MonthlyInterestRate,
		TermMonths:          newTermMonths,
		StartDate:           core.FormatDate(now),
		Notes:               fmt.Sprintf("Refinancing of loan %s", loan.ID),
	})
	if err != nil {
		// Validation above makes approval failures unreachable in practice;
		// restore the source status if it happens anyway.
		if src := s.book.FindLoan(loanID); src != nil {
			src.Status = core.LoanActive
		}
		return nil, err
	}
	newLoan.RefinancedFromID = loanID

	s.logActivity(ctx, "loan_refinance",
		fmt.Sprintf("Loan refinanced: %s over %d months", loan.MemberName, newTermMonths), loanID)
	s.notifier.Notify(notify.Success, "Loan refinanced",
		fmt.Sprintf("New loan created with %d installments.", newTermMonths))

	s.flush(ctx)
	return newLoan, nil
}

// Delete hard-removes a loan at any status. The disbursement entry carries
// the loan's reference id, so purging the referenced entries restores the
// disbursed amount; a collected retention carries no reference and is
// reversed with a compensating entry instead. The net cash effect is
// exactly undoing the disbursement and any collected retention, regardless
// of installments already paid. Installment and prepayment entries carry
// no reference and are deliberately not reversed.
func (s *LoanService) Delete(ctx context.Context, loanID string) error {
	loan := s.book.FindLoan(loanID)
	if loan == nil {
		return fmt.Errorf("%w: loan %s not found", core.ErrInvalidLoanState, loanID)
	}

	now := s.now()

	if loan.RetentionPaid {
		s.book.AppendTransaction(core.TxManualAdjustment, -loan.RetentionAmount,
			fmt.Sprintf("Retention returned on annulment - %s", loan.MemberName), "", now)
	}

	amount := loan.Amount
	name := loan.MemberName
	s.book.PurgeLoanTransactions(loanID)
	s.book.RemoveLoan(loanID)

	s.logActivity(ctx, "loan_delete", fmt.Sprintf("Loan deleted: %s", name), loanID)
	s.notifier.Notify(notify.Success, "Loan deleted",
		fmt.Sprintf("Restored %.2f to the cashbox.", amount))

	s.logger.InfoContext(ctx, "Loan deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldLoanID, loanID,
		log.FieldAmount, amount)

	s.flush(ctx)
	return nil
}

func (s *LoanService) logActivity(ctx context.Context, activityType, description, referenceID string) {
	entry := s.book.LogActivity(activityType, description, "", referenceID, s.now())
	if s.publisher == nil {
		return
	}
	msg := amqpx.NewActivityMessage(entry.ID, entry.Type, entry.Description, entry.ReferenceID)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity", log.FieldError, err)
	}
}

// flush persists the book. Persistence is a best-effort side effect: a
// failed flush is logged and the in-memory state stays authoritative.
func (s *LoanService) flush(ctx context.Context) {
	if err := s.book.Flush(ctx, s.store); err != nil {
		s.logger.ErrorContext(ctx, "Failed to flush book", log.FieldError, err, log.FieldOperation, log.OpFlush)
	}
}
