package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/storage"
)

// ExpenseService records administrative expenses, member refunds and
// manual cashbox adjustments. All three flow through the ledger as
// appended entries.
type ExpenseService struct {
	book      *Book
	store     storage.Store
	publisher Publisher
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewExpenseService(d Deps) *ExpenseService {
	d = d.withDefaults()
	return &ExpenseService{
		book:      d.Book,
		store:     d.Store,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger.WithComponent(log.ComponentExpense),
		now:       d.Clock,
	}
}

// AddExpense records an administrative expense and its negative ledger
// entry.
func (s *ExpenseService) AddExpense(ctx context.Context, e core.Expense) (*core.Expense, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	e.ID = uuid.NewString()
	if e.Date == "" {
		e.Date = core.FormatDate(now)
	}
	e.CreatedAt = now.UTC().Format(time.RFC3339)
	s.book.Expenses = append(s.book.Expenses, e)

	s.book.AppendTransaction(core.TxExpense, -e.Amount,
		fmt.Sprintf("Expense: %s", e.Description), "", now)

	s.logActivity(ctx, "expense_add",
		fmt.Sprintf("Expense recorded: %s - %.2f", e.Description, e.Amount), e.ID)
	s.notifier.Notify(notify.Success, "Expense recorded",
		fmt.Sprintf("Deducted %.2f from the cashbox.", e.Amount))

	s.logger.InfoContext(ctx, "Expense recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldAmount, e.Amount)

	s.flush(ctx)
	return &s.book.Expenses[len(s.book.Expenses)-1], nil
}

// DeleteExpense removes an expense and reverses its cash effect with a
// compensating manual adjustment.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	idx := -1
	for i := range s.book.Expenses {
		if s.book.Expenses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("expense %s not found", id)
	}

	now := s.now()
	removed := s.book.Expenses[idx]
	s.book.Expenses = append(s.book.Expenses[:idx], s.book.Expenses[idx+1:]...)

	s.book.AppendTransaction(core.TxManualAdjustment, removed.Amount,
		fmt.Sprintf("Reversal of deleted expense: %s", removed.Description), "", now)

	s.logActivity(ctx, "expense_delete",
		fmt.Sprintf("Expense deleted: %s", removed.Description), id)
	s.notifier.Notify(notify.Success, "Expense deleted",
		fmt.Sprintf("Restored %.2f to the cashbox.", removed.Amount))

	s.flush(ctx)
	return nil
}

// AddRefund pays out a refund to a member and records its negative ledger
// entry.
func (s *ExpenseService) AddRefund(ctx context.Context, memberID, reason string, amount float64, depositDate string) (*core.Refund, error) {
	member := s.book.FindMember(memberID)
	if member == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrMemberNotFound, memberID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %.2f", amount)
	}

	now := s.now()
	if depositDate == "" {
		depositDate = core.FormatDate(now)
	}
	refund := core.Refund{
		ID:          uuid.NewString(),
		MemberID:    memberID,
		MemberName:  member.Name,
		Reason:      reason,
		Amount:      amount,
		DepositDate: depositDate,
		CreatedAt:   now.UTC().Format(time.RFC3339),
		UpdatedAt:   now.UTC().Format(time.RFC3339),
	}
	s.book.Refunds = append(s.book.Refunds, refund)

	s.book.AppendTransaction(core.TxRefund, -amount,
		fmt.Sprintf("Refund to %s: %s", member.Name, reason), "", now)

	s.logActivity(ctx, "refund_add",
		fmt.Sprintf("Refund paid: %s - %.2f", member.Name, amount), refund.ID)
	s.notifier.Notify(notify.Success, "Refund paid",
		fmt.Sprintf("Paid %.2f to %s.", amount, member.Name))

	s.flush(ctx)
	return &s.book.Refunds[len(s.book.Refunds)-1], nil
}

// UpdateRefund edits a refund's reason and amount. An amount change is
// reconciled in the ledger with a manual adjustment for the difference.
func (s *ExpenseService) UpdateRefund(ctx context.Context, id, reason string, amount float64) error {
	refund := s.findRefund(id)
	if refund == nil {
		return fmt.Errorf("refund %s not found", id)
	}
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive, got %.2f", amount)
	}

	now := s.now()
	diff := refund.Amount - amount
	refund.Reason = reason
	refund.Amount = amount
	refund.UpdatedAt = now.UTC().Format(time.RFC3339)

	if diff != 0 {
		s.book.AppendTransaction(core.TxManualAdjustment, diff,
			fmt.Sprintf("Refund correction - %s", refund.MemberName), "", now)
	}

	s.logActivity(ctx, "refund_edit",
		fmt.Sprintf("Refund edited: %s - %.2f", refund.MemberName, amount), id)
	s.notifier.Notify(notify.Success, "Refund updated", "")

	s.flush(ctx)
	return nil
}

// DeleteRefund removes a refund and restores its amount to the cashbox.
func (s *ExpenseService) DeleteRefund(ctx context.Context, id string) error {
	idx := -1
	for i := range s.book.Refunds {
		if s.book.Refunds[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("refund %s not found", id)
	}

	now := s.now()
	removed := s.book.Refunds[idx]
	s.book.Refunds = append(s.book.Refunds[:idx], s.book.Refunds[idx+1:]...)

	s.book.AppendTransaction(core.TxManualAdjustment, removed.Amount,
		fmt.Sprintf("Reversal of deleted refund - %s", removed.MemberName), "", now)

	s.logActivity(ctx, "refund_delete",
		fmt.Sprintf("Refund deleted: %s", removed.MemberName), id)
	s.notifier.Notify(notify.Success, "Refund deleted",
		fmt.Sprintf("Restored %.2f to the cashbox.", removed.Amount))

	s.flush(ctx)
	return nil
}

// SetCashbox records the physically counted drawer value. It is a plain
// scalar outside the ledger; available cash is unaffected.
func (s *ExpenseService) SetCashbox(ctx context.Context, value float64) error {
	s.book.Cashbox = value

	s.logActivity(ctx, "cashbox_set",
		fmt.Sprintf("Cashbox count recorded: %.2f", value), "")

	s.flush(ctx)
	return nil
}

// AdjustCashbox appends a signed manual adjustment with an operator note.
func (s *ExpenseService) AdjustCashbox(ctx context.Context, amount float64, note string) error {
	if amount == 0 {
		return fmt.Errorf("adjustment amount must be non-zero")
	}
	if note == "" {
		note = "Manual cashbox adjustment"
	}

	now := s.now()
	s.book.AppendTransaction(core.TxManualAdjustment, amount, note, "", now)

	s.logActivity(ctx, "cashbox_adjust",
		fmt.Sprintf("Cashbox adjusted by %.2f", amount), "")
	s.notifier.Notify(notify.Info, "Cashbox adjusted",
		fmt.Sprintf("Applied %.2f: %s", amount, note))

	s.logger.InfoContext(ctx, "Cashbox adjusted",
		log.FieldOperation, log.OpUpdate,
		log.FieldAmount, amount)

	s.flush(ctx)
	return nil
}

func (s *ExpenseService) findRefund(id string) *core.Refund {
	for i := range s.book.Refunds {
		if s.book.Refunds[i].ID == id {
			return &s.book.Refunds[i]
		}
	}
	return nil
}

func (s *ExpenseService) logActivity(ctx context.Context, activityType, description, referenceID string) {
	entry := s.book.LogActivity(activityType, description, "", referenceID, s.now())
	if s.publisher == nil {
		return
	}
	msg := amqpx.NewActivityMessage(entry.ID, entry.Type, entry.Description, entry.ReferenceID)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity", log.FieldError, err)
	}
}

func (s *ExpenseService) flush(ctx context.Context) {
	if err := s.book.Flush(ctx, s.store); err != nil {
		s.logger.ErrorContext(ctx, "Failed to flush book", log.FieldError, err, log.FieldOperation, log.OpFlush)
	}
}
