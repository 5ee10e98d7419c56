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

// ContributionService records member contributions and keeps the member's
// cached totals in step. The caches are informational; the ledger stays
// authoritative for cash.
type ContributionService struct {
	book      *Book
	store     storage.Store
	publisher Publisher
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewContributionService(d Deps) *ContributionService {
	d = d.withDefaults()
	return &ContributionService{
		book:      d.Book,
		store:     d.Store,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger.WithComponent(log.ComponentContribution),
		now:       d.Clock,
	}
}

// AddContributionInput is a month's contribution for one member.
type AddContributionInput struct {
	MemberID      string
	Month         string // "2024-01"
	ShareAmount   float64
	ExpenseAmount float64
	PenaltyAmount float64
}

// Add records a paid contribution, appends the contribution ledger entry
// and updates the member's cached totals.
func (s *ContributionService) Add(ctx context.Context, in AddContributionInput) (*core.Contribution, error) {
	member := s.book.FindMember(in.MemberID)
	if member == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrMemberNotFound, in.MemberID)
	}

	now := s.now()
	total := in.ShareAmount + in.ExpenseAmount + in.PenaltyAmount

	contribution := core.Contribution{
		ID:            uuid.NewString(),
		MemberID:      in.MemberID,
		Month:         in.Month,
		ShareAmount:   in.ShareAmount,
		ExpenseAmount: in.ExpenseAmount,
		PenaltyAmount: in.PenaltyAmount,
		TotalAmount:   total,
		Status:        core.ContributionPaid,
		PaidDate:      core.FormatDate(now),
		DueDate:       fmt.Sprintf("%s-05", in.Month),
		CreatedAt:     now.UTC().Format(time.RFC3339),
	}
	s.book.Contributions = append(s.book.Contributions, contribution)

	s.book.AppendTransaction(core.TxContribution, total,
		fmt.Sprintf("Contribution - %s", in.Month), "", now)

	member.TotalContributions += total
	member.CurrentBalance += total
	member.UpdatedAt = now.UTC().Format(time.RFC3339)

	s.logActivity(ctx, "contribution_add",
		fmt.Sprintf("Contribution paid: %s - %.2f", in.Month, total), contribution.ID)
	s.notifier.Notify(notify.Success, "Contribution paid",
		fmt.Sprintf("Contribution of %.2f recorded and paid.", total))

	s.logger.InfoContext(ctx, "Contribution recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldMemberID, in.MemberID,
		log.FieldAmount, total)

	s.flush(ctx)
	return &s.book.Contributions[len(s.book.Contributions)-1], nil
}

// MarkPaid flips a pending contribution to paid and appends its ledger
// entry.
func (s *ContributionService) MarkPaid(ctx context.Context, id string) error {
	contribution := s.findContribution(id)
	if contribution == nil {
		return fmt.Errorf("contribution %s not found", id)
	}

	now := s.now()
	contribution.Status = core.ContributionPaid
	contribution.PaidDate = core.FormatDate(now)

	s.book.AppendTransaction(core.TxContribution, contribution.TotalAmount,
		fmt.Sprintf("Contribution - %s", contribution.Month), "", now)

	s.logActivity(ctx, "contribution_pay",
		fmt.Sprintf("Contribution paid: %s - %.2f", contribution.Month, contribution.TotalAmount), id)
	s.notifier.Notify(notify.Success, "Payment recorded", "The contribution has been marked as paid.")

	s.flush(ctx)
	return nil
}

// UpdateAmounts edits a contribution's amounts and recomputes the member's
// cached contribution total from scratch.
func (s *ContributionService) UpdateAmounts(ctx context.Context, id string, share, expense, penalty float64) error {
	contribution := s.findContribution(id)
	if contribution == nil {
		return fmt.Errorf("contribution %s not found", id)
	}

	contribution.ShareAmount = share
	contribution.ExpenseAmount = expense
	contribution.PenaltyAmount = penalty
	contribution.TotalAmount = share + expense + penalty

	if member := s.book.FindMember(contribution.MemberID); member != nil && contribution.Status == core.ContributionPaid {
		var total float64
		for _, c := range s.book.Contributions {
			if c.MemberID == member.ID && c.Status == core.ContributionPaid {
				total += c.TotalAmount
			}
		}
		member.TotalContributions = total
		member.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	}

	s.logActivity(ctx, "contribution_edit",
		fmt.Sprintf("Contribution edited: %s", contribution.Month), id)
	s.notifier.Notify(notify.Success, "Contribution updated", "")

	s.flush(ctx)
	return nil
}

// Delete removes a contribution. A paid contribution's cash effect is
// reversed with a compensating manual adjustment, never by mutating the
// original ledger entry.
func (s *ContributionService) Delete(ctx context.Context, id string) error {
	var target *core.Contribution
	idx := -1
	for i := range s.book.Contributions {
		if s.book.Contributions[i].ID == id {
			target = &s.book.Contributions[i]
			idx = i
			break
		}
	}
	if target == nil {
		return fmt.Errorf("contribution %s not found", id)
	}

	now := s.now()
	wasPaid := target.Status == core.ContributionPaid
	month := target.Month
	total := target.TotalAmount
	memberID := target.MemberID

	s.book.Contributions = append(s.book.Contributions[:idx], s.book.Contributions[idx+1:]...)

	if member := s.book.FindMember(memberID); member != nil && wasPaid {
		var remaining float64
		for _, c := range s.book.Contributions {
			if c.MemberID == member.ID && c.Status == core.ContributionPaid {
				remaining += c.TotalAmount
			}
		}
		member.TotalContributions = remaining
		member.UpdatedAt = now.UTC().Format(time.RFC3339)
	}

	if wasPaid {
		s.book.AppendTransaction(core.TxManualAdjustment, -total,
			fmt.Sprintf("Reversal of deleted contribution - %s", month), "", now)
	}

	s.logActivity(ctx, "contribution_delete",
		fmt.Sprintf("Contribution deleted: %s", month), id)
	s.notifier.Notify(notify.Success, "Contribution deleted", "")

	s.flush(ctx)
	return nil
}

func (s *ContributionService) findContribution(id string) *core.Contribution {
	for i := range s.book.Contributions {
		if s.book.Contributions[i].ID == id {
			return &s.book.Contributions[i]
		}
	}
	return nil
}

func (s *ContributionService) logActivity(ctx context.Context, activityType, description, referenceID string) {
	entry := s.book.LogActivity(activityType, description, "", referenceID, s.now())
	if s.publisher == nil {
		return
	}
	msg := amqpx.NewActivityMessage(entry.ID, entry.Type, entry.Description, entry.ReferenceID)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity", log.FieldError, err)
	}
}

func (s *ContributionService) flush(ctx context.Context) {
	if err := s.book.Flush(ctx, s.store); err != nil {
		s.logger.ErrorContext(ctx, "Failed to flush book", log.FieldError, err, log.FieldOperation, log.OpFlush)
	}
}
