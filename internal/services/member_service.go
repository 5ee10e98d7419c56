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

// MemberService manages the member roster. Retiring flips the status to
// inactive and keeps the history; deletion removes the record.
type MemberService struct {
	book      *Book
	store     storage.Store
	publisher Publisher
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewMemberService(d Deps) *MemberService {
	d = d.withDefaults()
	return &MemberService{
		book:      d.Book,
		store:     d.Store,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger.WithComponent(log.ComponentMember),
		now:       d.Clock,
	}
}

// Add registers a new active member.
func (s *MemberService) Add(ctx context.Context, name, phone, notes string) (*core.Member, error) {
	now := s.now()
	member := core.Member{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		JoinDate:  core.FormatDate(now),
		Status:    core.MemberActive,
		Notes:     notes,
		CreatedAt: now.UTC().Format(time.RFC3339),
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}
	if err := member.Validate(); err != nil {
		return nil, err
	}
	s.book.Members = append(s.book.Members, member)

	s.logActivity(ctx, "member_add", fmt.Sprintf("Member added: %s", name), member.ID)
	s.notifier.Notify(notify.Success, "Member added", name)

	s.logger.InfoContext(ctx, "Member added",
		log.FieldOperation, log.OpCreate,
		log.FieldMemberID, member.ID)

	s.flush(ctx)
	return &s.book.Members[len(s.book.Members)-1], nil
}

// Update edits a member's contact details and notes.
func (s *MemberService) Update(ctx context.Context, id, name, phone, notes string) error {
	member := s.book.FindMember(id)
	if member == nil {
		return fmt.Errorf("%w: %s", core.ErrMemberNotFound, id)
	}
	if err := (core.Member{Name: name}).Validate(); err != nil {
		return err
	}

	member.Name = name
	member.Phone = phone
	member.Notes = notes
	member.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	s.logActivity(ctx, "member_edit", fmt.Sprintf("Member edited: %s", name), id)
	s.notifier.Notify(notify.Success, "Member updated", name)

	s.flush(ctx)
	return nil
}

// Retire marks a member inactive. Their contributions, loans and ledger
// history remain in the book.
func (s *MemberService) Retire(ctx context.Context, id string) error {
	member := s.book.FindMember(id)
	if member == nil {
		return fmt.Errorf("%w: %s", core.ErrMemberNotFound, id)
	}
	for _, l := range s.book.Loans {
		if l.MemberID == id && (l.Status == core.LoanActive || l.Status == core.LoanPendingRetention) {
			return fmt.Errorf("member %s has an open loan %s", id, l.ID)
		}
	}

	member.Status = core.MemberInactive
	member.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	s.logActivity(ctx, "member_retire", fmt.Sprintf("Member retired: %s", member.Name), id)
	s.notifier.Notify(notify.Info, "Member retired", member.Name)

	s.flush(ctx)
	return nil
}

// Delete hard-removes a member record. Ledger entries are never touched;
// the cash history stays valid without the roster entry.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	idx := -1
	for i := range s.book.Members {
		if s.book.Members[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", core.ErrMemberNotFound, id)
	}
	for _, l := range s.book.Loans {
		if l.MemberID == id && (l.Status == core.LoanActive || l.Status == core.LoanPendingRetention) {
			return fmt.Errorf("member %s has an open loan %s", id, l.ID)
		}
	}

	name := s.book.Members[idx].Name
	s.book.Members = append(s.book.Members[:idx], s.book.Members[idx+1:]...)

	s.logActivity(ctx, "member_delete", fmt.Sprintf("Member deleted: %s", name), id)
	s.notifier.Notify(notify.Success, "Member deleted", name)

	s.logger.InfoContext(ctx, "Member deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldMemberID, id)

	s.flush(ctx)
	return nil
}

func (s *MemberService) logActivity(ctx context.Context, activityType, description, referenceID string) {
	entry := s.book.LogActivity(activityType, description, "", referenceID, s.now())
	if s.publisher == nil {
		return
	}
	msg := amqpx.NewActivityMessage(entry.ID, entry.Type, entry.Description, entry.ReferenceID)
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity", log.FieldError, err)
	}
}

func (s *MemberService) flush(ctx context.Context) {
	if err := s.book.Flush(ctx, s.store); err != nil {
		s.logger.ErrorContext(ctx, "Failed to flush book", log.FieldError, err, log.FieldOperation, log.OpFlush)
	}
}
