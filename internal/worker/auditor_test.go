package worker

import (
	"testing"
	"time"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/log"
)

func TestHandleActivity(t *testing.T) {
	a := NewAuditor(log.New(log.DefaultConfig()))

	msg := &amqpx.ActivityMessage{
		ID:          "a1",
		Type:        "loan_add",
		Description: "Loan approved: Maria Gomez - $1000.00",
		ReferenceID: "l1",
		Timestamp:   time.Now(),
	}
	if err := a.HandleActivity(msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if a.Handled() != 1 {
		t.Errorf("handled = %d, want 1", a.Handled())
	}
}

func TestHandleActivityRejectsUntyped(t *testing.T) {
	a := NewAuditor(log.New(log.DefaultConfig()))

	if err := a.HandleActivity(&amqpx.ActivityMessage{ID: "a2"}); err == nil {
		t.Error("expected error for untyped activity")
	}
	if a.Handled() != 0 {
		t.Errorf("handled = %d, want 0", a.Handled())
	}
}
