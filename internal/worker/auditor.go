// Package worker consumes the activity event stream and writes the audit
// tail. It is intentionally stateless: the book is the system of record and
// the consumer only mirrors what already happened.
package worker

import (
	"fmt"
	"strings"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/log"
)

// Auditor handles consumed activity events.
type Auditor struct {
	logger  *log.Logger
	handled int
}

func NewAuditor(logger *log.Logger) *Auditor {
	return &Auditor{logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleActivity validates and logs one activity event. An error rejects
// the delivery for redelivery.
func (a *Auditor) HandleActivity(msg *amqpx.ActivityMessage) error {
	if strings.TrimSpace(msg.Type) == "" {
		return fmt.Errorf("activity %s has no type", msg.ID)
	}

	a.handled++
	a.logger.Info("Activity event",
		"id", msg.ID,
		"type", msg.Type,
		"description", msg.Description,
		"reference_id", msg.ReferenceID,
		"timestamp", msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// Handled reports how many events this auditor has processed.
func (a *Auditor) Handled() int { return a.handled }
