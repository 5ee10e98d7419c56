package services

import (
	"context"
	"time"

	"coopledger/internal/amqp"
	"coopledger/internal/cache"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/storage"
)

// Publisher pushes activity events to the broker. Nil disables publishing.
type Publisher interface {
	PublishActivity(ctx context.Context, msg *amqp.ActivityMessage) error
}

// Deps bundles the collaborators shared by every service. Only Book and
// Store are required; the rest default to no-ops.
type Deps struct {
	Book      *Book
	Store     storage.Store
	Cache     cache.Repository
	Publisher Publisher
	Notifier  notify.Notifier
	Logger    *log.Logger
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Discard{}
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}
