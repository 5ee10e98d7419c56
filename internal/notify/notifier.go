// Package notify carries user-visible outcomes out of the core. The UI
// collaborator supplies its own implementation; the defaults here log or
// publish the notifications.
package notify

import "coopledger/internal/log"

// Kind classifies a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// Notifier receives user-visible outcomes of lifecycle operations.
type Notifier interface {
	Notify(kind Kind, title, detail string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(kind Kind, title, detail string) {
	switch kind {
	case Error:
		n.logger.Error(title, "detail", detail)
	case Warning:
		n.logger.Warn(title, "detail", detail)
	default:
		n.logger.Info(title, "detail", detail, "kind", string(kind))
	}
}

// Discard drops all notifications. Useful in tests.
type Discard struct{}

func (Discard) Notify(Kind, string, string) {}
