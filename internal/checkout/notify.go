package checkout

import (
	"time"

	"github.com/rs/zerolog"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a transient user-facing message that dismisses itself after Duration.
type Notification struct {
	Message  string
	Severity Severity
	Duration time.Duration
}

// Notifier shows notifications. Implementations must not block for long.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a zerolog logger at a level matching their severity.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	var ev *zerolog.Event
	switch n.Severity {
	case SeverityError:
		ev = l.Log.Error()
	case SeverityWarning:
		ev = l.Log.Warn()
	default:
		ev = l.Log.Info()
	}
	ev.Str("severity", string(n.Severity)).Dur("display_for", n.Duration).Msg(n.Message)
}

func notification(sev Severity, msg string) Notification {
	d := 3 * time.Second
	switch sev {
	case SeveritySuccess, SeverityWarning:
		d = 5 * time.Second
	case SeverityError:
		d = 8 * time.Second
	}
	return Notification{Message: msg, Severity: sev, Duration: d}
}
