package notify

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global sentry client. It returns a flush
// function to call before exit; with an empty dsn it does nothing.
func InitSentry(dsn, environment, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return func() {}, err
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Sentry reports status messages to sentry as warnings.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry creates a notifier over hub, or the current hub when hub is nil.
func NewSentry(hub *sentry.Hub) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sentry{hub: hub}
}

// Notify captures message.
func (s *Sentry) Notify(message string) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		s.hub.CaptureMessage(message)
	})
}

// CaptureError reports err to the current hub.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}
