// Package notify surfaces status messages to the user and to error tracking.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Notifier shows a short status message.
type Notifier interface {
	Notify(message string)
}

// DefaultQuietPeriod suppresses repeats of the same message.
const DefaultQuietPeriod = 5 * time.Second

// Desktop shows messages as desktop notifications. Notify never blocks the
// caller; delivery happens on a separate goroutine.
type Desktop struct {
	title  string
	quiet  time.Duration
	logger *slog.Logger
	send   func(title, message, icon string) error

	mu   sync.Mutex
	last map[string]time.Time
	wg   sync.WaitGroup
}

// NewDesktop creates a desktop notifier using title as the notification heading.
func NewDesktop(title string, logger *slog.Logger) *Desktop {
	return &Desktop{
		title:  title,
		quiet:  DefaultQuietPeriod,
		logger: logger,
		send:   beeep.Notify,
		last:   make(map[string]time.Time),
	}
}

// Notify shows message unless the same message was shown within the quiet period.
func (d *Desktop) Notify(message string) {
	d.mu.Lock()
	if at, ok := d.last[message]; ok && time.Since(at) < d.quiet {
		d.mu.Unlock()
		d.logger.Debug("notification suppressed", "message", message)
		return
	}
	d.last[message] = time.Now()
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(d.title, message, ""); err != nil {
			d.logger.Warn("desktop notification failed", "error", err)
		}
	}()
}

// Wait blocks until pending notifications have been delivered.
func (d *Desktop) Wait() {
	d.wg.Wait()
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

// Notify forwards message to every notifier.
func (m Multi) Notify(message string) {
	for _, n := range m {
		n.Notify(message)
	}
}

// Log writes messages to a logger.
type Log struct {
	Logger *slog.Logger
}

// Notify logs message at info level.
func (l Log) Notify(message string) {
	l.Logger.Info("status", "message", message)
}
