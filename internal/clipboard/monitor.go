package clipboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Monitor polls a Reader and reports content changes.
type Monitor struct {
	reader   Reader
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	last   string
	ignore string
}

// NewMonitor creates a monitor polling every interval.
func NewMonitor(reader Reader, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Monitor{
		reader:   reader,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is done, calling fn for every new content. Content
// already on the clipboard when Run starts is not reported.
func (m *Monitor) Run(ctx context.Context, fn func(Content)) error {
	m.prime()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("clipboard monitor started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("clipboard monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if c, ok := m.poll(); ok {
				fn(c)
			}
		}
	}
}

// Ignore marks c as written by this process. The next time the clipboard
// changes to c it is not reported. Safe on a nil Monitor.
func (m *Monitor) Ignore(c Content) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignore = c.Key()
}

func (m *Monitor) prime() {
	if c, err := m.reader.Read(); err == nil {
		m.mu.Lock()
		m.last = c.Key()
		m.mu.Unlock()
	}
}

// poll reads the clipboard once and reports whether it changed.
func (m *Monitor) poll() (Content, bool) {
	c, err := m.reader.Read()
	if err != nil {
		if !errors.Is(err, ErrEmpty) {
			m.logger.Debug("clipboard read failed", "error", err)
		}
		return Content{}, false
	}

	key := c.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.last {
		return Content{}, false
	}
	m.last = key
	if key == m.ignore {
		m.ignore = ""
		m.logger.Debug("clipboard changed by us, skipped")
		return Content{}, false
	}

	m.logger.Debug("clipboard changed", "image", c.IsImage(), "text_length", len(c.Text))
	return c, true
}
