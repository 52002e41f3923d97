// Package loop serializes all reader state changes onto one goroutine.
// Collaborators running elsewhere (speech sessions, clipboard polling,
// hotkeys, the HTTP API) post actions instead of touching state directly.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrLoopFull is returned when the loop is at capacity.
	ErrLoopFull = errors.New("loop is full")
	// ErrLoopClosed is returned when posting to a stopped loop.
	ErrLoopClosed = errors.New("loop is closed")
	// ErrDuplicateAction is returned when an action with the same dedupe key is pending.
	ErrDuplicateAction = errors.New("duplicate action")
	// ErrExpired is reported by actions dropped after their TTL.
	ErrExpired = errors.New("action expired")
	// ErrCleared is reported by actions dropped by Clear or Stop.
	ErrCleared = errors.New("action cleared")
)

// Callback is invoked on the loop goroutine.
type Callback func()

// ActionCallback is invoked after an action ran.
type ActionCallback func(a *Action)

// Loop is a bounded action queue with a single worker.
type Loop struct {
	mu               sync.Mutex
	actions          []*Action
	capacity         int
	dedupeKeys       map[string]bool
	logger           *slog.Logger
	closed           bool
	started          bool
	idleTimeout      time.Duration
	idleCallback     Callback
	completedFunc    ActionCallback
	shutdownCallback Callback
	wg               sync.WaitGroup
	stopCh           chan struct{}
	postCh           chan struct{}
}

// New creates a loop holding at most capacity pending actions. The idle
// callback fires once after idleTimeout without actions.
func New(capacity int, idleTimeout time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		actions:     make([]*Action, 0, capacity),
		capacity:    capacity,
		dedupeKeys:  make(map[string]bool),
		logger:      logger,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		postCh:      make(chan struct{}, 1),
	}
}

// SetIdleCallback sets the function called when the loop becomes idle.
func (l *Loop) SetIdleCallback(fn Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idleCallback = fn
}

// SetCompletedCallback sets the function called after each action.
func (l *Loop) SetCompletedCallback(fn ActionCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completedFunc = fn
}

// SetShutdownCallback sets the function run on the loop goroutine after
// the last action, when Stop is called.
func (l *Loop) SetShutdownCallback(fn Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdownCallback = fn
}

// Post queues an action.
func (l *Loop) Post(a *Action) error {
	return l.post(a, false)
}

func (l *Loop) post(a *Action, force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoopClosed
	}

	if !force && len(l.actions) >= l.capacity {
		return ErrLoopFull
	}

	if a.DedupeKey != "" && l.dedupeKeys[a.DedupeKey] {
		return ErrDuplicateAction
	}

	l.actions = append(l.actions, a)
	if a.DedupeKey != "" {
		l.dedupeKeys[a.DedupeKey] = true
	}

	l.logger.Debug("action posted", "action", a.Name, "action_id", a.ID, "depth", len(l.actions))

	select {
	case l.postCh <- struct{}{}:
	default:
	}

	return nil
}

// Go posts fn as an anonymous action, logging when it cannot be queued.
func (l *Loop) Go(name string, fn func()) {
	if err := l.Post(NewAction(name, fn, 0, "")); err != nil {
		l.logger.Warn("action dropped", "action", name, "error", err)
	}
}

// Must posts fn even when the loop is at capacity. It is for work that
// must not be lost, such as the end of a speech session.
func (l *Loop) Must(name string, fn func()) {
	if err := l.post(NewAction(name, fn, 0, ""), true); err != nil {
		l.logger.Error("required action dropped", "action", name, "error", err)
	}
}

// Call posts fn and waits until it has run. It must not be called from the
// loop goroutine.
func (l *Loop) Call(ctx context.Context, name string, fn func()) error {
	a := NewAction(name, fn, 0, "")
	if err := l.Post(a); err != nil {
		return err
	}

	select {
	case <-a.Done():
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear drops every pending action.
func (l *Loop) Clear() {
	l.mu.Lock()
	dropped := l.actions
	l.actions = make([]*Action, 0, l.capacity)
	l.dedupeKeys = make(map[string]bool)
	l.mu.Unlock()

	for _, a := range dropped {
		a.finish(ErrCleared)
	}
	if len(dropped) > 0 {
		l.logger.Info("loop cleared", "actions_dropped", len(dropped))
	}
}

// Len returns the number of pending actions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}

// Start begins the worker goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.worker()
}

// Stop refuses new actions, lets the worker finish its current action,
// drops the rest and runs the shutdown callback.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	started := l.started
	l.mu.Unlock()

	close(l.stopCh)
	l.wg.Wait()
	l.Clear()

	if !started {
		l.runShutdown()
	}
}

func (l *Loop) runShutdown() {
	l.mu.Lock()
	fn := l.shutdownCallback
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// worker is the single loop goroutine.
func (l *Loop) worker() {
	defer l.wg.Done()
	defer l.runShutdown()

	var idleTimer *time.Timer
	var idleTimerCh <-chan time.Time

	stopIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimerCh = nil
		}
	}

	idleFired := false
	for {
		select {
		case <-l.stopCh:
			stopIdleTimer()
			return
		default:
		}

		if a := l.next(); a != nil {
			stopIdleTimer()
			idleFired = false
			l.process(a)
			continue
		}

		if idleTimerCh == nil && !idleFired && l.idleTimeout > 0 {
			idleTimer = time.NewTimer(l.idleTimeout)
			idleTimerCh = idleTimer.C
		}

		select {
		case <-l.stopCh:
			stopIdleTimer()
			return
		case <-l.postCh:
			continue
		case <-idleTimerCh:
			idleTimerCh = nil
			idleFired = true

			l.mu.Lock()
			callback := l.idleCallback
			l.mu.Unlock()

			if callback != nil {
				l.logger.Debug("loop idle")
				callback()
			}
		}
	}
}

// next removes and returns the next live action.
func (l *Loop) next() *Action {
	l.mu.Lock()
	var expired []*Action
	defer func() {
		l.mu.Unlock()
		for _, a := range expired {
			a.finish(ErrExpired)
		}
	}()

	for len(l.actions) > 0 {
		a := l.actions[0]
		l.actions = l.actions[1:]

		if a.DedupeKey != "" {
			delete(l.dedupeKeys, a.DedupeKey)
		}

		if a.IsExpired() {
			l.logger.Debug("skipping expired action", "action", a.Name, "action_id", a.ID)
			expired = append(expired, a)
			continue
		}

		return a
	}

	return nil
}

// process runs one action, containing any panic it raises.
func (l *Loop) process(a *Action) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("action %s panicked: %v", a.Name, r)
				l.logger.Error("action panicked", "action", a.Name, "action_id", a.ID, "panic", r)
			}
		}()
		if a.Run != nil {
			a.Run()
		}
	}()
	a.finish(err)

	l.mu.Lock()
	completed := l.completedFunc
	l.mu.Unlock()

	if completed != nil {
		completed(a)
	}
}
