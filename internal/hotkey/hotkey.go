// Package hotkey registers system-wide key combinations and dispatches them
// to callbacks.
package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrUnsupported is returned on platforms without global hotkeys.
	ErrUnsupported = errors.New("global hotkeys are not supported on this platform")
	// ErrAlreadyRegistered is returned when a combination is taken.
	ErrAlreadyRegistered = errors.New("hotkey already registered")
	// ErrUnknownToken is returned when unregistering a token that is not registered.
	ErrUnknownToken = errors.New("unknown hotkey token")
	// ErrClosed is returned after the service has been closed.
	ErrClosed = errors.New("hotkey service closed")
)

// Token identifies a registration.
type Token uint32

// Service binds key combinations system-wide and reports presses.
type Service interface {
	Register(c Combo) (Token, error)
	Unregister(t Token) error
	Triggered() <-chan Token
	Close() error
}

// New returns the platform hotkey service.
func New() (Service, error) {
	return newPlatformService()
}

// Dispatcher maps registrations to callbacks.
type Dispatcher struct {
	svc      Service
	logger   *slog.Logger
	mu       sync.Mutex
	handlers map[Token]func()
	names    map[Token]string
}

// NewDispatcher creates a dispatcher over svc.
func NewDispatcher(svc Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		svc:      svc,
		logger:   logger,
		handlers: make(map[Token]func()),
		names:    make(map[Token]string),
	}
}

// Bind parses combo, registers it and runs fn on every press.
func (d *Dispatcher) Bind(combo string, fn func()) error {
	c, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	tok, err := d.svc.Register(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.handlers[tok] = fn
	d.names[tok] = c.String()
	d.mu.Unlock()

	d.logger.Info("hotkey bound", "combo", c.String())
	return nil
}

// Run dispatches presses until ctx is done or the service stops reporting.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tok, ok := <-d.svc.Triggered():
			if !ok {
				return ErrClosed
			}

			d.mu.Lock()
			fn := d.handlers[tok]
			name := d.names[tok]
			d.mu.Unlock()

			if fn == nil {
				d.logger.Debug("unbound hotkey pressed", "token", tok)
				continue
			}
			d.logger.Debug("hotkey pressed", "combo", name)
			fn()
		}
	}
}

// Close unregisters every binding and closes the service.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	tokens := make([]Token, 0, len(d.handlers))
	for tok := range d.handlers {
		tokens = append(tokens, tok)
	}
	d.handlers = make(map[Token]func())
	d.names = make(map[Token]string)
	d.mu.Unlock()

	var errs []error
	for _, tok := range tokens {
		if err := d.svc.Unregister(tok); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, d.svc.Close())
	return errors.Join(errs...)
}
