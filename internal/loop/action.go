package loop

import (
	"time"

	"github.com/google/uuid"
)

// Action is a unit of work run on the loop goroutine.
type Action struct {
	ID        string
	Name      string
	Run       func()
	TTL       time.Duration
	DedupeKey string
	CreatedAt time.Time
	ExpiresAt time.Time

	done chan struct{}
	err  error
}

// NewAction creates an action with a unique ID. A zero ttl never expires; an
// empty dedupeKey is never deduplicated.
func NewAction(name string, run func(), ttl time.Duration, dedupeKey string) *Action {
	now := time.Now()
	a := &Action{
		ID:        uuid.New().String(),
		Name:      name,
		Run:       run,
		TTL:       ttl,
		DedupeKey: dedupeKey,
		CreatedAt: now,
		done:      make(chan struct{}),
	}

	if ttl > 0 {
		a.ExpiresAt = now.Add(ttl)
	}

	return a
}

// IsExpired returns true if the action has passed its TTL.
func (a *Action) IsExpired() bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(a.ExpiresAt)
}

// Done is closed once the action ran or was dropped.
func (a *Action) Done() <-chan struct{} {
	return a.done
}

// Err reports why the action did not run. Only valid after Done is closed.
func (a *Action) Err() error {
	return a.err
}

func (a *Action) finish(err error) {
	a.err = err
	close(a.done)
}
