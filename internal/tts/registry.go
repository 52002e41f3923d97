package tts

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the configured synthesizers and which one reads aloud.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	active  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine. The first engine registered becomes active.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return ErrEngineExists
	}

	r.engines[name] = engine
	if r.active == "" {
		r.active = name
	}
	return nil
}

// Get retrieves an engine by name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, ErrEngineNotFound
	}
	return engine, nil
}

// Default returns the active engine.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return nil, ErrEngineNotFound
	}
	return r.engines[r.active], nil
}

// SetDefault makes the named engine active.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return ErrEngineNotFound
	}
	r.active = name
	return nil
}

// List returns registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Voices returns the voices of the active engine. Engines that cannot list
// voices report a single "default" voice.
func (r *Registry) Voices() []string {
	engine, err := r.Default()
	if err != nil {
		return nil
	}
	if lister, ok := engine.(VoiceLister); ok {
		return lister.Voices()
	}
	return []string{"default"}
}
