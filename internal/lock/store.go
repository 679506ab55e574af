package lock

import "sync"

// Store holds the live settings. It has no validation: Update overwrites
// every field, and the next Snapshot sees the new values. Each Update bumps a
// revision counter so readers can tell whether settings moved under them.
type Store struct {
	mu        sync.RWMutex
	settings  Settings
	revision  uint64
	listeners []func(Settings)
}

// NewStore returns a store seeded with initial.
func NewStore(initial Settings) *Store {
	return &Store{settings: initial}
}

// NewDefaultStore returns a store seeded with DefaultSettings.
func NewDefaultStore() *Store {
	return NewStore(DefaultSettings())
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SnapshotRevision returns the current settings with their revision.
func (s *Store) SnapshotRevision() (Settings, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.revision
}

// Revision returns the number of updates applied so far.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Update overwrites all seven fields unconditionally and notifies listeners.
func (s *Store) Update(next Settings) {
	s.mu.Lock()
	s.settings = next
	s.revision++
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}

// OnUpdate registers fn to run after every Update, outside the store lock.
func (s *Store) OnUpdate(fn func(Settings)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
