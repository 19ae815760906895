// Package telemetry holds the per-device reading cache and its fetch lifecycle.
package telemetry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Lifecycle is the fetch state of one device entry.
type Lifecycle int

const (
	Idle Lifecycle = iota
	Loading
	Ready
	Failed
)

var lifecycleNames = [...]string{"idle", "loading", "ready", "failed"}

func (l Lifecycle) String() string {
	if l < Idle || l > Failed {
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
	return lifecycleNames[l]
}

func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lifecycle) UnmarshalText(b []byte) error {
	i := slices.Index(lifecycleNames[:], string(b))
	if i < 0 {
		return fmt.Errorf("unknown lifecycle %q", b)
	}
	*l = Lifecycle(i)
	return nil
}

// Entry is a point-in-time copy of one device's cache slot. Series is shared
// with the store and must be treated as read-only.
type Entry struct {
	DeviceID  string
	Series    domain.Series
	Lifecycle Lifecycle
	Err       error
	UpdatedAt time.Time
}

// OfflineSignaler receives terminal fetch failures.
type OfflineSignaler interface {
	ForceOffline(reason error)
}

type slot struct {
	series    domain.Series
	lifecycle Lifecycle
	prev      Lifecycle
	err       error
	updatedAt time.Time
}

// Store owns the latest series and lifecycle per device. Series are replaced
// wholesale, never mutated, so entries handed out earlier stay valid.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*slot
	clock   clockwork.Clock
	offline OfflineSignaler
}

// NewStore creates an empty store. offline may be nil.
func NewStore(clock clockwork.Clock, offline OfflineSignaler) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		entries: make(map[string]*slot),
		clock:   clock,
		offline: offline,
	}
}

func (s *Store) slotFor(id string) *slot {
	e, ok := s.entries[id]
	if !ok {
		e = &slot{series: domain.Series{}}
		s.entries[id] = e
	}
	return e
}

// BeginFetch marks the device as loading. The held series stays visible.
func (s *Store) BeginFetch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.slotFor(id)
	if e.lifecycle != Loading {
		e.prev = e.lifecycle
	}
	e.lifecycle = Loading
	e.updatedAt = s.clock.Now()
}

// CompleteFetch replaces the device's series and marks it ready.
func (s *Store) CompleteFetch(id string, series domain.Series) {
	owned := slices.Clone(series)
	if owned == nil {
		owned = domain.Series{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.slotFor(id)
	e.series = owned
	e.lifecycle = Ready
	e.err = nil
	e.updatedAt = s.clock.Now()
}

// FailFetch clears the device's series, marks it failed and forces the
// connectivity signal offline.
func (s *Store) FailFetch(id string, reason error) {
	s.mu.Lock()
	e := s.slotFor(id)
	e.series = domain.Series{}
	e.lifecycle = Failed
	e.err = reason
	e.updatedAt = s.clock.Now()
	s.mu.Unlock()

	if s.offline != nil {
		s.offline.ForceOffline(reason)
	}
}

// AbandonFetch reverts a loading entry to the lifecycle it had before
// BeginFetch. Used when a fetch result is dropped.
func (s *Store) AbandonFetch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.lifecycle != Loading {
		return
	}
	e.lifecycle = e.prev
	e.updatedAt = s.clock.Now()
}

// Entry returns the device's current slot. Unknown devices are idle and empty.
func (s *Store) Entry(id string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{DeviceID: id, Series: domain.Series{}, Lifecycle: Idle}
	}
	return Entry{
		DeviceID:  id,
		Series:    e.series,
		Lifecycle: e.lifecycle,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
}
