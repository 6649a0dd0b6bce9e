package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/pass-scheduler/model"
)

var (
	// ErrProfileExists is returned when adding a profile whose ID is taken.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound is returned for lookups of unknown IDs.
	ErrProfileNotFound = errors.New("profile not found")
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventProfileAdded EventType = iota
	EventProfileEnabled
	EventProfileDisabled
)

func (e EventType) String() string {
	switch e {
	case EventProfileAdded:
		return "added"
	case EventProfileEnabled:
		return "enabled"
	case EventProfileDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type      EventType
	ProfileID string
}

type entry[T model.ByteStreamProcessor] struct {
	profile T
	enabled bool
	seq     int
}

// Catalog is an in-memory, thread-safe store of device profiles. Profiles are
// enabled when added and keep their insertion order in listings.
type Catalog[T model.ByteStreamProcessor] struct {
	mu sync.RWMutex

	profiles map[string]*entry[T]
	next     int

	subs   map[int]func(Event)
	nextID int
}

// NewCatalog constructs an empty catalog.
func NewCatalog[T model.ByteStreamProcessor]() *Catalog[T] {
	return &Catalog[T]{
		profiles: make(map[string]*entry[T]),
		subs:     make(map[int]func(Event)),
	}
}

// Add stores p. It returns ErrProfileExists if the ID is already present.
func (c *Catalog[T]) Add(p T) error {
	id := p.ID()
	if id == "" {
		return fmt.Errorf("profile ID must not be empty")
	}

	c.mu.Lock()
	if _, exists := c.profiles[id]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrProfileExists, id)
	}
	c.profiles[id] = &entry[T]{profile: p, enabled: true, seq: c.next}
	c.next++
	subs := c.snapshotSubs()
	c.mu.Unlock()

	notify(subs, Event{Type: EventProfileAdded, ProfileID: id})
	return nil
}

// AddAll adds every profile, stopping at the first failure.
func (c *Catalog[T]) AddAll(profiles []T) error {
	for _, p := range profiles {
		if err := c.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the profile with the given ID.
func (c *Catalog[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.profiles[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.profile, true
}

// Len returns the number of stored profiles.
func (c *Catalog[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}

// List returns a snapshot of all profiles in insertion order.
func (c *Catalog[T]) List() []T {
	return c.list(false)
}

// Enabled returns a snapshot of enabled profiles in insertion order.
func (c *Catalog[T]) Enabled() []T {
	return c.list(true)
}

func (c *Catalog[T]) list(enabledOnly bool) []T {
	c.mu.RLock()
	entries := make([]*entry[T], 0, len(c.profiles))
	for _, e := range c.profiles {
		if enabledOnly && !e.enabled {
			continue
		}
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	res := make([]T, len(entries))
	for i, e := range entries {
		res[i] = e.profile
	}
	return res
}

// IsEnabled reports whether the profile exists and is enabled.
func (c *Catalog[T]) IsEnabled(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.profiles[id]
	return ok && e.enabled
}

// SetEnabled toggles whether a profile is offered to schedulers. Subscribers
// are only notified when the state actually changes.
func (c *Catalog[T]) SetEnabled(id string, enabled bool) error {
	c.mu.Lock()
	e, ok := c.profiles[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	if e.enabled == enabled {
		c.mu.Unlock()
		return nil
	}
	e.enabled = enabled
	subs := c.snapshotSubs()
	c.mu.Unlock()

	typ := EventProfileDisabled
	if enabled {
		typ = EventProfileEnabled
	}
	notify(subs, Event{Type: typ, ProfileID: id})
	return nil
}

// Subscribe registers a callback for catalog events. It returns an unsubscribe function.
func (c *Catalog[T]) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// snapshotSubs must be called with c.mu held.
func (c *Catalog[T]) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), len(ids))
	for i, id := range ids {
		subs[i] = c.subs[id]
	}
	return subs
}

// notify runs outside the lock so callbacks may call back into the catalog.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
