// ABOUTME: Observable endpoint registry
// ABOUTME: Owns the live endpoint list, persists it and publishes change events
package endpoint

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies what happened to an endpoint
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventUpdated
	// EventResync replaces events dropped for a slow subscriber; the
	// subscriber should re-read the whole list
	EventResync
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventUpdated:
		return "updated"
	case EventResync:
		return "resync"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event describes one change to the registry
type Event struct {
	Kind     EventKind
	Endpoint Endpoint  // the new value, or the removed value
	Changed  FieldMask // fields that changed; FieldAll for add/remove/resync
}

// Registry holds the configured endpoints
type Registry struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]Endpoint
	order     []uuid.UUID
	store     *Store

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewRegistry creates a registry, loading endpoints from store if non-nil
func NewRegistry(store *Store) (*Registry, error) {
	r := &Registry{
		endpoints: make(map[uuid.UUID]Endpoint),
		store:     store,
		subs:      make(map[int]chan Event),
	}

	if store == nil {
		return r, nil
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load endpoints: %w", err)
	}
	for _, ep := range loaded {
		ep = ep.Normalize()
		if err := ep.Validate(); err != nil {
			log.Printf("Skipping stored endpoint %s: %v", ep.ID, err)
			continue
		}
		if _, dup := r.endpoints[ep.ID]; dup {
			continue
		}
		r.endpoints[ep.ID] = ep
		r.order = append(r.order, ep.ID)
	}
	return r, nil
}

// List returns a snapshot of all endpoints in insertion order
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Endpoint, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.endpoints[id])
	}
	return list
}

// ListRole returns a snapshot of endpoints with the given role
func (r *Registry) ListRole(role Role) []Endpoint {
	var out []Endpoint
	for _, ep := range r.List() {
		if ep.Role == role {
			out = append(out, ep)
		}
	}
	return out
}

// Get returns the endpoint with the given ID
func (r *Registry) Get(id uuid.UUID) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[id]
	return ep, ok
}

// Add validates and stores a new endpoint. A nil ID is replaced with a
// fresh one. The stored value is returned.
func (r *Registry) Add(ep Endpoint) (Endpoint, error) {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	ep = ep.Normalize()
	if err := ep.Validate(); err != nil {
		return Endpoint{}, err
	}

	r.mu.Lock()
	if _, exists := r.endpoints[ep.ID]; exists {
		r.mu.Unlock()
		return Endpoint{}, fmt.Errorf("endpoint %s already exists", ep.ID)
	}
	r.endpoints[ep.ID] = ep
	r.order = append(r.order, ep.ID)
	err := r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventAdded, Endpoint: ep, Changed: FieldAll})
	return ep, err
}

// Update replaces an existing endpoint. Subscribers are only notified
// when at least one field changed.
func (r *Registry) Update(ep Endpoint) (Endpoint, error) {
	ep = ep.Normalize()
	if err := ep.Validate(); err != nil {
		return Endpoint{}, err
	}

	r.mu.Lock()
	old, ok := r.endpoints[ep.ID]
	if !ok {
		r.mu.Unlock()
		return Endpoint{}, fmt.Errorf("%w: %s", ErrNotFound, ep.ID)
	}
	changed := Diff(old, ep)
	if changed == 0 {
		r.mu.Unlock()
		return ep, nil
	}
	r.endpoints[ep.ID] = ep
	err := r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventUpdated, Endpoint: ep, Changed: changed})
	return ep, err
}

// Modify applies fn to the stored endpoint with the given ID and updates it
func (r *Registry) Modify(id uuid.UUID, fn func(*Endpoint)) (Endpoint, error) {
	ep, ok := r.Get(id)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&ep)
	ep.ID = id
	return r.Update(ep)
}

// Remove deletes an endpoint
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	ep, ok := r.endpoints[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.endpoints, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	err := r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventRemoved, Endpoint: ep, Changed: FieldAll})
	return err
}

// persistLocked saves the list (must hold r.mu)
func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	list := make([]Endpoint, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.endpoints[id])
	}
	if err := r.store.Save(list); err != nil {
		return fmt.Errorf("failed to save endpoints: %w", err)
	}
	return nil
}

// Subscribe returns a channel of change events and a function that ends
// the subscription. Delivery never blocks the registry: when the channel
// is full the oldest event is replaced by an EventResync.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subsMu.Lock()
			delete(r.subs, id)
			r.subsMu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) publish(ev Event) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		// Subscriber is behind: drop the oldest and ask it to resync
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- Event{Kind: EventResync, Changed: FieldAll}:
		default:
		}
	}
}
