package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

var (
	ErrUnknownPlace    = errors.New("unknown place")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyID         = errors.New("empty place id")
)

// ChangeKind describes what happened to a place.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeRemoved  ChangeKind = "removed"
	ChangePromoted ChangeKind = "promoted"
	ChangeDemoted  ChangeKind = "demoted"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind  ChangeKind
	Place model.Place
}

// Listener receives registry changes. It runs after the registry lock is released, so
// changes from concurrent writers may arrive out of order; read the registry for the
// current state.
type Listener func(Change)

// Registry is the single owner of place identity and categorization.
type Registry struct {
	mu     sync.RWMutex
	places map[string]model.Place
	order  []string // insertion order of ids, for stable listings

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		places:    map[string]model.Place{},
		listeners: map[int]Listener{},
	}
}

// Subscribe registers l and returns a function that removes it.
func (r *Registry) Subscribe(l Listener) func() {
	r.lmu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.lmu.Unlock()
	return func() {
		r.lmu.Lock()
		delete(r.listeners, id)
		r.lmu.Unlock()
	}
}

func (r *Registry) notify(changes ...Change) {
	r.lmu.Lock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.lmu.Unlock()
	for _, c := range changes {
		for _, l := range ls {
			l(c)
		}
	}
}

// Upsert inserts or replaces the place with p.ID. Categories already held by the
// existing entry are kept, so upserting a search hit never drops a stored tag. A new
// place must carry at least one category.
func (r *Registry) Upsert(p model.Place) (model.Place, error) {
	if p.ID == "" {
		return model.Place{}, ErrEmptyID
	}
	r.mu.Lock()
	if prev, ok := r.places[p.ID]; (!ok || prev.Categories.Empty()) && p.Categories.Empty() {
		r.mu.Unlock()
		return model.Place{}, fmt.Errorf("upsert %s without a category: %w", p.ID, ErrInvalidCategory)
	}
	stored := r.upsertLocked(p)
	r.mu.Unlock()
	r.notify(Change{Kind: ChangeUpserted, Place: stored.Clone()})
	return stored.Clone(), nil
}

func (r *Registry) upsertLocked(p model.Place) model.Place {
	p = p.Clone()
	if prev, ok := r.places[p.ID]; ok {
		p.Categories |= prev.Categories
	} else {
		r.order = append(r.order, p.ID)
	}
	r.places[p.ID] = p
	return p
}

// Get returns the place with id.
func (r *Registry) Get(id string) (model.Place, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.places[id]
	if !ok {
		return model.Place{}, false
	}
	return p.Clone(), true
}

// Remove deletes id from every category at once.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	p, ok := r.removeLocked(id)
	r.mu.Unlock()
	if ok {
		r.notify(Change{Kind: ChangeRemoved, Place: p})
	}
	return ok
}

func (r *Registry) removeLocked(id string) (model.Place, bool) {
	p, ok := r.places[id]
	if !ok {
		return model.Place{}, false
	}
	delete(r.places, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

// ListByCategory returns every place tagged with c, in insertion order.
func (r *Registry) ListByCategory(c model.Category) []model.Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Place, 0)
	for _, id := range r.order {
		p := r.places[id]
		if p.Categories.Has(c) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Visible returns the union of all categories by id.
func (r *Registry) Visible() []model.Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Place, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.places[id].Clone())
	}
	return out
}

// Promote adds category c to the place. Identity and coordinates are untouched.
func (r *Registry) Promote(id string, c model.Category) (model.Place, error) {
	if !validCategory(c) {
		return model.Place{}, fmt.Errorf("promote %s: %w", id, ErrInvalidCategory)
	}
	r.mu.Lock()
	p, ok := r.places[id]
	if !ok {
		r.mu.Unlock()
		return model.Place{}, fmt.Errorf("promote %s: %w", id, ErrUnknownPlace)
	}
	p.Categories = p.Categories.With(c)
	r.places[id] = p
	r.mu.Unlock()
	r.notify(Change{Kind: ChangePromoted, Place: p.Clone()})
	return p.Clone(), nil
}

// Demote removes category c from the place. A place left with no category is removed.
func (r *Registry) Demote(id string, c model.Category) (model.Place, error) {
	if !validCategory(c) {
		return model.Place{}, fmt.Errorf("demote %s: %w", id, ErrInvalidCategory)
	}
	r.mu.Lock()
	p, ok := r.places[id]
	if !ok {
		r.mu.Unlock()
		return model.Place{}, fmt.Errorf("demote %s: %w", id, ErrUnknownPlace)
	}
	p.Categories = p.Categories.Without(c)
	kind := ChangeDemoted
	if p.Categories.Empty() {
		r.removeLocked(id)
		kind = ChangeRemoved
	} else {
		r.places[id] = p
	}
	r.mu.Unlock()
	r.notify(Change{Kind: kind, Place: p.Clone()})
	return p.Clone(), nil
}

// ReplaceSearchResults swaps the ephemeral search set for places. Previous results that
// were promoted keep their other tags and stay in the registry.
func (r *Registry) ReplaceSearchResults(places []model.Place) []model.Place {
	var changes []Change
	r.mu.Lock()
	for _, id := range append([]string(nil), r.order...) {
		p := r.places[id]
		if !p.Categories.Has(model.CategorySearch) {
			continue
		}
		p.Categories = p.Categories.Without(model.CategorySearch)
		if p.Categories.Empty() {
			r.removeLocked(id)
			changes = append(changes, Change{Kind: ChangeRemoved, Place: p})
		} else {
			r.places[id] = p
			changes = append(changes, Change{Kind: ChangeDemoted, Place: p.Clone()})
		}
	}
	out := make([]model.Place, 0, len(places))
	for _, p := range places {
		if p.ID == "" {
			continue
		}
		p.Categories = p.Categories.With(model.CategorySearch)
		stored := r.upsertLocked(p)
		out = append(out, stored.Clone())
		changes = append(changes, Change{Kind: ChangeUpserted, Place: stored.Clone()})
	}
	r.mu.Unlock()
	r.notify(changes...)
	return out
}

// Create adds a user-created place with a fresh id.
func (r *Registry) Create(name string, lat, lon float64, description string) model.Place {
	p := model.Place{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        "created",
		Latitude:    lat,
		Longitude:   lon,
		Description: description,
		Categories:  model.CategorySet(0).With(model.CategoryCreated),
	}
	stored, _ := r.Upsert(p)
	return stored
}

func validCategory(c model.Category) bool {
	for _, x := range model.AllCategories {
		if x == c {
			return true
		}
	}
	return false
}
