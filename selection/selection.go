package selection

import (
	"fmt"
	"sync"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// Token identifies one selection. Zero is never issued.
type Token uint64

// Kind is what a selection points at.
type Kind string

const (
	KindPlace   Kind = "place"
	KindVehicle Kind = "vehicle"
)

// Selection is the active entity. Exactly one of Place and Vehicle is set.
type Selection struct {
	Token   Token          `json:"token"`
	Kind    Kind           `json:"kind"`
	Place   *model.Place   `json:"place,omitempty"`
	Vehicle *model.Vehicle `json:"vehicle,omitempty"`
}

// Event is published after every change. Current is nil after a clear.
type Event struct {
	Previous Token
	Current  *Selection
}

// Listener observes selection changes. Events arrive one at a time in the order the
// changes happened. A listener must not select or clear; it may read Current.
type Listener func(Event)

// Machine is the selection state machine.
type Machine struct {
	mu      sync.RWMutex
	counter Token
	current *Selection
	// dmu serializes a change with its delivery. It is taken before mu, so listeners
	// can still read while they run.
	dmu     sync.Mutex

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New returns a machine with nothing selected.
func New() *Machine {
	return &Machine{listeners: map[int]Listener{}}
}

// SelectPlace selects p.
func (m *Machine) SelectPlace(p model.Place) Token {
	c := p.Clone()
	tok, _ := m.Select(Selection{Kind: KindPlace, Place: &c})
	return tok
}

// SelectVehicle selects v. Any place selection is dropped.
func (m *Machine) SelectVehicle(v model.Vehicle) Token {
	c := v
	tok, _ := m.Select(Selection{Kind: KindVehicle, Vehicle: &c})
	return tok
}

// Select replaces the current selection with s and returns its new token.
// The Token field of s is ignored. Place and vehicle share the single slot, so
// selecting one always clears the other.
func (m *Machine) Select(s Selection) (Token, error) {
	switch s.Kind {
	case KindPlace:
		if s.Place == nil {
			return 0, fmt.Errorf("select %s: missing place", s.Kind)
		}
		s.Vehicle = nil
	case KindVehicle:
		if s.Vehicle == nil {
			return 0, fmt.Errorf("select %s: missing vehicle", s.Kind)
		}
		s.Place = nil
	default:
		return 0, fmt.Errorf("select: unknown kind %q", s.Kind)
	}

	m.dmu.Lock()
	defer m.dmu.Unlock()
	m.mu.Lock()
	prev := m.currentTokenLocked()
	m.counter++
	s.Token = m.counter
	m.current = &s
	m.mu.Unlock()

	cp := s
	m.notify(Event{Previous: prev, Current: &cp})
	return s.Token, nil
}

// Clear drops the selection without issuing a new token.
func (m *Machine) Clear() {
	m.dmu.Lock()
	defer m.dmu.Unlock()
	m.mu.Lock()
	prev := m.currentTokenLocked()
	m.current = nil
	m.mu.Unlock()
	if prev != 0 {
		m.notify(Event{Previous: prev})
	}
}

// ClearIf clears only when tok is still current. It reports whether it did.
func (m *Machine) ClearIf(tok Token) bool {
	m.dmu.Lock()
	defer m.dmu.Unlock()
	m.mu.Lock()
	if m.current == nil || m.current.Token != tok {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.mu.Unlock()
	m.notify(Event{Previous: tok})
	return true
}

// Current returns a copy of the active selection.
func (m *Machine) Current() (Selection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Selection{}, false
	}
	return *m.current, true
}

// IsCurrent reports whether tok belongs to the active selection.
func (m *Machine) IsCurrent(tok Token) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tok != 0 && m.current != nil && m.current.Token == tok
}

func (m *Machine) currentTokenLocked() Token {
	if m.current == nil {
		return 0
	}
	return m.current.Token
}

// Subscribe registers l and returns a function that removes it.
func (m *Machine) Subscribe(l Listener) func() {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

func (m *Machine) notify(e Event) {
	m.lmu.Lock()
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	m.lmu.Unlock()
	for _, l := range ls {
		l(e)
	}
}
