package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is one origin tag of a place.
type Category uint8

const (
	CategorySearch Category = 1 << iota
	CategoryStored
	CategoryCreated
)

// AllCategories lists categories in listing order.
var AllCategories = []Category{CategorySearch, CategoryStored, CategoryCreated}

func (c Category) String() string {
	switch c {
	case CategorySearch:
		return "search"
	case CategoryStored:
		return "stored"
	case CategoryCreated:
		return "created"
	}
	return "unknown"
}

// ParseCategory maps "search", "stored" and "created" to a Category.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "search":
		return CategorySearch, true
	case "stored", "saved":
		return CategoryStored, true
	case "created", "drawn":
		return CategoryCreated, true
	}
	return 0, false
}

// CategorySet holds every origin tag a place currently carries.
type CategorySet uint8

func (s CategorySet) Has(c Category) bool        { return uint8(s)&uint8(c) != 0 }
func (s CategorySet) With(c Category) CategorySet { return CategorySet(uint8(s) | uint8(c)) }
func (s CategorySet) Without(c Category) CategorySet {
	return CategorySet(uint8(s) &^ uint8(c))
}
func (s CategorySet) Empty() bool { return s == 0 }

// List returns the categories in the set.
func (s CategorySet) List() []Category {
	out := make([]Category, 0, len(AllCategories))
	for _, c := range AllCategories {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON encodes the set as a list of category names.
func (s CategorySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(AllCategories))
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of category names.
func (s *CategorySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	var out CategorySet
	for _, n := range names {
		c, ok := ParseCategory(n)
		if !ok {
			return fmt.Errorf("categories: unknown category %q", n)
		}
		out = out.With(c)
	}
	*s = out
	return nil
}

// Place is any point entity shown on the map.
type Place struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Categories  CategorySet       `json:"categories"`
	// TransitStop marks a place that is a stop; StopID links the transit stop id.
	TransitStop bool   `json:"transitStop,omitempty"`
	StopID      string `json:"stopId,omitempty"`
}

// Origin returns the category that governs deletion and favoriting.
// Created wins over stored, stored wins over search.
func (p Place) Origin() Category {
	switch {
	case p.Categories.Has(CategoryCreated):
		return CategoryCreated
	case p.Categories.Has(CategoryStored):
		return CategoryStored
	case p.Categories.Has(CategorySearch):
		return CategorySearch
	}
	return 0
}

// IsTransitStop reports whether the place is itself a transit stop.
func (p Place) IsTransitStop() bool { return p.TransitStop }

// LinkedStopID returns the stop id enrichment should query, if any.
func (p Place) LinkedStopID() string {
	if p.StopID != "" {
		return p.StopID
	}
	if p.TransitStop {
		return p.ID
	}
	return ""
}

// Property returns a property value or "".
func (p Place) Property(key string) string {
	if p.Properties == nil {
		return ""
	}
	return p.Properties[key]
}

// Clone returns a copy that shares no maps with p.
func (p Place) Clone() Place {
	c := p
	if p.Properties != nil {
		c.Properties = make(map[string]string, len(p.Properties))
		for k, v := range p.Properties {
			c.Properties[k] = v
		}
	}
	return c
}
