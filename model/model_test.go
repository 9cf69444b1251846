package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(cs ...Category) CategorySet {
	var s CategorySet
	for _, c := range cs {
		s = s.With(c)
	}
	return s
}

func TestOriginPrecedence(t *testing.T) {
	tests := []struct {
		name string
		cats CategorySet
		want Category
	}{
		{"search only", set(CategorySearch), CategorySearch},
		{"promoted search hit", set(CategorySearch, CategoryStored), CategoryStored},
		{"created and stored", set(CategoryStored, CategoryCreated), CategoryCreated},
		{"everything", set(CategorySearch, CategoryStored, CategoryCreated), CategoryCreated},
		{"none", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Place{Categories: tt.cats}.Origin())
		})
	}
}

func TestCategorySet(t *testing.T) {
	s := set(CategorySearch, CategoryCreated)
	assert.True(t, s.Has(CategorySearch))
	assert.False(t, s.Has(CategoryStored))
	assert.Equal(t, []Category{CategorySearch, CategoryCreated}, s.List())
	assert.True(t, s.Without(CategorySearch).Without(CategoryCreated).Empty())

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["search","created"]`, string(b))

	var back CategorySet
	require.NoError(t, json.Unmarshal([]byte(`["saved","search"]`), &back))
	assert.Equal(t, set(CategorySearch, CategoryStored), back)
	assert.Error(t, json.Unmarshal([]byte(`["pinned"]`), &back))
}

func TestLinkedStopID(t *testing.T) {
	assert.Equal(t, "1_75403", Place{ID: "1_75403", TransitStop: true}.LinkedStopID())
	assert.Equal(t, "1_99", Place{ID: "p", StopID: "1_99"}.LinkedStopID())
	assert.Empty(t, Place{ID: "p"}.LinkedStopID())
}

func TestCloneDoesNotShareProperties(t *testing.T) {
	p := Place{ID: "p", Properties: map[string]string{"address": "a"}}
	c := p.Clone()
	c.Properties["address"] = "b"
	assert.Equal(t, "a", p.Property("address"))
	assert.Empty(t, Place{}.Property("address"))
}

func TestClampBranchIndex(t *testing.T) {
	assert.Equal(t, 1, ClampBranchIndex(99, 2))
	assert.Equal(t, 0, ClampBranchIndex(-3, 2))
	assert.Equal(t, 0, ClampBranchIndex(5, 0))
	assert.Equal(t, 1, ClampBranchIndex(1, 3))

	_, ok := Route{}.SelectedBranch()
	assert.False(t, ok)
}

func TestBranchBounds(t *testing.T) {
	b := Branch{
		Segments: []LineString{{{Latitude: 47.60, Longitude: -122.34}, {Latitude: 47.65, Longitude: -122.30}}},
		Stops:    []Stop{{Latitude: 47.58, Longitude: -122.32}},
	}
	sw, ne, ok := b.Bounds()
	require.True(t, ok)
	assert.Equal(t, Coordinate{Latitude: 47.58, Longitude: -122.34}, sw)
	assert.Equal(t, Coordinate{Latitude: 47.65, Longitude: -122.30}, ne)

	_, _, ok = Branch{}.Bounds()
	assert.False(t, ok)
}

func TestIsOpen(t *testing.T) {
	h := ParsedHours{Rules: []HoursRule{
		{Days: []time.Weekday{time.Monday, time.Tuesday}, Spans: []TimeSpan{{Start: 9 * 60, End: 17 * 60}}},
		{Days: []time.Weekday{time.Tuesday}, Closed: true},
		{Days: []time.Weekday{time.Friday}, Spans: []TimeSpan{{Start: 22 * 60, End: 26 * 60}}},
	}}
	// 2026-03-02 is a Monday
	day := func(offset, hour int) time.Time { return time.Date(2026, 3, 2+offset, hour, 0, 0, 0, time.UTC) }

	assert.True(t, h.IsOpen(day(0, 10)))
	assert.False(t, h.IsOpen(day(0, 18)))
	assert.False(t, h.IsOpen(day(1, 10)), "a later closed rule overrides Tuesday")
	assert.True(t, h.IsOpen(day(4, 23)))
	assert.True(t, h.IsOpen(day(5, 1)), "Friday span runs into Saturday")
	assert.False(t, h.IsOpen(day(5, 3)))
	assert.True(t, ParsedHours{AlwaysOpen: true}.IsOpen(day(6, 3)))
}
