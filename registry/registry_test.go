package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

func searchHit(id string, lat, lon float64) model.Place {
	return model.Place{
		ID:         id,
		Name:       "Place " + id,
		Latitude:   lat,
		Longitude:  lon,
		Categories: model.CategorySet(0).With(model.CategorySearch),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	r := New()
	p := searchHit("a", 47.6, -122.3)

	_, err := r.Upsert(p)
	require.NoError(t, err)
	_, err = r.Upsert(p)
	require.NoError(t, err)

	assert.Len(t, r.Visible(), 1)
	assert.Len(t, r.ListByCategory(model.CategorySearch), 1)
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	_, err := New().Upsert(model.Place{Name: "nameless"})
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestUpsertRequiresCategoryForNewPlace(t *testing.T) {
	r := New()
	untagged := searchHit("a", 1, 2)
	untagged.Categories = 0

	_, err := r.Upsert(untagged)
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Empty(t, r.Visible())

	_, err = r.Upsert(searchHit("a", 1, 2))
	require.NoError(t, err)
	untagged.Name = "Renamed"
	got, err := r.Upsert(untagged)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, model.CategorySearch, got.Origin())
	assert.Len(t, r.ListByCategory(model.CategorySearch), 1)
}

func TestUpsertKeepsExistingCategories(t *testing.T) {
	r := New()
	stored := searchHit("a", 1, 2)
	stored.Categories = model.CategorySet(0).With(model.CategoryStored)
	_, err := r.Upsert(stored)
	require.NoError(t, err)

	got, err := r.Upsert(searchHit("a", 1, 2))
	require.NoError(t, err)
	assert.True(t, got.Categories.Has(model.CategoryStored))
	assert.True(t, got.Categories.Has(model.CategorySearch))
}

func TestPromotionIsNonDestructive(t *testing.T) {
	r := New()
	_, err := r.Upsert(searchHit("cafe", 47.6062, -122.3321))
	require.NoError(t, err)

	p, err := r.Promote("cafe", model.CategoryStored)
	require.NoError(t, err)

	assert.Equal(t, "cafe", p.ID)
	assert.Equal(t, 47.6062, p.Latitude)
	assert.Equal(t, -122.3321, p.Longitude)
	assert.Equal(t, model.CategoryStored, p.Origin())

	// Appears once in each matching list, once in the union.
	assert.Len(t, r.ListByCategory(model.CategorySearch), 1)
	assert.Len(t, r.ListByCategory(model.CategoryStored), 1)
	assert.Len(t, r.Visible(), 1)
}

func TestPromoteUnknown(t *testing.T) {
	_, err := New().Promote("missing", model.CategoryStored)
	assert.ErrorIs(t, err, ErrUnknownPlace)

	r := New()
	_, _ = r.Upsert(searchHit("a", 0, 0))
	_, err = r.Promote("a", model.Category(64))
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestRemoveDropsEveryCategory(t *testing.T) {
	r := New()
	_, _ = r.Upsert(searchHit("a", 0, 0))
	_, _ = r.Promote("a", model.CategoryStored)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	for _, c := range model.AllCategories {
		assert.Empty(t, r.ListByCategory(c), c.String())
	}
	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestDemoteRemovesWhenNoCategoryLeft(t *testing.T) {
	r := New()
	_, _ = r.Upsert(searchHit("a", 0, 0))
	_, _ = r.Promote("a", model.CategoryStored)

	p, err := r.Demote("a", model.CategoryStored)
	require.NoError(t, err)
	assert.Equal(t, model.CategorySearch, p.Origin())

	_, err = r.Demote("a", model.CategorySearch)
	require.NoError(t, err)
	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestReplaceSearchResultsKeepsPromoted(t *testing.T) {
	r := New()
	r.ReplaceSearchResults([]model.Place{searchHit("a", 0, 0), searchHit("b", 1, 1)})
	_, err := r.Promote("a", model.CategoryStored)
	require.NoError(t, err)

	r.ReplaceSearchResults([]model.Place{searchHit("c", 2, 2)})

	search := r.ListByCategory(model.CategorySearch)
	require.Len(t, search, 1)
	assert.Equal(t, "c", search[0].ID)

	a, ok := r.Get("a")
	require.True(t, ok)
	assert.False(t, a.Categories.Has(model.CategorySearch))
	assert.True(t, a.Categories.Has(model.CategoryStored))

	_, ok = r.Get("b")
	assert.False(t, ok)
}

func TestCreateAssignsID(t *testing.T) {
	r := New()
	p1 := r.Create("Pin", 1, 2, "")
	p2 := r.Create("Pin", 1, 2, "")

	assert.NotEmpty(t, p1.ID)
	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Equal(t, model.CategoryCreated, p1.Origin())
	assert.Len(t, r.ListByCategory(model.CategoryCreated), 2)
}

func TestSubscribe(t *testing.T) {
	r := New()
	var got []ChangeKind
	unsubscribe := r.Subscribe(func(c Change) { got = append(got, c.Kind) })

	_, _ = r.Upsert(searchHit("a", 0, 0))
	_, _ = r.Promote("a", model.CategoryStored)
	r.Remove("a")
	unsubscribe()
	_, _ = r.Upsert(searchHit("b", 0, 0))

	assert.Equal(t, []ChangeKind{ChangeUpserted, ChangePromoted, ChangeRemoved}, got)
}

func TestReturnedPlacesAreCopies(t *testing.T) {
	r := New()
	p := searchHit("a", 0, 0)
	p.Properties = map[string]string{"k": "v"}
	_, _ = r.Upsert(p)

	got, _ := r.Get("a")
	got.Properties["k"] = "changed"

	again, _ := r.Get("a")
	assert.Equal(t, "v", again.Properties["k"])
}
