package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

func savedPlace(id string) model.Place {
	return model.Place{
		ID:         id,
		Name:       "Place " + id,
		Type:       "cafe",
		Latitude:   47.6097,
		Longitude:  -122.3422,
		Properties: map[string]string{"address": "85 Pike St"},
		Categories: model.CategorySet(0).With(model.CategoryStored).With(model.CategorySearch),
	}
}

// exercise runs the shared PlaceStore contract against s.
func exercise(t *testing.T, s PlaceStore) {
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, savedPlace("a")))
	created := model.Place{ID: "b", Name: "Pin", Latitude: 1, Longitude: 2,
		Categories: model.CategorySet(0).With(model.CategoryCreated), TransitStop: true, StopID: "1_75403"}
	require.NoError(t, s.Save(ctx, created))

	places, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "a", places[0].ID)
	assert.False(t, places[0].Categories.Has(model.CategorySearch), "search tag is not persisted")
	assert.True(t, places[0].Categories.Has(model.CategoryStored))
	assert.Equal(t, "85 Pike St", places[0].Property("address"))
	assert.Equal(t, created, places[1])

	renamed := savedPlace("a")
	renamed.Name = "Renamed"
	require.NoError(t, s.Save(ctx, renamed))
	places, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Renamed", places[0].Name)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))
	places, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "b", places[0].ID)

	search := savedPlace("c")
	search.Categories = model.CategorySet(0).With(model.CategorySearch)
	assert.Error(t, s.Save(ctx, search))
	assert.Error(t, s.Save(ctx, model.Place{Categories: search.Categories.With(model.CategoryStored)}))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "places.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.db")
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, savedPlace("a")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	places, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Place a", places[0].Name)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TRANSITMAP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRANSITMAP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, err = s.pool.Exec(ctx, `TRUNCATE places`)
	require.NoError(t, err)
	exercise(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "")
	assert.Error(t, err)
}
