package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// PlaceStore is durable storage for places.
type PlaceStore interface {
	// Save inserts or replaces p. Places without a durable category are rejected.
	Save(ctx context.Context, p model.Place) error
	// Delete removes id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// List returns every stored place ordered by creation.
	List(ctx context.Context) ([]model.Place, error)
	Close() error
}

// durable is the subset of categories worth persisting.
const durable = model.CategorySet(model.CategoryStored) | model.CategorySet(model.CategoryCreated)

// Open connects to driver ("sqlite" or "postgres") and runs migrations.
func Open(ctx context.Context, driver, dsn string) (PlaceStore, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLiteStore(ctx, dsn)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, dsn)
	}
	return nil, fmt.Errorf("store: unknown driver %q", driver)
}

// row is the column form of a place shared by both backends.
type row struct {
	id          string
	name        string
	kind        string
	lat, lon    float64
	description string
	properties  string
	categories  int
	transitStop bool
	stopID      string
}

func toRow(p model.Place) (row, error) {
	if p.ID == "" {
		return row{}, fmt.Errorf("save place: empty id")
	}
	cats := p.Categories & durable
	if cats.Empty() {
		return row{}, fmt.Errorf("save place %s: no stored or created category", p.ID)
	}
	props := "{}"
	if len(p.Properties) > 0 {
		b, err := json.Marshal(p.Properties)
		if err != nil {
			return row{}, fmt.Errorf("save place %s: encode properties: %w", p.ID, err)
		}
		props = string(b)
	}
	return row{
		id:          p.ID,
		name:        p.Name,
		kind:        p.Type,
		lat:         p.Latitude,
		lon:         p.Longitude,
		description: p.Description,
		properties:  props,
		categories:  int(cats),
		transitStop: p.TransitStop,
		stopID:      p.StopID,
	}, nil
}

func (r row) place() (model.Place, error) {
	p := model.Place{
		ID:          r.id,
		Name:        r.name,
		Type:        r.kind,
		Latitude:    r.lat,
		Longitude:   r.lon,
		Description: r.description,
		Categories:  model.CategorySet(r.categories) & durable,
		TransitStop: r.transitStop,
		StopID:      r.stopID,
	}
	if r.properties != "" && r.properties != "{}" {
		if err := json.Unmarshal([]byte(r.properties), &p.Properties); err != nil {
			return model.Place{}, fmt.Errorf("place %s: decode properties: %w", r.id, err)
		}
	}
	return p, nil
}
