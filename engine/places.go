package engine

import (
	"context"
	"fmt"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/registry"
)

// Places lists registered places, all visible ones when category is zero.
func (e *Engine) Places(c model.Category) []model.Place {
	if c == 0 {
		return e.reg.Visible()
	}
	return e.reg.ListByCategory(c)
}

// SetSearchResults replaces the current search results.
func (e *Engine) SetSearchResults(places []model.Place) []model.Place {
	out := e.reg.ReplaceSearchResults(places)
	e.dropSelectionIfGone()
	return out
}

// LoadStoredPlaces hydrates the registry from the store.
func (e *Engine) LoadStoredPlaces(ctx context.Context) (int, error) {
	if e.cfg.Store == nil {
		return 0, nil
	}
	places, err := e.cfg.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stored places: %w", err)
	}
	n := 0
	for _, p := range places {
		if _, err := e.reg.Upsert(p); err != nil {
			e.log.Warn("skipping stored place", "place", p.ID, "err", err)
			continue
		}
		n++
	}
	e.log.Info("stored places loaded", "count", n)
	return n, nil
}

// SavePlace promotes id to the stored category and persists it. The promotion is
// undone when the store rejects it.
func (e *Engine) SavePlace(ctx context.Context, id string) (model.Place, error) {
	before, ok := e.reg.Get(id)
	if !ok {
		return model.Place{}, fmt.Errorf("save place %s: %w", id, registry.ErrUnknownPlace)
	}
	p, err := e.reg.Promote(id, model.CategoryStored)
	if err != nil {
		return model.Place{}, err
	}
	if err := e.persist(ctx, p); err != nil {
		if !before.Categories.Has(model.CategoryStored) {
			_, _ = e.reg.Demote(id, model.CategoryStored)
		}
		return model.Place{}, err
	}
	return p, nil
}

// UnsavePlace removes the stored category. A place left with no category leaves the
// registry.
func (e *Engine) UnsavePlace(ctx context.Context, id string) (model.Place, error) {
	p, err := e.reg.Demote(id, model.CategoryStored)
	if err != nil {
		return model.Place{}, err
	}
	if err := e.persist(ctx, p); err != nil {
		return p, err
	}
	e.dropSelectionIfGone()
	return p, nil
}

// CreatePlace adds a user-created place and persists it.
func (e *Engine) CreatePlace(ctx context.Context, name string, lat, lon float64, description string) (model.Place, error) {
	p := e.reg.Create(name, lat, lon, description)
	if err := e.persist(ctx, p); err != nil {
		e.reg.Remove(p.ID)
		return model.Place{}, err
	}
	e.log.Info("place created", "place", p.ID, "name", name)
	return p, nil
}

// DeletePlace deletes id according to its origin: a created place is removed
// entirely, a stored place is unsaved and a search result is dropped from the results.
func (e *Engine) DeletePlace(ctx context.Context, id string) error {
	p, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("delete place %s: %w", id, registry.ErrUnknownPlace)
	}
	var err error
	switch p.Origin() {
	case model.CategoryCreated:
		e.reg.Remove(id)
		if e.cfg.Store != nil {
			err = e.cfg.Store.Delete(ctx, id)
		}
	case model.CategoryStored:
		_, err = e.UnsavePlace(ctx, id)
	default:
		_, err = e.reg.Demote(id, model.CategorySearch)
	}
	e.dropSelectionIfGone()
	return err
}

// persist writes p when it still carries a durable category and deletes it otherwise.
func (e *Engine) persist(ctx context.Context, p model.Place) error {
	if e.cfg.Store == nil {
		return nil
	}
	if p.Categories.Has(model.CategoryStored) || p.Categories.Has(model.CategoryCreated) {
		return e.cfg.Store.Save(ctx, p)
	}
	return e.cfg.Store.Delete(ctx, p.ID)
}

// dropSelectionIfGone clears a place selection whose place left the registry.
func (e *Engine) dropSelectionIfGone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sel.Current()
	if !ok || s.Place == nil {
		return
	}
	if _, ok := e.reg.Get(s.Place.ID); ok {
		return
	}
	if e.sel.ClearIf(s.Token) {
		e.loader.Reset()
	}
}
