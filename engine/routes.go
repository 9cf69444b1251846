package engine

import (
	"context"
	"fmt"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/model"
)

// ShowRoute loads routeID, starts tracking its vehicles and fits the camera to the
// selected branch.
func (e *Engine) ShowRoute(ctx context.Context, routeID string) (model.Route, error) {
	if e.resolver == nil {
		return model.Route{}, fmt.Errorf("show route %s: %w", routeID, ErrNoTransit)
	}
	if namer, ok := e.cfg.Routes.(RouteNamer); ok {
		if short, long, ok := namer.RouteNames(routeID); ok {
			e.resolver.SetRouteNames(routeID, short, long)
		}
	}
	rt, err := e.resolver.LoadRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	e.startTracking(routeID)
	e.fitBranch(routeID, rt)
	return rt, nil
}

// SelectBranch selects a branch of a shown route, clamping the index, and fits the
// camera to it.
func (e *Engine) SelectBranch(routeID string, index int) (model.Route, error) {
	if e.resolver == nil {
		return model.Route{}, fmt.Errorf("select branch of %s: %w", routeID, ErrNoTransit)
	}
	if _, err := e.resolver.SelectBranch(routeID, index); err != nil {
		return model.Route{}, err
	}
	rt, _ := e.resolver.Route(routeID)
	e.fitBranch(routeID, rt)
	return rt, nil
}

// Route returns a shown route, or the error its load ended with.
func (e *Engine) Route(routeID string) (model.Route, error) {
	if e.resolver == nil {
		return model.Route{}, fmt.Errorf("route %s: %w", routeID, ErrNoTransit)
	}
	if rt, ok := e.resolver.Route(routeID); ok {
		return rt, nil
	}
	if err := e.resolver.RouteError(routeID); err != nil {
		return model.Route{}, err
	}
	return model.Route{}, fmt.Errorf("route %s: %w", routeID, model.ErrNotFound)
}

// RouteVehicles returns the vehicles of routeID reconciled against its selected branch.
func (e *Engine) RouteVehicles(routeID string) []model.Vehicle {
	if e.resolver == nil {
		return nil
	}
	return e.resolver.VehiclesForSelectedBranch(routeID)
}

// HideRoute stops tracking routeID and forgets it.
func (e *Engine) HideRoute(routeID string) {
	e.tmu.Lock()
	if stop, ok := e.tracking[routeID]; ok {
		stop()
		delete(e.tracking, routeID)
	}
	e.tmu.Unlock()
	if e.resolver != nil {
		e.resolver.Unload(routeID)
	}
}

func (e *Engine) startTracking(routeID string) {
	e.tmu.Lock()
	defer e.tmu.Unlock()
	if _, ok := e.tracking[routeID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.tracking[routeID] = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.resolver.Track(ctx, routeID, e.cfg.VehiclePollInterval)
	}()
}

func (e *Engine) fitBranch(routeID string, rt model.Route) {
	b, ok := rt.SelectedBranch()
	if !ok {
		return
	}
	sw, ne, ok := b.Bounds()
	if !ok {
		return
	}
	idx := rt.SelectedBranchIndex
	e.fly(func() bool {
		cur, ok := e.resolver.Route(routeID)
		return ok && cur.SelectedBranchIndex == idx
	}, camera.BoundsTarget(sw, ne, e.cfg.FitPadding))
}
