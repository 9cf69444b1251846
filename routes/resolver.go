package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

var ErrRouteNotLoaded = errors.New("route not loaded")

// TransitService is the route-level part of the transit collaborator.
type TransitService interface {
	RouteBranches(ctx context.Context, routeID string) ([]model.Branch, error)
	RouteSchedule(ctx context.Context, routeID string) ([]model.ScheduleEntry, error)
	VehiclesForRoute(ctx context.Context, routeID string) ([]model.Vehicle, error)
}

// Observer receives route outcomes. metrics.RouteObserver implements it.
type Observer interface {
	RouteLoaded(routeID string, err error)
	VehiclesRefreshed(routeID string, count int, err error)
}

type nopObserver struct{}

func (nopObserver) RouteLoaded(string, error)            {}
func (nopObserver) VehiclesRefreshed(string, int, error) {}

// EventKind describes a route change.
type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventFailed   EventKind = "failed"
	EventBranch   EventKind = "branch"
	EventVehicles EventKind = "vehicles"
	EventUnloaded EventKind = "unloaded"
)

// Event is delivered to subscribers after a route changes.
type Event struct {
	RouteID string
	Kind    EventKind
	Err     error
}

// Listener observes route changes. Events from concurrent refreshes may arrive out of
// order, so a listener should read the resolver for the current state.
type Listener func(Event)

type routeState struct {
	route       model.Route
	loaded      bool
	err         error
	vehicles    []model.Vehicle
	vehiclesErr error
	vehiclesAt  time.Time
}

// Resolver loads routes and keeps their vehicles.
type Resolver struct {
	svc   TransitService
	log   *slog.Logger
	obs   Observer
	group singleflight.Group

	mu     sync.RWMutex
	routes map[string]*routeState

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewResolver returns a resolver backed by svc. logger and obs may be nil.
func NewResolver(svc TransitService, logger *slog.Logger, obs Observer) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Resolver{
		svc:       svc,
		log:       logger.With("component", "routes"),
		obs:       obs,
		routes:    map[string]*routeState{},
		listeners: map[int]Listener{},
	}
}

// LoadRoute fetches branches and schedule once per route id. Later calls return the
// loaded route. Concurrent calls share one fetch.
func (r *Resolver) LoadRoute(ctx context.Context, routeID string) (model.Route, error) {
	if rt, ok := r.Route(routeID); ok {
		return rt, nil
	}
	return r.fetch(ctx, routeID)
}

// Reload fetches routeID again. The selected branch index is kept and clamped into the
// new branch set.
func (r *Resolver) Reload(ctx context.Context, routeID string) (model.Route, error) {
	return r.fetch(ctx, routeID)
}

func (r *Resolver) fetch(ctx context.Context, routeID string) (model.Route, error) {
	v, err, _ := r.group.Do(routeID, func() (any, error) {
		branches, err := r.svc.RouteBranches(ctx, routeID)
		if err != nil {
			err = fmt.Errorf("route %s branches: %w", routeID, err)
			r.mu.Lock()
			st := r.stateLocked(routeID)
			st.err = err
			r.mu.Unlock()
			r.obs.RouteLoaded(routeID, err)
			r.log.Warn("route load failed", "route", routeID, "err", err)
			r.notify(Event{RouteID: routeID, Kind: EventFailed, Err: err})
			return nil, err
		}
		schedule, serr := r.svc.RouteSchedule(ctx, routeID)
		if serr != nil {
			r.log.Warn("route schedule unavailable", "route", routeID, "err", serr)
			schedule = nil
		}
		sort.SliceStable(schedule, func(i, j int) bool {
			return schedule[i].DepartureTime.Before(schedule[j].DepartureTime)
		})

		r.mu.Lock()
		st := r.stateLocked(routeID)
		prev := st.route.SelectedBranchIndex
		st.route = model.Route{
			ID:                  routeID,
			ShortName:           st.route.ShortName,
			LongName:            st.route.LongName,
			Branches:            branches,
			SelectedBranchIndex: model.ClampBranchIndex(prev, len(branches)),
			Schedule:            schedule,
		}
		st.loaded = true
		st.err = nil
		rt := copyRoute(st.route)
		r.mu.Unlock()

		r.obs.RouteLoaded(routeID, nil)
		r.log.Info("route loaded", "route", routeID, "branches", len(branches), "schedule", len(schedule))
		r.notify(Event{RouteID: routeID, Kind: EventLoaded})
		return rt, nil
	})
	if err != nil {
		return model.Route{}, err
	}
	return copyRoute(v.(model.Route)), nil
}

func (r *Resolver) stateLocked(routeID string) *routeState {
	st, ok := r.routes[routeID]
	if !ok {
		st = &routeState{route: model.Route{ID: routeID}}
		r.routes[routeID] = st
	}
	return st
}

// SetRouteNames attaches display names to a route, loaded or not.
func (r *Resolver) SetRouteNames(routeID, shortName, longName string) {
	r.mu.Lock()
	st := r.stateLocked(routeID)
	st.route.ShortName = shortName
	st.route.LongName = longName
	r.mu.Unlock()
}

// Route returns a copy of a loaded route.
func (r *Resolver) Route(routeID string) (model.Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.routes[routeID]
	if !ok || !st.loaded {
		return model.Route{}, false
	}
	return copyRoute(st.route), true
}

// RouteError returns the last load error of routeID, or nil.
func (r *Resolver) RouteError(routeID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.routes[routeID]; ok {
		return st.err
	}
	return nil
}

// Loaded returns the ids of loaded routes, sorted.
func (r *Resolver) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.routes))
	for id, st := range r.routes {
		if st.loaded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SelectBranch selects a branch of a loaded route. Out of range indexes clamp to the
// nearest valid index. It returns the index actually selected.
func (r *Resolver) SelectBranch(routeID string, index int) (int, error) {
	r.mu.Lock()
	st, ok := r.routes[routeID]
	if !ok || !st.loaded {
		r.mu.Unlock()
		return 0, fmt.Errorf("select branch %d of %s: %w", index, routeID, ErrRouteNotLoaded)
	}
	idx := model.ClampBranchIndex(index, len(st.route.Branches))
	changed := idx != st.route.SelectedBranchIndex
	st.route.SelectedBranchIndex = idx
	r.mu.Unlock()
	if changed {
		r.notify(Event{RouteID: routeID, Kind: EventBranch})
	}
	return idx, nil
}

// RefreshVehicles fetches the live vehicles of a loaded routeID. On failure the previous
// list is kept and the error is recorded for this route only. A result that arrives after
// the route was unloaded or replaced is dropped.
func (r *Resolver) RefreshVehicles(ctx context.Context, routeID string) error {
	r.mu.RLock()
	st, ok := r.routes[routeID]
	r.mu.RUnlock()
	if !ok || !st.loaded {
		return fmt.Errorf("vehicles for %s: %w", routeID, ErrRouteNotLoaded)
	}

	vehicles, err := r.svc.VehiclesForRoute(ctx, routeID)
	r.mu.Lock()
	if r.routes[routeID] != st {
		r.mu.Unlock()
		r.log.Debug("vehicles for unloaded route dropped", "route", routeID)
		return fmt.Errorf("vehicles for %s: %w", routeID, ErrRouteNotLoaded)
	}
	if err != nil {
		err = fmt.Errorf("vehicles for %s: %w", routeID, err)
		st.vehiclesErr = err
	} else {
		st.vehicles = vehicles
		st.vehiclesErr = nil
		st.vehiclesAt = time.Now()
	}
	r.mu.Unlock()

	r.obs.VehiclesRefreshed(routeID, len(vehicles), err)
	if err != nil {
		r.log.Warn("vehicle refresh failed", "route", routeID, "err", err)
		return err
	}
	r.notify(Event{RouteID: routeID, Kind: EventVehicles})
	return nil
}

// Vehicles returns every live vehicle of routeID.
func (r *Resolver) Vehicles(routeID string) []model.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.routes[routeID]
	if !ok {
		return nil
	}
	return append([]model.Vehicle(nil), st.vehicles...)
}

// Vehicle finds a vehicle of routeID by id.
func (r *Resolver) Vehicle(routeID, vehicleID string) (model.Vehicle, bool) {
	for _, v := range r.Vehicles(routeID) {
		if v.ID == vehicleID {
			return v, true
		}
	}
	return model.Vehicle{}, false
}

// VehiclesError returns the last vehicle refresh error of routeID.
func (r *Resolver) VehiclesError(routeID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.routes[routeID]; ok {
		return st.vehiclesErr
	}
	return nil
}

// VehiclesForSelectedBranch reconciles the route's vehicles against its selected branch.
func (r *Resolver) VehiclesForSelectedBranch(routeID string) []model.Vehicle {
	r.mu.RLock()
	st, ok := r.routes[routeID]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	vehicles := append([]model.Vehicle(nil), st.vehicles...)
	name := ""
	if b, ok := st.route.SelectedBranch(); ok {
		name = b.Name
	}
	r.mu.RUnlock()
	return ReconcileVehiclesToBranch(vehicles, name)
}

// Unload forgets routeID and its vehicles.
func (r *Resolver) Unload(routeID string) {
	r.mu.Lock()
	_, ok := r.routes[routeID]
	delete(r.routes, routeID)
	r.mu.Unlock()
	if ok {
		r.notify(Event{RouteID: routeID, Kind: EventUnloaded})
	}
}

// Track refreshes the vehicles of routeID every interval until ctx is done. Refresh
// errors are logged and tracking continues.
func (r *Resolver) Track(ctx context.Context, routeID string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	_ = r.RefreshVehicles(ctx, routeID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.RefreshVehicles(ctx, routeID)
		}
	}
}

// Subscribe registers l and returns a function that removes it.
func (r *Resolver) Subscribe(l Listener) func() {
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

func (r *Resolver) notify(e Event) {
	r.lmu.Lock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.lmu.Unlock()
	for _, l := range ls {
		l(e)
	}
}

func copyRoute(rt model.Route) model.Route {
	out := rt
	out.Branches = append([]model.Branch(nil), rt.Branches...)
	out.Schedule = append([]model.ScheduleEntry(nil), rt.Schedule...)
	return out
}
