package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/enrich"
	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/registry"
	"github.com/theoremus-urban-solutions/transitmap/routes"
	"github.com/theoremus-urban-solutions/transitmap/selection"
	"github.com/theoremus-urban-solutions/transitmap/store"
)

var (
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrNoTransit      = errors.New("no transit service configured")
)

// RouteNamer is implemented by transit services that know route display names.
type RouteNamer interface {
	RouteNames(routeID string) (shortName, longName string, ok bool)
}

// Config holds the collaborators and tuning of an Engine. Every collaborator is
// optional: a nil source leaves its section idle, a nil Routes disables route display,
// a nil Camera skips fly-to and a nil Store keeps places in memory only.
type Config struct {
	Sources enrich.Sources
	Routes  routes.TransitService
	Camera  camera.Port
	Store   store.PlaceStore

	NearbyRadiusMeters  float64
	MaxNearby           int
	CameraDebounce      time.Duration
	VehiclePollInterval time.Duration
	SelectZoom          float64
	FitPadding          float64

	Logger         *slog.Logger
	EnrichObserver enrich.Observer
	RouteObserver  routes.Observer
}

// State is what the popup shows for the current selection.
type State struct {
	Selection *selection.Selection `json:"selection"`
	Sections  enrich.Snapshot      `json:"sections"`
	// NextStop is set for vehicle selections on a shown route.
	NextStop *routes.Projection `json:"nextStop,omitempty"`
}

// Engine is the selection and enrichment facade.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	reg      *registry.Registry
	sel      *selection.Machine
	loader   *enrich.Loader
	resolver *routes.Resolver
	guard    *camera.Guard

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes selection changes with loader starts.
	mu       sync.Mutex
	nextStop *routes.Projection
	nextTok  selection.Token

	tmu      sync.Mutex
	tracking map[string]context.CancelFunc
}

// New builds an engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SelectZoom <= 0 {
		cfg.SelectZoom = 16
	}
	if cfg.FitPadding <= 0 {
		cfg.FitPadding = 48
	}
	if cfg.VehiclePollInterval <= 0 {
		cfg.VehiclePollInterval = 30 * time.Second
	}
	port := cfg.Camera
	if port == nil {
		port = nopPort{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sel := selection.New()
	e := &Engine{
		cfg: cfg,
		log: cfg.Logger.With("component", "engine"),
		reg: registry.New(),
		sel: sel,
		loader: enrich.NewLoader(sel, cfg.Sources, enrich.Options{
			NearbyRadiusMeters: cfg.NearbyRadiusMeters,
			MaxNearby:          cfg.MaxNearby,
			Logger:             cfg.Logger,
			Observer:           cfg.EnrichObserver,
		}),
		guard:    camera.NewGuard(port, cfg.CameraDebounce, cfg.Logger),
		ctx:      ctx,
		cancel:   cancel,
		tracking: map[string]context.CancelFunc{},
	}
	if cfg.Routes != nil {
		e.resolver = routes.NewResolver(cfg.Routes, cfg.Logger, cfg.RouteObserver)
	}
	return e
}

type nopPort struct{}

func (nopPort) FlyTo(context.Context, camera.Target) error { return nil }

// Registry returns the place registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Selection returns the selection machine. Its listeners run while the engine holds
// its selection lock and must not call back into the engine.
func (e *Engine) Selection() *selection.Machine { return e.sel }

// Loader returns the enrichment loader.
func (e *Engine) Loader() *enrich.Loader { return e.loader }

// Resolver returns the route resolver, or nil without a transit service.
func (e *Engine) Resolver() *routes.Resolver { return e.resolver }

// Camera returns the camera guard.
func (e *Engine) Camera() *camera.Guard { return e.guard }

// State returns the current selection with its sections.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{Sections: e.loader.Snapshot()}
	if s, ok := e.sel.Current(); ok {
		st.Selection = &s
		if e.nextStop != nil && e.nextTok == s.Token {
			p := *e.nextStop
			st.NextStop = &p
		}
	}
	return st
}

// SelectPlace selects the registered place id, starts its sections and flies to it.
func (e *Engine) SelectPlace(id string) (selection.Selection, error) {
	p, ok := e.reg.Get(id)
	if !ok {
		return selection.Selection{}, fmt.Errorf("select place %s: %w", id, registry.ErrUnknownPlace)
	}

	e.mu.Lock()
	e.sel.SelectPlace(p)
	s, _ := e.sel.Current()
	e.nextStop, e.nextTok = nil, 0
	e.loader.StartLoad(s)
	e.mu.Unlock()

	e.log.Info("place selected", "place", p.ID, "token", s.Token, "origin", p.Origin())
	e.flyForSelection(s.Token, camera.PointTarget(model.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}, e.cfg.SelectZoom))
	return s, nil
}

// SelectVehicle selects a live vehicle of a shown route. When the route has a
// selected branch the vehicle is annotated with its next stop.
func (e *Engine) SelectVehicle(routeID, vehicleID string) (selection.Selection, error) {
	if e.resolver == nil {
		return selection.Selection{}, fmt.Errorf("select vehicle %s: %w", vehicleID, ErrNoTransit)
	}
	v, ok := e.resolver.Vehicle(routeID, vehicleID)
	if !ok {
		return selection.Selection{}, fmt.Errorf("select vehicle %s on %s: %w", vehicleID, routeID, ErrUnknownVehicle)
	}
	var next *routes.Projection
	if rt, ok := e.resolver.Route(routeID); ok {
		if b, ok := rt.SelectedBranch(); ok {
			if p, ok := routes.ProjectOntoBranch(b, v.Latitude, v.Longitude); ok {
				next = &p
			}
		}
	}

	e.mu.Lock()
	tok := e.sel.SelectVehicle(v)
	s, _ := e.sel.Current()
	e.nextStop, e.nextTok = next, tok
	e.loader.StartLoad(s)
	e.mu.Unlock()

	e.log.Info("vehicle selected", "vehicle", v.ID, "route", routeID, "token", tok)
	e.flyForSelection(tok, camera.PointTarget(model.Coordinate{Latitude: v.Latitude, Longitude: v.Longitude}, e.cfg.SelectZoom))
	return s, nil
}

// ClearSelection drops the selection and resets every section.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	e.sel.Clear()
	e.nextStop, e.nextTok = nil, 0
	e.loader.Reset()
	e.mu.Unlock()
}

// HandleMapClick handles a click on the map background. It reports whether a
// selection was dropped.
func (e *Engine) HandleMapClick() bool {
	if _, ok := e.sel.Current(); !ok {
		return false
	}
	e.ClearSelection()
	return true
}

// RetrySection retries a failed section of the current selection.
func (e *Engine) RetrySection(kind enrich.SectionKind) bool {
	return e.loader.RetrySection(kind)
}

// HandleCameraMove forwards a renderer camera event to the guard.
func (e *Engine) HandleCameraMove(ev camera.MoveEvent) {
	e.guard.HandleMove(ev)
}

// flyForSelection moves the camera in the background while tok is still current.
func (e *Engine) flyForSelection(tok selection.Token, target camera.Target) {
	e.fly(func() bool { return e.sel.IsCurrent(tok) }, target)
}

func (e *Engine) fly(still func() bool, target camera.Target) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if !still() {
			return
		}
		if err := e.guard.FlyTo(e.ctx, target); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn("fly to failed", "err", err)
		}
	}()
}

// Wait blocks until background camera moves and section fetches have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
	e.loader.Wait()
}

// Close stops tracking, cancels in-flight work and waits for it.
func (e *Engine) Close() {
	e.cancel()
	e.tmu.Lock()
	for id, stop := range e.tracking {
		stop()
		delete(e.tracking, id)
	}
	e.tmu.Unlock()
	e.loader.Close()
	e.guard.Close()
	e.Wait()
}
