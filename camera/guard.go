package camera

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// DefaultDebounce is the user gesture debounce used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// View is a camera position.
type View struct {
	Center  model.Coordinate `json:"center"`
	Zoom    float64          `json:"zoom"`
	Bearing float64          `json:"bearing,omitempty"`
	Pitch   float64          `json:"pitch,omitempty"`
}

// Target is a fly-to request. Bounds, when set, wins over Center and Zoom.
type Target struct {
	Center  *model.Coordinate    `json:"center,omitempty"`
	Zoom    float64              `json:"zoom,omitempty"`
	Bounds  *[2]model.Coordinate `json:"bounds,omitempty"`
	Padding float64              `json:"padding,omitempty"`
}

// BoundsTarget fits the camera to a south-west/north-east box.
func BoundsTarget(sw, ne model.Coordinate, padding float64) Target {
	return Target{Bounds: &[2]model.Coordinate{sw, ne}, Padding: padding}
}

// PointTarget centers the camera on c.
func PointTarget(c model.Coordinate, zoom float64) Target {
	return Target{Center: &c, Zoom: zoom}
}

// MoveEvent is a camera change reported by the renderer.
type MoveEvent struct {
	View           View `json:"view"`
	UserOriginated bool `json:"userOriginated"`
}

// Port moves the map camera. FlyTo returns after the animation has completed.
type Port interface {
	FlyTo(ctx context.Context, target Target) error
}

// Listener receives camera views that should be handled by the app.
type Listener func(View)

// Guard filters camera events caused by programmatic moves.
type Guard struct {
	port     Port
	debounce time.Duration
	log      *slog.Logger

	mu           sync.Mutex
	programmatic int
	// raw is the last reported position; published only changes when listeners are told.
	raw          View
	published    View
	pending      View
	timer        *time.Timer
	generation   uint64
	dropped      int
	closed       bool

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewGuard returns a guard driving port. A debounce of zero uses DefaultDebounce.
func NewGuard(port Port, debounce time.Duration, logger *slog.Logger) *Guard {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		port:      port,
		debounce:  debounce,
		log:       logger.With("component", "camera"),
		listeners: map[int]Listener{},
	}
}

// FlyTo moves the camera through the port as a programmatic move.
func (g *Guard) FlyTo(ctx context.Context, target Target) error {
	return g.WithProgrammaticMove(ctx, func(ctx context.Context) error {
		return g.port.FlyTo(ctx, target)
	})
}

// WithProgrammaticMove runs fn with the programmatic flag raised. Moves may overlap; the
// flag stays up until the last one returns.
func (g *Guard) WithProgrammaticMove(ctx context.Context, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	g.programmatic++
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.programmatic--
		g.mu.Unlock()
	}()
	return fn(ctx)
}

// IsProgrammatic reports whether a programmatic move is running.
func (g *Guard) IsProgrammatic() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.programmatic > 0
}

// HandleMove takes a camera event from the renderer.
func (g *Guard) HandleMove(e MoveEvent) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.raw = e.View

	if e.UserOriginated {
		g.pending = e.View
		g.generation++
		gen := g.generation
		if g.timer != nil {
			g.timer.Stop()
		}
		g.timer = time.AfterFunc(g.debounce, func() { g.flush(gen) })
		g.mu.Unlock()
		return
	}

	if g.programmatic > 0 {
		g.dropped++
		g.mu.Unlock()
		g.log.Debug("camera event suppressed during programmatic move")
		return
	}
	g.published = e.View
	g.mu.Unlock()
	g.notify(e.View)
}

func (g *Guard) flush(gen uint64) {
	g.mu.Lock()
	if g.closed || gen != g.generation {
		g.mu.Unlock()
		return
	}
	v := g.pending
	g.published = v
	g.timer = nil
	g.mu.Unlock()
	g.notify(v)
}

// View returns the last position handed to listeners. Events suppressed during a
// programmatic move and user gestures still inside the debounce window are not included.
func (g *Guard) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.published
}

// Raw returns the last position reported by the renderer, filtered or not.
func (g *Guard) Raw() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.raw
}

// Dropped returns how many events were suppressed.
func (g *Guard) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// Subscribe registers l and returns a function that removes it.
func (g *Guard) Subscribe(l Listener) func() {
	g.lmu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = l
	g.lmu.Unlock()
	return func() {
		g.lmu.Lock()
		delete(g.listeners, id)
		g.lmu.Unlock()
	}
}

// Close stops a pending debounce. Events after Close are ignored.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Guard) notify(v View) {
	g.lmu.Lock()
	ls := make([]Listener, 0, len(g.listeners))
	for _, l := range g.listeners {
		ls = append(ls, l)
	}
	g.lmu.Unlock()
	for _, l := range ls {
		l(v)
	}
}
