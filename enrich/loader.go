package enrich

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/selection"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// Options tunes the loader.
type Options struct {
	NearbyRadiusMeters float64
	MaxNearby          int
	Logger             *slog.Logger
	Observer           Observer
	// Now evaluates opening hours; nil means time.Now.
	Now                func() time.Time
}

// Listener receives a snapshot after every change, one at a time and in Version order.
// It may read the loader but must not start, reset or retry.
type Listener func(Snapshot)

type fetchFunc func(ctx context.Context, p model.Place) (any, error)

type slot struct {
	status  Status
	data    any
	errKind ErrorKind
	retries int
	// attempt identifies the fetch whose result may land in this slot.
	attempt int
}

// Loader runs the sections of the active selection.
type Loader struct {
	sel  *selection.Machine
	src  Sources
	opts Options
	log  *slog.Logger
	obs  Observer

	mu      sync.Mutex
	token   selection.Token
	place   *model.Place
	ctx     context.Context
	cancel  context.CancelFunc
	slots   map[SectionKind]*slot
	address Address
	version uint64

	wg sync.WaitGroup

	// dmu serializes a change with its delivery so listeners see snapshots in Version
	// order. It is taken before mu.
	dmu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewLoader builds a loader that checks tokens against sel.
func NewLoader(sel *selection.Machine, src Sources, opts Options) *Loader {
	if opts.NearbyRadiusMeters <= 0 {
		opts.NearbyRadiusMeters = 250
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	l := &Loader{
		sel:       sel,
		src:       src,
		opts:      opts,
		log:       log.With("component", "enrich"),
		obs:       obs,
		listeners: map[int]Listener{},
	}
	l.resetLocked()
	return l
}

func (l *Loader) fetcher(kind SectionKind) fetchFunc {
	switch kind {
	case SectionTransit:
		return l.fetchTransit
	case SectionHours:
		return l.fetchHours
	case SectionNearby:
		return l.fetchNearby
	case SectionPhotos:
		return l.fetchPhotos
	}
	return nil
}

func (l *Loader) available(kind SectionKind) bool {
	switch kind {
	case SectionTransit:
		return l.src.Transit != nil
	case SectionHours:
		return l.src.POI != nil
	case SectionNearby:
		return l.src.Nearby != nil
	case SectionPhotos:
		return l.src.Photos != nil
	}
	return false
}

// ApplicableSections returns the sections a selection starts. A transit stop only loads
// transit; any other place loads hours, nearby and photos, plus transit when it links a
// stop. Vehicles load nothing.
func ApplicableSections(s selection.Selection) []SectionKind {
	if s.Kind != selection.KindPlace || s.Place == nil {
		return nil
	}
	if s.Place.IsTransitStop() {
		return []SectionKind{SectionTransit}
	}
	kinds := []SectionKind{SectionHours, SectionNearby, SectionPhotos}
	if s.Place.LinkedStopID() != "" {
		kinds = append(kinds, SectionTransit)
	}
	return kinds
}

// StartLoad resets every section and starts the ones applicable to s.
func (l *Loader) StartLoad(s selection.Selection) {
	l.dmu.Lock()
	defer l.dmu.Unlock()
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.resetLocked()
	l.token = s.Token
	l.ctx, l.cancel = context.WithCancel(context.Background())

	type job struct {
		kind    SectionKind
		attempt int
	}
	var jobs []job
	var place model.Place
	if s.Kind == selection.KindPlace && s.Place != nil {
		place = s.Place.Clone()
		l.place = &place
		for _, kind := range ApplicableSections(s) {
			if !l.available(kind) {
				continue
			}
			sl := l.slots[kind]
			sl.status = StatusLoading
			sl.attempt++
			jobs = append(jobs, job{kind: kind, attempt: sl.attempt})
		}
	}
	resolveAddress := false
	if l.place != nil {
		switch {
		case strings.TrimSpace(place.Property("address")) != "":
			l.address = Address{Status: AddressResolved, Text: place.Property("address"), Name: place.Name}
		case l.src.Geocoder == nil:
			l.address = Address{Status: AddressFallback, Text: utils.FormatCoordinates(place.Latitude, place.Longitude)}
		default:
			l.address = Address{Status: AddressLoading}
			resolveAddress = true
		}
	}
	tok, ctx := l.token, l.ctx
	snap := l.snapshotLocked()
	l.unlockAndNotify(snap)

	l.log.Debug("start load", "token", tok, "kind", s.Kind, "sections", len(jobs))
	for _, j := range jobs {
		l.launch(ctx, tok, j.kind, j.attempt, place)
	}
	if resolveAddress {
		l.launchAddress(ctx, tok, place)
	}
}

// Reset returns every section to idle and cancels in-flight work.
func (l *Loader) Reset() {
	l.dmu.Lock()
	defer l.dmu.Unlock()
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.resetLocked()
	l.token = 0
	snap := l.snapshotLocked()
	l.unlockAndNotify(snap)
}

// RetrySection restarts kind. It is a no-op, returning false, unless the section is in
// error under the current selection token.
func (l *Loader) RetrySection(kind SectionKind) bool {
	l.dmu.Lock()
	defer l.dmu.Unlock()
	l.mu.Lock()
	sl, ok := l.slots[kind]
	if !ok || sl.status != StatusError || l.place == nil || !l.sel.IsCurrent(l.token) {
		l.mu.Unlock()
		l.log.Debug("retry ignored", "section", kind)
		return false
	}
	sl.status = StatusLoading
	sl.data = nil
	sl.errKind = ErrorKindNone
	sl.retries++
	sl.attempt++
	tok, ctx, attempt, place := l.token, l.ctx, sl.attempt, l.place.Clone()
	snap := l.snapshotLocked()
	l.unlockAndNotify(snap)

	l.log.Info("retry section", "section", kind, "token", tok, "retry", snap.RetryCount(kind))
	l.launch(ctx, tok, kind, attempt, place)
	return true
}

func (l *Loader) launch(ctx context.Context, tok selection.Token, kind SectionKind, attempt int, p model.Place) {
	fetch := l.fetcher(kind)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		data, err := fetch(ctx, p)
		l.apply(tok, kind, attempt, data, err)
	}()
}

func (l *Loader) apply(tok selection.Token, kind SectionKind, attempt int, data any, err error) {
	l.dmu.Lock()
	defer l.dmu.Unlock()
	l.mu.Lock()
	sl := l.slots[kind]
	if tok != l.token || !l.sel.IsCurrent(tok) || sl.attempt != attempt || sl.status != StatusLoading {
		l.mu.Unlock()
		l.obs.StaleDiscarded(kind)
		l.log.Debug("stale section result discarded", "section", kind, "token", tok)
		return
	}
	if err != nil {
		sl.status = StatusError
		sl.data = nil
		sl.errKind = Classify(err)
	} else {
		sl.status = StatusSuccess
		sl.data = data
		sl.errKind = ErrorKindNone
	}
	status, errKind := sl.status, sl.errKind
	snap := l.snapshotLocked()
	l.unlockAndNotify(snap)

	if err != nil {
		l.log.Warn("section failed", "section", kind, "token", tok, "kind", errKind, "err", err)
	}
	l.obs.SectionLoaded(kind, status, errKind)
}

func (l *Loader) launchAddress(ctx context.Context, tok selection.Token, p model.Place) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res, err := l.src.Geocoder.ReverseGeocode(ctx, p.Latitude, p.Longitude)
		addr := Address{Status: AddressFallback, Text: utils.FormatCoordinates(p.Latitude, p.Longitude)}
		if err != nil {
			l.log.Warn("reverse geocode failed, using coordinates", "lat", p.Latitude, "lon", p.Longitude, "err", err)
		} else if res != nil && strings.TrimSpace(res.DisplayName) != "" {
			addr = Address{Status: AddressResolved, Text: res.DisplayName, Name: res.Name}
		}

		l.dmu.Lock()
		defer l.dmu.Unlock()
		l.mu.Lock()
		if tok != l.token || !l.sel.IsCurrent(tok) || l.address.Status != AddressLoading {
			l.mu.Unlock()
			return
		}
		l.address = addr
		snap := l.snapshotLocked()
		l.unlockAndNotify(snap)
	}()
}

// Snapshot returns the current section states.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotCopyLocked()
}

// Wait blocks until every launched fetch has returned.
func (l *Loader) Wait() { l.wg.Wait() }

// Close cancels in-flight work.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()
}

func (l *Loader) resetLocked() {
	attempts := map[SectionKind]int{}
	for k, sl := range l.slots {
		attempts[k] = sl.attempt
	}
	l.slots = make(map[SectionKind]*slot, len(AllSections))
	for _, k := range AllSections {
		// attempt keeps counting so a late result from a previous selection never
		// matches a fresh slot.
		l.slots[k] = &slot{status: StatusIdle, attempt: attempts[k]}
	}
	l.place = nil
	l.address = Address{Status: AddressIdle}
}

func (l *Loader) snapshotLocked() Snapshot {
	l.version++
	return l.snapshotCopyLocked()
}

func (l *Loader) snapshotCopyLocked() Snapshot {
	return Snapshot{
		Token:   l.token,
		Version: l.version,
		Transit: typed[*model.TransitInfo](l.slots[SectionTransit]),
		Hours:   typed[*model.HoursInfo](l.slots[SectionHours]),
		Nearby:  typed[[]model.NearbyPlace](l.slots[SectionNearby]),
		Photos:  typed[[]model.Photo](l.slots[SectionPhotos]),
		Address: l.address,
	}
}

func typed[T any](sl *slot) Section[T] {
	out := Section[T]{Status: sl.status, Error: sl.errKind, RetryCount: sl.retries}
	if v, ok := sl.data.(T); ok {
		out.Data = v
	}
	return out
}

// Subscribe registers fn and returns a function that removes it.
func (l *Loader) Subscribe(fn Listener) func() {
	l.lmu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.lmu.Unlock()
	return func() {
		l.lmu.Lock()
		delete(l.listeners, id)
		l.lmu.Unlock()
	}
}

// unlockAndNotify releases mu and delivers s. The caller holds dmu.
func (l *Loader) unlockAndNotify(s Snapshot) {
	l.mu.Unlock()
	l.notify(s)
}

func (l *Loader) notify(s Snapshot) {
	l.lmu.Lock()
	ls := make([]Listener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		ls = append(ls, fn)
	}
	l.lmu.Unlock()
	for _, fn := range ls {
		fn(s)
	}
}
