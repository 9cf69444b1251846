package gtfsrt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/transitmap/gtfs"
	"github.com/theoremus-urban-solutions/transitmap/model"
)

// Feeds are the realtime feed URLs. Any of them may be empty.
type Feeds struct {
	TripUpdatesURL      string
	VehiclePositionsURL string
	ServiceAlertsURL    string
}

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	// MaxAge is how long a fetched snapshot is reused. Default 15s.
	MaxAge time.Duration

	// ArrivalWindow limits StopArrivals to calls within this window. Default 1h.
	ArrivalWindow time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Service answers transit questions from a static index and the realtime feeds.
type Service struct {
	index  *gtfs.Index
	client *Client
	feeds  Feeds
	opts   ServiceOptions
	log    *slog.Logger

	refreshMu sync.Mutex
	mu        sync.RWMutex
	feed      *Feed
	fetchedAt time.Time
}

// NewService builds a service. client may be nil when no realtime feed is configured.
func NewService(index *gtfs.Index, client *Client, feeds Feeds, opts ServiceOptions) *Service {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 15 * time.Second
	}
	if opts.ArrivalWindow <= 0 {
		opts.ArrivalWindow = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		index:  index,
		client: client,
		feeds:  feeds,
		opts:   opts,
		log:    log.With("component", "gtfsrt"),
	}
}

// Refresh fetches the three feeds in parallel and swaps in a new snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	feed := NewFeed()
	if s.client != nil {
		var tu, vp, sa *gtfsrtpb.FeedMessage
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			tu, err = s.client.FetchFeed(gctx, s.feeds.TripUpdatesURL)
			if err != nil {
				return fmt.Errorf("trip updates: %w", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			vp, err = s.client.FetchFeed(gctx, s.feeds.VehiclePositionsURL)
			if err != nil {
				return fmt.Errorf("vehicle positions: %w", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			sa, err = s.client.FetchFeed(gctx, s.feeds.ServiceAlertsURL)
			if err != nil {
				return fmt.Errorf("service alerts: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
		feed.Ingest(tu)
		feed.Ingest(vp)
		feed.Ingest(sa)
	}

	s.mu.Lock()
	s.feed = feed
	s.fetchedAt = s.opts.Now()
	s.mu.Unlock()
	s.log.Debug("realtime feeds refreshed", "timestamp", feed.Timestamp())
	return nil
}

// SetFeed installs a snapshot built elsewhere.
func (s *Service) SetFeed(f *Feed) {
	s.mu.Lock()
	s.feed = f
	s.fetchedAt = s.opts.Now()
	s.mu.Unlock()
}

// current returns a snapshot no older than MaxAge. A failed refresh falls back to the
// previous snapshot when there is one.
func (s *Service) current(ctx context.Context) (*Feed, error) {
	s.mu.RLock()
	feed, at := s.feed, s.fetchedAt
	s.mu.RUnlock()
	if feed != nil && s.opts.Now().Sub(at) < s.opts.MaxAge {
		return feed, nil
	}
	if err := s.Refresh(ctx); err != nil {
		if feed != nil {
			s.log.Warn("realtime refresh failed, serving previous snapshot", "err", err)
			return feed, nil
		}
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed, nil
}

// RouteNames returns the short and long name of routeID from the static feed.
func (s *Service) RouteNames(routeID string) (string, string, bool) {
	return s.index.RouteNames(routeID)
}

func (s *Service) StopSchedule(ctx context.Context, stopID string) (model.StopSchedule, error) {
	return s.index.StopSchedule(stopID, s.opts.Now())
}

// StopArrivals merges realtime predictions with the static schedule. Trips without a
// prediction are listed from the schedule with Predicted false.
func (s *Service) StopArrivals(ctx context.Context, stopID string) ([]model.Arrival, error) {
	now := s.opts.Now()
	sched, err := s.index.StopSchedule(stopID, now)
	if err != nil {
		return nil, err
	}
	feed, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	from, until := now.Add(-time.Minute), now.Add(s.opts.ArrivalWindow)

	var out []model.Arrival
	predicted := map[string]bool{}
	for _, p := range feed.PredictionsForStop(stopID) {
		if p.Skipped || p.Arrival.Before(from) || p.Arrival.After(until) {
			continue
		}
		predicted[p.TripID] = true
		routeID := p.RouteID
		if routeID == "" {
			routeID = s.index.TripRoute(p.TripID)
		}
		a := model.Arrival{
			RouteID:          routeID,
			TripID:           p.TripID,
			TripHeadsign:     s.index.TripHeadsign(p.TripID),
			StopID:           stopID,
			VehicleID:        p.VehicleID,
			PredictedArrival: p.Arrival,
			Predicted:        true,
		}
		a.RouteShortName, _, _ = s.index.RouteNames(routeID)
		if t, ok := s.index.ScheduledArrival(p.TripID, stopID, now); ok {
			a.ScheduledArrival = t
		}
		out = append(out, a)
	}
	for _, e := range sched.Arrivals {
		if predicted[e.TripID] || e.ArrivalTime.Before(from) || e.ArrivalTime.After(until) {
			continue
		}
		a := model.Arrival{
			RouteID:          e.RouteID,
			TripID:           e.TripID,
			TripHeadsign:     e.Headsign,
			StopID:           stopID,
			ScheduledArrival: e.ArrivalTime,
		}
		a.RouteShortName, _, _ = s.index.RouteNames(e.RouteID)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return arrivalTime(out[i]).Before(arrivalTime(out[j])) })
	return out, nil
}

func arrivalTime(a model.Arrival) time.Time {
	if a.Predicted {
		return a.PredictedArrival
	}
	return a.ScheduledArrival
}

func (s *Service) StopSituations(ctx context.Context, stopID string) ([]model.Situation, error) {
	stop, ok := s.index.Stop(stopID)
	if !ok {
		return nil, fmt.Errorf("stop %s: %w", stopID, model.ErrNotFound)
	}
	feed, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return feed.SituationsFor(stopID, stop.RouteIDs), nil
}

func (s *Service) RouteBranches(ctx context.Context, routeID string) ([]model.Branch, error) {
	return s.index.Branches(routeID)
}

func (s *Service) RouteSchedule(ctx context.Context, routeID string) ([]model.ScheduleEntry, error) {
	return s.index.RouteSchedule(routeID, s.opts.Now()), nil
}

// VehiclesForRoute returns the live vehicles of routeID with headsigns from the static feed.
func (s *Service) VehiclesForRoute(ctx context.Context, routeID string) ([]model.Vehicle, error) {
	feed, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	vehicles := feed.VehiclesForRoute(routeID)
	for i := range vehicles {
		if vehicles[i].TripHeadsign == "" {
			vehicles[i].TripHeadsign = s.index.TripHeadsign(vehicles[i].TripID)
		}
	}
	return vehicles, nil
}
