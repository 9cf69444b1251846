package enrich

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// sameSpotMeters is how close a nearby POI with the same name must be to count as the
// selected place itself.
const sameSpotMeters = 30.0

func (l *Loader) fetchTransit(ctx context.Context, p model.Place) (any, error) {
	stopID := p.LinkedStopID()
	if stopID == "" {
		return nil, fmt.Errorf("transit for %s: %w", p.ID, model.ErrNotFound)
	}
	info := &model.TransitInfo{StopID: stopID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched, err := l.src.Transit.StopSchedule(gctx, stopID)
		if err != nil {
			return fmt.Errorf("stop schedule %s: %w", stopID, err)
		}
		info.Schedule = sched
		return nil
	})
	g.Go(func() error {
		arr, err := l.src.Transit.StopArrivals(gctx, stopID)
		if err != nil {
			return fmt.Errorf("stop arrivals %s: %w", stopID, err)
		}
		info.Arrivals = arr
		return nil
	})
	g.Go(func() error {
		// Situations are optional; a failing alerts feed leaves them empty.
		sit, err := l.src.Transit.StopSituations(gctx, stopID)
		if err != nil {
			l.log.Warn("stop situations unavailable", "stop", stopID, "err", err)
			return nil
		}
		info.Situations = sit
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if info.Arrivals == nil {
		info.Arrivals = []model.Arrival{}
	}
	if info.Situations == nil {
		info.Situations = []model.Situation{}
	}
	return info, nil
}

func (l *Loader) fetchHours(ctx context.Context, p model.Place) (any, error) {
	poi, err := l.src.POI.FindMatchingPOI(ctx, p.Name, p.Latitude, p.Longitude)
	if err != nil {
		return nil, fmt.Errorf("match poi %q: %w", p.Name, err)
	}
	if poi == nil || strings.TrimSpace(poi.OpeningHours) == "" {
		return nil, fmt.Errorf("opening hours for %q: %w", p.Name, model.ErrNotFound)
	}
	hours, err := l.src.POI.ParseOpeningHours(poi.OpeningHours)
	if err != nil {
		return nil, fmt.Errorf("%w: opening hours %q: %v", errInvalidData, poi.OpeningHours, err)
	}
	return &model.HoursInfo{POI: *poi, Hours: hours, OpenNow: hours.IsOpen(l.opts.Now())}, nil
}

func (l *Loader) fetchNearby(ctx context.Context, p model.Place) (any, error) {
	found, err := l.src.Nearby.FindNearby(ctx, p.Latitude, p.Longitude, l.opts.NearbyRadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("nearby %s: %w", p.ID, err)
	}
	out := make([]model.NearbyPlace, 0, len(found))
	for _, n := range found {
		if strings.EqualFold(strings.TrimSpace(n.POI.Name), strings.TrimSpace(p.Name)) &&
			utils.HaversineMeters(p.Latitude, p.Longitude, n.POI.Latitude, n.POI.Longitude) < sameSpotMeters {
			continue
		}
		out = append(out, n)
	}
	if l.opts.MaxNearby > 0 && len(out) > l.opts.MaxNearby {
		out = out[:l.opts.MaxNearby]
	}
	return out, nil
}

func (l *Loader) fetchPhotos(ctx context.Context, p model.Place) (any, error) {
	photos, err := l.src.Photos.FindPhotos(ctx, p.Name, p.Latitude, p.Longitude)
	if err != nil {
		return nil, fmt.Errorf("photos %s: %w", p.ID, err)
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	return photos, nil
}
