package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/config"
	"github.com/theoremus-urban-solutions/transitmap/enrich"
	"github.com/theoremus-urban-solutions/transitmap/geocode"
	"github.com/theoremus-urban-solutions/transitmap/gtfs"
	"github.com/theoremus-urban-solutions/transitmap/gtfsrt"
	"github.com/theoremus-urban-solutions/transitmap/metrics"
	"github.com/theoremus-urban-solutions/transitmap/oba"
	"github.com/theoremus-urban-solutions/transitmap/osm"
	"github.com/theoremus-urban-solutions/transitmap/photos"
	"github.com/theoremus-urban-solutions/transitmap/routes"
)

// transitBackend serves both the transit section and route display.
type transitBackend interface {
	enrich.TransitService
	routes.TransitService
}

type engineSources struct {
	enrich enrich.Sources
}

// buildTransit returns nil, nil when no backend is configured.
func buildTransit(ctx context.Context, tc config.TransitConfig, log *slog.Logger) (transitBackend, error) {
	timeout := config.Millis(tc.TimeoutMS)
	switch tc.Backend {
	case "oba":
		if tc.OBA.BaseURL == "" {
			return nil, fmt.Errorf("transit.oba.baseURL is required for the oba backend")
		}
		return oba.NewClient(tc.OBA.BaseURL, tc.OBA.APIKey, timeout, log), nil
	case "gtfs":
		feed, ok := config.SelectFeed(tc, tc.Feed)
		if !ok {
			return nil, fmt.Errorf("transit.feeds is empty")
		}
		index, err := loadIndex(ctx, feed.GTFS, timeout, log)
		if err != nil {
			return nil, err
		}
		var client *gtfsrt.Client
		rt := feed.GTFSRT
		if rt.TripUpdatesURL != "" || rt.VehiclePositionsURL != "" || rt.ServiceAlertsURL != "" {
			client = gtfsrt.NewClient(timeout, rt.APIKey, rt.APIKeyHeader)
		}
		log.Info("gtfs feed ready", "feed", feed.Name, "realtime", client != nil)
		return gtfsrt.NewService(index, client, gtfsrt.Feeds{
			TripUpdatesURL:      rt.TripUpdatesURL,
			VehiclePositionsURL: rt.VehiclePositionsURL,
			ServiceAlertsURL:    rt.ServiceAlertsURL,
		}, gtfsrt.ServiceOptions{MaxAge: config.Millis(rt.MaxAgeMS), Logger: log}), nil
	}
	return nil, nil
}

// loadIndex prefers the gob cache, then a local zip, then the static URL. A freshly
// built index is written back to the cache.
func loadIndex(ctx context.Context, gc config.GTFSConfig, timeout time.Duration, log *slog.Logger) (*gtfs.Index, error) {
	if gc.CachePath != "" {
		index, err := gtfs.ReadCacheFile(gc.CachePath)
		if err == nil {
			log.Info("gtfs index read from cache", "path", gc.CachePath)
			return index, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("gtfs cache unreadable, rebuilding", "path", gc.CachePath, "err", err)
		}
	}

	var index *gtfs.Index
	var err error
	switch {
	case gc.StaticPath != "":
		index, err = gtfs.LoadFile(gc.StaticPath)
	case gc.StaticURL != "":
		// static zips are large; allow well beyond the per-request timeout
		index, err = gtfs.Fetch(ctx, &http.Client{Timeout: 10 * timeout}, gc.StaticURL)
	default:
		return nil, fmt.Errorf("gtfs feed needs staticPath or staticURL")
	}
	if err != nil {
		return nil, fmt.Errorf("load gtfs: %w", err)
	}
	if gc.CachePath != "" {
		if err := gtfs.WriteCacheFile(index, gc.CachePath); err != nil {
			log.Warn("gtfs cache not written", "path", gc.CachePath, "err", err)
		}
	}
	return index, nil
}

// buildSources creates the enrichment collaborators. The returned func releases them.
func buildSources(cfg config.AppConfig, transit transitBackend, log *slog.Logger) (engineSources, func(), error) {
	var src enrich.Sources
	closeFn := func() {}
	if transit != nil {
		src.Transit = transit
	}

	if cfg.Geocoding.Token != "" {
		var geocoder geocode.Reverser = geocode.NewMapbox(cfg.Geocoding.BaseURL, cfg.Geocoding.Token,
			cfg.Geocoding.Language, config.Millis(cfg.Geocoding.TimeoutMS))
		rc, err := geocode.OpenRedis(cfg.Cache.RedisURL)
		if err != nil {
			return engineSources{}, closeFn, err
		}
		if rc != nil {
			geocoder = geocode.NewCached(geocoder, rc, time.Duration(cfg.Cache.TTLSeconds)*time.Second,
				metrics.GeocodeObserver{}, log)
			closeFn = func() { _ = rc.Close() }
		}
		src.Geocoder = geocoder
	} else {
		log.Info("no geocoding token, addresses fall back to coordinates")
	}

	if cfg.OSM.Enabled {
		c := osm.NewClient(cfg.OSM.OverpassURL, config.Millis(cfg.OSM.TimeoutMS), cfg.OSM.MatchRadiusM)
		src.POI = c
		src.Nearby = c
	}
	if cfg.Photos.Enabled {
		src.Photos = photos.NewCommons(cfg.Photos.CommonsURL, config.Millis(cfg.Photos.TimeoutMS),
			cfg.Photos.RadiusM, cfg.Photos.Limit)
	}
	return engineSources{enrich: src}, closeFn, nil
}
