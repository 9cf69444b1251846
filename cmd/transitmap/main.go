package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/config"
	"github.com/theoremus-urban-solutions/transitmap/engine"
	"github.com/theoremus-urban-solutions/transitmap/internal"
	"github.com/theoremus-urban-solutions/transitmap/metrics"
	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/server"
	"github.com/theoremus-urban-solutions/transitmap/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: $TRANSITMAP_CONFIG, ./config.yml)")
	mode := flag.String("mode", "serve", "serve|oneshot")
	feedName := flag.String("feed", "", "feed name from transit.feeds[] (overrides config)")
	routeID := flag.String("route", "", "oneshot: route id to resolve into branches and vehicles")
	stopID := flag.String("stop", "", "oneshot: stop id to enrich like a selected stop")
	branch := flag.Int("branch", 0, "oneshot: branch index to select on -route")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	if err := config.LoadAppConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Config
	if *feedName != "" {
		cfg.Transit.Feed = *feedName
	}
	log := internal.InitLogging(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	transit, err := buildTransit(ctx, cfg.Transit, log)
	cancel()
	if err != nil {
		log.Error("transit backend unavailable", "err", err)
		os.Exit(1)
	}
	sources, closeSources, err := buildSources(cfg, transit, log)
	if err != nil {
		log.Error("collaborators unavailable", "err", err)
		os.Exit(1)
	}
	defer closeSources()

	switch *mode {
	case "serve":
		err = serve(cfg, transit, sources, log)
	case "oneshot":
		err = oneshot(cfg, transit, sources, *routeID, *stopID, *branch, log)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func engineConfig(cfg config.AppConfig, transit transitBackend, sources engineSources, log *slog.Logger) engine.Config {
	ec := engine.Config{
		Sources:             sources.enrich,
		NearbyRadiusMeters:  cfg.OSM.NearbyRadiusM,
		MaxNearby:           cfg.OSM.MaxNearby,
		CameraDebounce:      config.Millis(cfg.Camera.DebounceMS),
		VehiclePollInterval: config.Millis(cfg.Transit.VehiclePollMS),
		SelectZoom:          cfg.Camera.SelectZoom,
		FitPadding:          cfg.Camera.FitPadding,
		Logger:              log,
		EnrichObserver:      metrics.EnrichObserver{},
		RouteObserver:       metrics.RouteObserver{},
	}
	if transit != nil {
		ec.Routes = transit
	}
	return ec
}

func serve(cfg config.AppConfig, transit transitBackend, sources engineSources, log *slog.Logger) error {
	ctx := context.Background()
	placeStore, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = placeStore.Close() }()

	remote := camera.NewRemotePort(config.Millis(cfg.Camera.FlyTimeoutMS))
	ec := engineConfig(cfg, transit, sources, log)
	ec.Camera = remote
	ec.Store = placeStore
	eng := engine.New(ec)
	defer eng.Close()

	if _, err := eng.LoadStoredPlaces(ctx); err != nil {
		return err
	}

	srv := server.New(eng, server.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		Remote:      remote,
		Logger:      log,
	})
	srv.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type oneshotRoute struct {
	Route    model.Route     `json:"route"`
	Vehicles []model.Vehicle `json:"vehicles"`
}

// oneshot resolves a route or enriches a stop once and prints the JSON result.
func oneshot(cfg config.AppConfig, transit transitBackend, sources engineSources, routeID, stopID string, branch int, log *slog.Logger) error {
	if routeID == "" && stopID == "" {
		return fmt.Errorf("oneshot needs -route or -stop")
	}
	ec := engineConfig(cfg, transit, sources, log)
	ec.VehiclePollInterval = time.Hour
	eng := engine.New(ec)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.Millis(cfg.Transit.TimeoutMS)*3)
	defer cancel()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if routeID != "" {
		if _, err := eng.ShowRoute(ctx, routeID); err != nil {
			return err
		}
		rt, err := eng.SelectBranch(routeID, branch)
		if err != nil {
			return err
		}
		if err := eng.Resolver().RefreshVehicles(ctx, routeID); err != nil {
			log.Warn("vehicles unavailable", "route", routeID, "err", err)
		}
		return enc.Encode(oneshotRoute{Route: rt, Vehicles: eng.RouteVehicles(routeID)})
	}

	stop := model.Place{ID: stopID, Name: stopID, Type: "stop", TransitStop: true,
		Categories: model.CategorySet(0).With(model.CategorySearch)}
	if _, err := eng.Registry().Upsert(stop); err != nil {
		return err
	}
	if _, err := eng.SelectPlace(stopID); err != nil {
		return err
	}
	eng.Wait()
	return enc.Encode(eng.State())
}
