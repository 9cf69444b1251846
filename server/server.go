package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/engine"
	"github.com/theoremus-urban-solutions/transitmap/metrics"
)

// Options configures the server.
type Options struct {
	Port        int
	CORSOrigins []string
	// Remote is the camera port whose queue the renderer drains. Nil disables the
	// camera request endpoints.
	Remote *camera.RemotePort
	Logger *slog.Logger
}

// Server is the HTTP front of an engine.
type Server struct {
	eng    *engine.Engine
	remote *camera.RemotePort
	log    *slog.Logger
	http   *http.Server
	router chi.Router
}

// New builds the router for eng.
func New(eng *engine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		eng:    eng,
		remote: opts.Remote,
		log:    opts.Logger.With("component", "server"),
	}
	s.router = s.routes(opts.CORSOrigins)
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/selection", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Delete("/", s.handleClearSelection)
		r.Post("/place/{id}", s.handleSelectPlace)
		r.Post("/vehicle/{routeID}/{vehicleID}", s.handleSelectVehicle)
	})
	r.Post("/api/map/click", s.handleMapClick)
	r.Post("/api/sections/{kind}/retry", s.handleRetry)

	r.Route("/api/places", func(r chi.Router) {
		r.Get("/", s.handleListPlaces)
		r.Post("/", s.handleCreatePlace)
		r.Delete("/{id}", s.handleDeletePlace)
		r.Post("/{id}/save", s.handleSavePlace)
		r.Delete("/{id}/save", s.handleUnsavePlace)
	})
	r.Put("/api/search-results", s.handleSearchResults)

	r.Route("/api/routes/{id}", func(r chi.Router) {
		r.Get("/", s.handleRoute)
		r.Post("/", s.handleShowRoute)
		r.Delete("/", s.handleHideRoute)
		r.Post("/branch/{index}", s.handleSelectBranch)
		r.Get("/vehicles", s.handleRouteVehicles)
	})

	r.Route("/api/camera", func(r chi.Router) {
		r.Post("/moved", s.handleCameraMoved)
		r.Get("/view", s.handleCameraView)
		r.Get("/requests", s.handleCameraRequests)
		r.Post("/complete/{id}", s.handleCameraComplete)
	})
	return r
}

// observe logs each request and records its duration by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		dur := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveRequest(r.Method, route, status, float64(dur.Microseconds())/1000)
		s.log.Debug("http_access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", dur.Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", "err", err)
		}
	}()
	s.log.Info("server listening", "addr", s.http.Addr)
}

// Shutdown stops accepting requests and waits for active ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("server shut down successfully")
	return nil
}
