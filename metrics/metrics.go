// Package metrics holds the Prometheus collectors of the engine and the observer
// adapters that feed them.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/transitmap/enrich"
)

var (
	SectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitmap_sections_total",
		Help: "Finished popup section loads by section, status and error kind",
	}, []string{"section", "status", "error"})
	StaleResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitmap_stale_results_total",
		Help: "Section results discarded because the selection changed",
	}, []string{"section"})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitmap_geocode_cache_hits_total",
		Help: "Reverse geocode answers served from redis",
	})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitmap_geocode_cache_misses_total",
		Help: "Reverse geocode lookups that went to the provider",
	})
	RouteLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitmap_route_loads_total",
		Help: "Route branch loads by outcome",
	}, []string{"outcome"})
	VehicleRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitmap_vehicle_refreshes_total",
		Help: "Vehicle list refreshes by outcome",
	}, []string{"outcome"})
	VehiclesTracked = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transitmap_vehicles_tracked",
		Help: "Vehicles in the last successful refresh per route",
	}, []string{"route"})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transitmap_http_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "route", "code"})
)

func init() {
	prometheus.MustRegister(SectionsTotal)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheMissesTotal)
	prometheus.MustRegister(RouteLoadsTotal)
	prometheus.MustRegister(VehicleRefreshesTotal)
	prometheus.MustRegister(VehiclesTracked)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRequest records one API request.
func ObserveRequest(method, route string, code int, ms float64) {
	HTTPRequestDurationMs.WithLabelValues(method, route, strconv.Itoa(code)).Observe(ms)
}

// EnrichObserver feeds section outcomes into the section counters.
type EnrichObserver struct{}

func (EnrichObserver) SectionLoaded(kind enrich.SectionKind, status enrich.Status, errKind enrich.ErrorKind) {
	SectionsTotal.WithLabelValues(string(kind), string(status), string(errKind)).Inc()
}

func (EnrichObserver) StaleDiscarded(kind enrich.SectionKind) {
	StaleResultsTotal.WithLabelValues(string(kind)).Inc()
}

// RouteObserver feeds route and vehicle outcomes.
type RouteObserver struct{}

func (RouteObserver) RouteLoaded(_ string, err error) {
	RouteLoadsTotal.WithLabelValues(outcome(err)).Inc()
}

func (RouteObserver) VehiclesRefreshed(routeID string, count int, err error) {
	VehicleRefreshesTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		VehiclesTracked.WithLabelValues(routeID).Set(float64(count))
	}
}

// GeocodeObserver counts cache hits and misses.
type GeocodeObserver struct{}

func (GeocodeObserver) CacheHit()  { GeocodeCacheHitsTotal.Inc() }
func (GeocodeObserver) CacheMiss() { GeocodeCacheMissesTotal.Inc() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
