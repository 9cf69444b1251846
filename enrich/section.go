package enrich

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/selection"
)

// SectionKind names a popup section.
type SectionKind string

const (
	SectionTransit SectionKind = "transit"
	SectionHours   SectionKind = "hours"
	SectionNearby  SectionKind = "nearby"
	SectionPhotos  SectionKind = "photos"
)

// AllSections lists every section kind.
var AllSections = []SectionKind{SectionTransit, SectionHours, SectionNearby, SectionPhotos}

// ParseSectionKind validates s.
func ParseSectionKind(s string) (SectionKind, bool) {
	for _, k := range AllSections {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Status is the lifecycle state of a section.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies a section failure.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindInvalidData ErrorKind = "invalid_data"
)

var errInvalidData = errors.New("invalid data")

// Classify maps a collaborator error onto an ErrorKind. Malformed JSON from a
// collaborator counts as invalid data; anything else unrecognised as a network failure.
func Classify(err error) ErrorKind {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, model.ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, errInvalidData), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ErrorKindInvalidData
	}
	return ErrorKindNetwork
}

// Section is the observable state of one popup section.
type Section[T any] struct {
	Status     Status    `json:"status"`
	Data       T         `json:"data"`
	Error      ErrorKind `json:"error,omitempty"`
	RetryCount int       `json:"retryCount"`
}

// AddressStatus is the state of the address facet.
type AddressStatus string

const (
	AddressIdle     AddressStatus = "idle"
	AddressLoading  AddressStatus = "loading"
	AddressResolved AddressStatus = "resolved"
	AddressFallback AddressStatus = "fallback"
)

// Address is the display address of the selected place.
type Address struct {
	Status AddressStatus `json:"status"`
	Text   string        `json:"text,omitempty"`
	Name   string        `json:"name,omitempty"`
}

// Snapshot is a consistent view of every section for one selection token.
// Version increases with every change so consumers can drop older snapshots.
type Snapshot struct {
	Token   selection.Token              `json:"token"`
	Version uint64                       `json:"version"`
	Transit Section[*model.TransitInfo]  `json:"transit"`
	Hours   Section[*model.HoursInfo]    `json:"hours"`
	Nearby  Section[[]model.NearbyPlace] `json:"nearby"`
	Photos  Section[[]model.Photo]       `json:"photos"`
	Address Address                      `json:"address"`
}

// Status returns the status of kind.
func (s Snapshot) Status(kind SectionKind) Status {
	switch kind {
	case SectionTransit:
		return s.Transit.Status
	case SectionHours:
		return s.Hours.Status
	case SectionNearby:
		return s.Nearby.Status
	case SectionPhotos:
		return s.Photos.Status
	}
	return StatusIdle
}

// RetryCount returns the retry count of kind.
func (s Snapshot) RetryCount(kind SectionKind) int {
	switch kind {
	case SectionTransit:
		return s.Transit.RetryCount
	case SectionHours:
		return s.Hours.RetryCount
	case SectionNearby:
		return s.Nearby.RetryCount
	case SectionPhotos:
		return s.Photos.RetryCount
	}
	return 0
}

// Geocoder turns a coordinate into an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*model.GeocodeResult, error)
}

// TransitService provides the stop-level transit data of the transit section.
type TransitService interface {
	StopSchedule(ctx context.Context, stopID string) (model.StopSchedule, error)
	StopArrivals(ctx context.Context, stopID string) ([]model.Arrival, error)
	StopSituations(ctx context.Context, stopID string) ([]model.Situation, error)
}

// POIFinder matches a place against OpenStreetMap and parses opening hours.
type POIFinder interface {
	FindMatchingPOI(ctx context.Context, name string, lat, lon float64) (*model.OSMPoi, error)
	ParseOpeningHours(raw string) (model.ParsedHours, error)
}

// NearbyFinder lists POIs around a coordinate.
type NearbyFinder interface {
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]model.NearbyPlace, error)
}

// PhotoFinder lists photos of a place.
type PhotoFinder interface {
	FindPhotos(ctx context.Context, name string, lat, lon float64) ([]model.Photo, error)
}

// Sources bundles the collaborators. A nil source leaves its section idle.
type Sources struct {
	Geocoder Geocoder
	Transit  TransitService
	POI      POIFinder
	Nearby   NearbyFinder
	Photos   PhotoFinder
}

// Observer is notified of section outcomes. metrics.EnrichObserver implements it.
type Observer interface {
	SectionLoaded(kind SectionKind, status Status, errKind ErrorKind)
	StaleDiscarded(kind SectionKind)
}

type nopObserver struct{}

func (nopObserver) SectionLoaded(SectionKind, Status, ErrorKind) {}
func (nopObserver) StaleDiscarded(SectionKind)                  {}
