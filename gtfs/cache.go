package gtfs

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// cached is the gob form of Index; derived lookups are rebuilt on read.
type cached struct {
	Agencies  []model.Agency
	Location  string
	Routes    map[string]routeRecord
	Trips     map[string]tripRecord
	Stops     map[string]model.Stop
	StopTimes map[string][]stopTime
	Shapes    map[string]model.LineString
}

// WriteCache encodes the index to w.
func WriteCache(g *Index, w io.Writer) error {
	c := cached{
		Agencies:  g.agencies,
		Location:  g.location.String(),
		Routes:    g.routes,
		Trips:     g.trips,
		Stops:     g.stops,
		StopTimes: g.stopTimes,
		Shapes:    g.shapes,
	}
	if err := gob.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode gtfs index: %w", err)
	}
	return nil
}

// ReadCache decodes an index written by WriteCache.
func ReadCache(r io.Reader) (*Index, error) {
	var c cached
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode gtfs index: %w", err)
	}
	g := newIndex()
	g.agencies = c.Agencies
	if loc, err := time.LoadLocation(c.Location); err == nil {
		g.location = loc
	}
	if c.Routes != nil {
		g.routes = c.Routes
	}
	if c.Trips != nil {
		g.trips = c.Trips
	}
	if c.Stops != nil {
		g.stops = c.Stops
	}
	if c.StopTimes != nil {
		g.stopTimes = c.StopTimes
	}
	if c.Shapes != nil {
		g.shapes = c.Shapes
	}
	g.finalize()
	return g, nil
}

// WriteCacheFile writes the index to a file.
func WriteCacheFile(g *Index, name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := WriteCache(g, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadCacheFile reads an index from a file.
func ReadCacheFile(name string) (*Index, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	defer f.Close()
	return ReadCache(f)
}
