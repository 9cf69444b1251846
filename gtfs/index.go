package gtfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

type routeRecord struct {
	ShortName string
	LongName  string
	AgencyID  string
}

type tripRecord struct {
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID string
	ShapeID     string
}

type stopTime struct {
	StopID    string
	Sequence  int
	Arrival   string // HH:MM:SS, may exceed 24h
	Departure string
}

// Index stores GTFS static data in memory for fast lookups.
type Index struct {
	agencies   []model.Agency
	location   *time.Location
	routes     map[string]routeRecord
	trips      map[string]tripRecord
	routeTrips map[string][]string // route_id -> trip_ids
	stops      map[string]model.Stop
	stopTimes  map[string][]stopTime // trip_id -> calls ordered by stop_sequence
	stopTrips  map[string][]string   // stop_id -> trip_ids calling there
	shapes     map[string]model.LineString
}

func newIndex() *Index {
	return &Index{
		location:   time.UTC,
		routes:     map[string]routeRecord{},
		trips:      map[string]tripRecord{},
		routeTrips: map[string][]string{},
		stops:      map[string]model.Stop{},
		stopTimes:  map[string][]stopTime{},
		stopTrips:  map[string][]string{},
		shapes:     map[string]model.LineString{},
	}
}

// finalize derives the reverse lookups once every file has been read.
func (g *Index) finalize() {
	g.routeTrips = map[string][]string{}
	g.stopTrips = map[string][]string{}
	for tripID, t := range g.trips {
		g.routeTrips[t.RouteID] = append(g.routeTrips[t.RouteID], tripID)
	}
	stopRoutes := map[string]map[string]struct{}{}
	for tripID, calls := range g.stopTimes {
		sort.SliceStable(calls, func(i, j int) bool { return calls[i].Sequence < calls[j].Sequence })
		routeID := g.trips[tripID].RouteID
		for _, c := range calls {
			g.stopTrips[c.StopID] = append(g.stopTrips[c.StopID], tripID)
			if stopRoutes[c.StopID] == nil {
				stopRoutes[c.StopID] = map[string]struct{}{}
			}
			stopRoutes[c.StopID][routeID] = struct{}{}
		}
	}
	for _, ids := range g.routeTrips {
		sort.Strings(ids)
	}
	for _, ids := range g.stopTrips {
		sort.Strings(ids)
	}
	for stopID, set := range stopRoutes {
		s, ok := g.stops[stopID]
		if !ok {
			continue
		}
		s.RouteIDs = s.RouteIDs[:0]
		for r := range set {
			s.RouteIDs = append(s.RouteIDs, r)
		}
		sort.Strings(s.RouteIDs)
		g.stops[stopID] = s
	}
}

// Location is the agency timezone used to place GTFS times on a service day.
func (g *Index) Location() *time.Location { return g.location }

// Agencies returns every agency in the feed.
func (g *Index) Agencies() []model.Agency {
	return append([]model.Agency(nil), g.agencies...)
}

// RouteNames returns the short and long name of routeID.
func (g *Index) RouteNames(routeID string) (string, string, bool) {
	r, ok := g.routes[routeID]
	return r.ShortName, r.LongName, ok
}

// RouteIDs returns every route id, sorted.
func (g *Index) RouteIDs() []string {
	ids := make([]string, 0, len(g.routes))
	for id := range g.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop returns the stop with id.
func (g *Index) Stop(id string) (model.Stop, bool) {
	s, ok := g.stops[id]
	return s, ok
}

// TripHeadsign returns the headsign of tripID.
func (g *Index) TripHeadsign(tripID string) string { return g.trips[tripID].Headsign }

// TripRoute returns the route of tripID.
func (g *Index) TripRoute(tripID string) string { return g.trips[tripID].RouteID }

// ScheduledArrival returns when tripID is scheduled at stopID on the service day of day.
func (g *Index) ScheduledArrival(tripID, stopID string, day time.Time) (time.Time, bool) {
	for _, c := range g.stopTimes[tripID] {
		if c.StopID != stopID {
			continue
		}
		t, err := g.serviceTime(day, firstNonEmpty(c.Arrival, c.Departure))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Branches groups the trips of routeID by direction and headsign.
func (g *Index) Branches(routeID string) ([]model.Branch, error) {
	if _, ok := g.routes[routeID]; !ok {
		return nil, fmt.Errorf("route %s: %w", routeID, model.ErrNotFound)
	}

	type group struct {
		name, direction string
		trip            string
	}
	groups := map[string]*group{}
	for _, tripID := range g.routeTrips[routeID] {
		t := g.trips[tripID]
		key := t.DirectionID + "|" + t.Headsign
		gr, ok := groups[key]
		if !ok {
			groups[key] = &group{name: t.Headsign, direction: t.DirectionID, trip: tripID}
			continue
		}
		// the longest trip stands for the branch
		if len(g.stopTimes[tripID]) > len(g.stopTimes[gr.trip]) {
			gr.trip = tripID
		}
	}

	out := make([]model.Branch, 0, len(groups))
	for _, gr := range groups {
		name := gr.name
		if name == "" {
			name = "Direction " + firstNonEmpty(gr.direction, "0")
		}
		out = append(out, g.branchForTrip(name, gr.direction, gr.trip))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DirectionID != out[j].DirectionID {
			return out[i].DirectionID < out[j].DirectionID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (g *Index) branchForTrip(name, direction, tripID string) model.Branch {
	b := model.Branch{Name: name, DirectionID: direction}
	var line model.LineString
	for _, c := range g.stopTimes[tripID] {
		s, ok := g.stops[c.StopID]
		if !ok {
			continue
		}
		b.Stops = append(b.Stops, s)
		line = append(line, model.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude})
	}
	if shape := g.shapes[g.trips[tripID].ShapeID]; len(shape) > 1 {
		line = append(model.LineString(nil), shape...)
	}
	if len(line) > 1 {
		b.Segments = []model.LineString{line}
	}
	return b
}

// RouteSchedule lists the departure of every trip of routeID from its first stop.
func (g *Index) RouteSchedule(routeID string, day time.Time) []model.ScheduleEntry {
	var out []model.ScheduleEntry
	for _, tripID := range g.routeTrips[routeID] {
		calls := g.stopTimes[tripID]
		if len(calls) == 0 {
			continue
		}
		if e, ok := g.entry(tripID, calls[0], day); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out
}

// StopSchedule lists every call at stopID on the service day of day.
func (g *Index) StopSchedule(stopID string, day time.Time) (model.StopSchedule, error) {
	if _, ok := g.stops[stopID]; !ok {
		return model.StopSchedule{}, fmt.Errorf("stop %s: %w", stopID, model.ErrNotFound)
	}
	sched := model.StopSchedule{Agencies: g.Agencies()}
	for _, tripID := range g.stopTrips[stopID] {
		for _, c := range g.stopTimes[tripID] {
			if c.StopID != stopID {
				continue
			}
			if e, ok := g.entry(tripID, c, day); ok {
				sched.Arrivals = append(sched.Arrivals, e)
			}
			break
		}
	}
	sort.Slice(sched.Arrivals, func(i, j int) bool {
		return sched.Arrivals[i].ArrivalTime.Before(sched.Arrivals[j].ArrivalTime)
	})
	return sched, nil
}

func (g *Index) entry(tripID string, c stopTime, day time.Time) (model.ScheduleEntry, bool) {
	arr, err := g.serviceTime(day, firstNonEmpty(c.Arrival, c.Departure))
	if err != nil {
		return model.ScheduleEntry{}, false
	}
	dep, err := g.serviceTime(day, firstNonEmpty(c.Departure, c.Arrival))
	if err != nil {
		dep = arr
	}
	t := g.trips[tripID]
	return model.ScheduleEntry{
		TripID:        tripID,
		StopID:        c.StopID,
		RouteID:       t.RouteID,
		Headsign:      t.Headsign,
		ArrivalTime:   arr,
		DepartureTime: dep,
	}, true
}

func (g *Index) serviceTime(day time.Time, hhmmss string) (time.Time, error) {
	d, err := ParseTime(hhmmss)
	if err != nil {
		return time.Time{}, err
	}
	local := day.In(g.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.location)
	return midnight.Add(d), nil
}

// ParseTime parses a GTFS "HH:MM:SS" time, which may run past 24:00:00.
func ParseTime(s string) (time.Duration, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("parse gtfs time %q: %w", s, err)
	}
	if m < 0 || m > 59 || sec < 0 || sec > 59 || h < 0 {
		return 0, fmt.Errorf("parse gtfs time %q: out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
