package model

import "time"

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// LineString is an ordered list of coordinates.
type LineString []Coordinate

// Stop is a transit stop as part of a branch.
type Stop struct {
	ID        string   `json:"id"`
	Code      string   `json:"code,omitempty"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Direction string   `json:"direction,omitempty"`
	RouteIDs  []string `json:"routeIds,omitempty"`
}

// Vehicle is a live vehicle position on a route.
type Vehicle struct {
	ID           string   `json:"id"`
	RouteID      string   `json:"routeId"`
	TripID       string   `json:"tripId,omitempty"`
	TripHeadsign string   `json:"tripHeadsign,omitempty"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Heading      *float64 `json:"heading,omitempty"`
	Phase        string   `json:"phase,omitempty"`
	// ScheduleDeviation is in seconds, positive when late.
	ScheduleDeviation *int      `json:"scheduleDeviation,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// Branch is a directional variant of a route.
type Branch struct {
	Name        string       `json:"name"`
	DirectionID string       `json:"directionId,omitempty"`
	Segments    []LineString `json:"segments"`
	Stops       []Stop       `json:"stops"`
}

// Bounds returns the south-west and north-east corners covering the branch.
func (b Branch) Bounds() (Coordinate, Coordinate, bool) {
	var sw, ne Coordinate
	seen := false
	grow := func(c Coordinate) {
		if !seen {
			sw, ne, seen = c, c, true
			return
		}
		sw.Latitude = min(sw.Latitude, c.Latitude)
		sw.Longitude = min(sw.Longitude, c.Longitude)
		ne.Latitude = max(ne.Latitude, c.Latitude)
		ne.Longitude = max(ne.Longitude, c.Longitude)
	}
	for _, seg := range b.Segments {
		for _, c := range seg {
			grow(c)
		}
	}
	for _, s := range b.Stops {
		grow(Coordinate{Latitude: s.Latitude, Longitude: s.Longitude})
	}
	return sw, ne, seen
}

// ScheduleEntry is one scheduled call of a trip at a stop.
type ScheduleEntry struct {
	TripID        string    `json:"tripId"`
	StopID        string    `json:"stopId"`
	RouteID       string    `json:"routeId,omitempty"`
	Headsign      string    `json:"headsign,omitempty"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	DepartureTime time.Time `json:"departureTime"`
}

// Route is a transit route expanded into branches.
type Route struct {
	ID                  string          `json:"id"`
	ShortName           string          `json:"shortName,omitempty"`
	LongName            string          `json:"longName,omitempty"`
	Branches            []Branch        `json:"branches"`
	SelectedBranchIndex int             `json:"selectedBranchIndex"`
	Schedule            []ScheduleEntry `json:"schedule,omitempty"`
}

// SelectedBranch returns the branch at SelectedBranchIndex.
func (r Route) SelectedBranch() (Branch, bool) {
	if r.SelectedBranchIndex < 0 || r.SelectedBranchIndex >= len(r.Branches) {
		return Branch{}, false
	}
	return r.Branches[r.SelectedBranchIndex], true
}

// ClampBranchIndex clamps index into [0, n). It returns 0 when n is 0.
func ClampBranchIndex(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}

// Agency is a transit operator.
type Agency struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// StopSchedule is the scheduled service at a stop.
type StopSchedule struct {
	Arrivals []ScheduleEntry `json:"arrivals"`
	Agencies []Agency        `json:"agencies"`
}

// Arrival is a predicted or scheduled arrival of a trip at a stop.
type Arrival struct {
	RouteID          string    `json:"routeId"`
	RouteShortName   string    `json:"routeShortName,omitempty"`
	TripID           string    `json:"tripId"`
	TripHeadsign     string    `json:"tripHeadsign,omitempty"`
	StopID           string    `json:"stopId"`
	VehicleID        string    `json:"vehicleId,omitempty"`
	ScheduledArrival time.Time `json:"scheduledArrival,omitempty"`
	PredictedArrival time.Time `json:"predictedArrival,omitempty"`
	Predicted        bool      `json:"predicted"`
}

// Situation is a service alert affecting a stop or route.
type Situation struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
	RouteIDs    []string  `json:"routeIds,omitempty"`
	StopIDs     []string  `json:"stopIds,omitempty"`
}

// TransitInfo is the payload of the transit section.
type TransitInfo struct {
	StopID     string       `json:"stopId"`
	Schedule   StopSchedule `json:"schedule"`
	Arrivals   []Arrival    `json:"arrivals"`
	Situations []Situation  `json:"situations"`
}
