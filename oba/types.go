package oba

import "encoding/json"

type envelope struct {
	Code        int             `json:"code"`
	CurrentTime int64           `json:"currentTime"`
	Text        string          `json:"text"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
}

type references struct {
	Agencies   []agencyRef    `json:"agencies"`
	Routes     []routeRef     `json:"routes"`
	Stops      []stopRef      `json:"stops"`
	Trips      []tripRef      `json:"trips"`
	Situations []situationRef `json:"situations"`
}

type agencyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type routeRef struct {
	ID        string `json:"id"`
	AgencyID  string `json:"agencyId"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
}

type stopRef struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Direction string   `json:"direction"`
	RouteIDs  []string `json:"routeIds"`
}

type tripRef struct {
	ID           string `json:"id"`
	RouteID      string `json:"routeId"`
	TripHeadsign string `json:"tripHeadsign"`
	DirectionID  string `json:"directionId"`
}

type textValue struct {
	Value string `json:"value"`
}

type situationRef struct {
	ID            string    `json:"id"`
	Summary       textValue `json:"summary"`
	Description   textValue `json:"description"`
	Severity      string    `json:"severity"`
	ActiveWindows []window  `json:"activeWindows"`
	AllAffects    []affect  `json:"allAffects"`
}

type window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type affect struct {
	RouteID string `json:"routeId"`
	StopID  string `json:"stopId"`
	TripID  string `json:"tripId"`
}

type encodedPolyline struct {
	Points string `json:"points"`
	Length int    `json:"length"`
}

// schedule-for-stop

type stopScheduleData struct {
	Entry struct {
		StopID             string `json:"stopId"`
		Date               int64  `json:"date"`
		StopRouteSchedules []struct {
			RouteID                     string `json:"routeId"`
			StopRouteDirectionSchedules []struct {
				TripHeadsign      string `json:"tripHeadsign"`
				ScheduleStopTimes []struct {
					ArrivalTime   int64  `json:"arrivalTime"`
					DepartureTime int64  `json:"departureTime"`
					ServiceID     string `json:"serviceId"`
					StopHeadsign  string `json:"stopHeadsign"`
					TripID        string `json:"tripId"`
				} `json:"scheduleStopTimes"`
			} `json:"stopRouteDirectionSchedules"`
		} `json:"stopRouteSchedules"`
	} `json:"entry"`
	References references `json:"references"`
}

// arrivals-and-departures-for-stop

type arrivalsData struct {
	Entry struct {
		StopID                string                `json:"stopId"`
		ArrivalsAndDepartures []arrivalAndDeparture `json:"arrivalsAndDepartures"`
		SituationIDs          []string              `json:"situationIds"`
	} `json:"entry"`
	References references `json:"references"`
}

type arrivalAndDeparture struct {
	RouteID              string   `json:"routeId"`
	RouteShortName       string   `json:"routeShortName"`
	TripID               string   `json:"tripId"`
	TripHeadsign         string   `json:"tripHeadsign"`
	StopID               string   `json:"stopId"`
	VehicleID            string   `json:"vehicleId"`
	ScheduledArrivalTime int64    `json:"scheduledArrivalTime"`
	PredictedArrivalTime int64    `json:"predictedArrivalTime"`
	Predicted            bool     `json:"predicted"`
	SituationIDs         []string `json:"situationIds"`
}

// stops-for-route

type stopsForRouteData struct {
	Entry struct {
		RouteID       string            `json:"routeId"`
		Polylines     []encodedPolyline `json:"polylines"`
		StopIDs       []string          `json:"stopIds"`
		StopGroupings []struct {
			Type       string `json:"type"`
			StopGroups []struct {
				ID   string `json:"id"`
				Name struct {
					Name  string   `json:"name"`
					Names []string `json:"names"`
					Type  string   `json:"type"`
				} `json:"name"`
				StopIDs   []string          `json:"stopIds"`
				Polylines []encodedPolyline `json:"polylines"`
			} `json:"stopGroups"`
		} `json:"stopGroupings"`
	} `json:"entry"`
	References references `json:"references"`
}

// trips-for-route

type tripsForRouteData struct {
	List []struct {
		TripID string      `json:"tripId"`
		Status *tripStatus `json:"status"`
	} `json:"list"`
	References references `json:"references"`
}

type tripStatus struct {
	ActiveTripID      string    `json:"activeTripId"`
	VehicleID         string    `json:"vehicleId"`
	Position          *position `json:"position"`
	Orientation       *float64  `json:"orientation"`
	Phase             string    `json:"phase"`
	Predicted         bool      `json:"predicted"`
	ScheduleDeviation int       `json:"scheduleDeviation"`
	LastUpdateTime    int64     `json:"lastUpdateTime"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// schedule-for-route

type routeScheduleData struct {
	Entry struct {
		RouteID           string `json:"routeId"`
		ServiceDate       int64  `json:"serviceDate"`
		StopTripGroupings []struct {
			DirectionID        string   `json:"directionId"`
			TripHeadsigns      []string `json:"tripHeadsigns"`
			TripIDs            []string `json:"tripIds"`
			TripsWithStopTimes []struct {
				TripID    string `json:"tripId"`
				StopTimes []struct {
					ArrivalTime   int64  `json:"arrivalTime"`
					DepartureTime int64  `json:"departureTime"`
					StopID        string `json:"stopId"`
					TripID        string `json:"tripId"`
				} `json:"stopTimes"`
			} `json:"tripsWithStopTimes"`
		} `json:"stopTripGroupings"`
	} `json:"entry"`
	References references `json:"references"`
}
