package gtfsrt

import (
	"sort"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// Prediction is a realtime arrival of a trip at a stop.
type Prediction struct {
	TripID    string
	RouteID   string
	StopID    string
	VehicleID string
	Arrival   time.Time
	Departure time.Time
	Skipped   bool
}

// Feed indexes one snapshot of the trip update, vehicle position and alert feeds.
// It is not modified after the Ingest calls that build it.
type Feed struct {
	headerTimestamp int64

	tripRoute      map[string]string          // trip_id -> route_id
	tripVehicleRef map[string]string          // trip_id -> vehicle id
	tripDelay      map[string]int             // trip_id -> seconds late
	predictions    map[string][]Prediction    // stop_id -> predictions
	vehicles       map[string][]model.Vehicle // route_id -> vehicles

	alerts        []model.Situation
	alertsByRoute map[string][]int // route_id -> indices in alerts slice
	alertsByStop  map[string][]int // stop_id -> indices
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{
		tripRoute:      map[string]string{},
		tripVehicleRef: map[string]string{},
		tripDelay:      map[string]int{},
		predictions:    map[string][]Prediction{},
		vehicles:       map[string][]model.Vehicle{},
		alertsByRoute:  map[string][]int{},
		alertsByStop:   map[string][]int{},
	}
}

// Ingest indexes every entity of fm. Trip updates should be ingested before vehicle
// positions so vehicles pick up route and delay from them.
func (f *Feed) Ingest(fm *gtfsrtpb.FeedMessage) {
	if fm == nil {
		return
	}
	if fm.GetHeader().GetTimestamp() > 0 {
		if ts := int64(fm.GetHeader().GetTimestamp()); ts > f.headerTimestamp {
			f.headerTimestamp = ts
		}
	}
	for _, e := range fm.GetEntity() {
		if tu := e.GetTripUpdate(); tu != nil {
			f.ingestTripUpdate(tu)
		}
		if vp := e.GetVehicle(); vp != nil {
			f.ingestVehicle(vp)
		}
		if a := e.GetAlert(); a != nil {
			f.ingestAlert(e.GetId(), a)
		}
	}
}

func (f *Feed) ingestTripUpdate(tu *gtfsrtpb.TripUpdate) {
	tripID := tu.GetTrip().GetTripId()
	if tripID == "" {
		return
	}
	routeID := tu.GetTrip().GetRouteId()
	if routeID != "" {
		f.tripRoute[tripID] = routeID
	}
	vehicleID := tu.GetVehicle().GetId()
	if vehicleID != "" {
		f.tripVehicleRef[tripID] = vehicleID
	}
	if tu.Delay != nil {
		f.tripDelay[tripID] = int(tu.GetDelay())
	}
	for _, stu := range tu.GetStopTimeUpdate() {
		sid := stu.GetStopId()
		if sid == "" {
			continue
		}
		p := Prediction{
			TripID:    tripID,
			RouteID:   routeID,
			StopID:    sid,
			VehicleID: vehicleID,
			Skipped:   stu.GetScheduleRelationship() == gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED,
		}
		if t := stu.GetArrival().GetTime(); t != 0 {
			p.Arrival = utils.FromUnixSeconds(t)
		}
		if t := stu.GetDeparture().GetTime(); t != 0 {
			p.Departure = utils.FromUnixSeconds(t)
		}
		if p.Arrival.IsZero() {
			p.Arrival = p.Departure
		}
		if _, ok := f.tripDelay[tripID]; !ok && stu.GetArrival() != nil && stu.GetArrival().Delay != nil {
			f.tripDelay[tripID] = int(stu.GetArrival().GetDelay())
		}
		f.predictions[sid] = append(f.predictions[sid], p)
	}
}

func (f *Feed) ingestVehicle(vp *gtfsrtpb.VehiclePosition) {
	tripID := vp.GetTrip().GetTripId()
	routeID := vp.GetTrip().GetRouteId()
	if routeID == "" {
		routeID = f.tripRoute[tripID]
	}
	id := vp.GetVehicle().GetId()
	if id == "" {
		id = f.tripVehicleRef[tripID]
	}
	if id == "" || routeID == "" || vp.GetPosition() == nil {
		return
	}
	v := model.Vehicle{
		ID:        id,
		RouteID:   routeID,
		TripID:    tripID,
		Latitude:  float64(vp.GetPosition().GetLatitude()),
		Longitude: float64(vp.GetPosition().GetLongitude()),
		Phase:     phase(vp.GetCurrentStatus()),
	}
	if vp.GetPosition().Bearing != nil {
		h := float64(vp.GetPosition().GetBearing())
		v.Heading = &h
	}
	if d, ok := f.tripDelay[tripID]; ok {
		v.ScheduleDeviation = &d
	}
	if ts := vp.GetTimestamp(); ts > 0 {
		v.UpdatedAt = utils.FromUnixSeconds(int64(ts))
	}
	f.vehicles[routeID] = append(f.vehicles[routeID], v)
}

func phase(s gtfsrtpb.VehiclePosition_VehicleStopStatus) string {
	switch s {
	case gtfsrtpb.VehiclePosition_INCOMING_AT:
		return "approaching"
	case gtfsrtpb.VehiclePosition_STOPPED_AT:
		return "stopped"
	default:
		return "in_progress"
	}
}

func (f *Feed) ingestAlert(id string, a *gtfsrtpb.Alert) {
	s := model.Situation{
		ID:          id,
		Summary:     translatedText(a.GetHeaderText()),
		Description: translatedText(a.GetDescriptionText()),
	}
	if a.SeverityLevel != nil {
		s.Severity = strings.ToLower(a.GetSeverityLevel().String())
	}
	if ap := a.GetActivePeriod(); len(ap) > 0 {
		if ap[0].GetStart() > 0 {
			s.Start = utils.FromUnixSeconds(int64(ap[0].GetStart()))
		}
		if ap[0].GetEnd() > 0 {
			s.End = utils.FromUnixSeconds(int64(ap[0].GetEnd()))
		}
	}
	for _, ie := range a.GetInformedEntity() {
		if rid := ie.GetRouteId(); rid != "" {
			s.RouteIDs = append(s.RouteIDs, rid)
		}
		if sid := ie.GetStopId(); sid != "" {
			s.StopIDs = append(s.StopIDs, sid)
		}
		if rid := f.tripRoute[ie.GetTrip().GetTripId()]; rid != "" && ie.GetRouteId() == "" {
			s.RouteIDs = append(s.RouteIDs, rid)
		}
	}
	idx := len(f.alerts)
	f.alerts = append(f.alerts, s)
	for _, rid := range s.RouteIDs {
		f.alertsByRoute[rid] = append(f.alertsByRoute[rid], idx)
	}
	for _, sid := range s.StopIDs {
		f.alertsByStop[sid] = append(f.alertsByStop[sid], idx)
	}
}

// translatedText prefers the English translation, then the first one.
func translatedText(ts *gtfsrtpb.TranslatedString) string {
	var first string
	for _, tr := range ts.GetTranslation() {
		if first == "" {
			first = tr.GetText()
		}
		lang := strings.ToLower(tr.GetLanguage())
		if lang == "en" || strings.HasPrefix(lang, "en-") {
			return tr.GetText()
		}
	}
	return first
}

// Timestamp is the newest header timestamp ingested.
func (f *Feed) Timestamp() time.Time {
	if f.headerTimestamp == 0 {
		return time.Time{}
	}
	return utils.FromUnixSeconds(f.headerTimestamp)
}

// VehiclesForRoute returns the vehicles reported on routeID, ordered by id.
func (f *Feed) VehiclesForRoute(routeID string) []model.Vehicle {
	out := append([]model.Vehicle(nil), f.vehicles[routeID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PredictionsForStop returns the predictions at stopID ordered by arrival.
func (f *Feed) PredictionsForStop(stopID string) []Prediction {
	out := append([]Prediction(nil), f.predictions[stopID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Arrival.Before(out[j].Arrival) })
	return out
}

// RouteForTrip returns the route reported for tripID.
func (f *Feed) RouteForTrip(tripID string) string { return f.tripRoute[tripID] }

// SituationsFor returns alerts naming stopID or any of routeIDs, without duplicates.
func (f *Feed) SituationsFor(stopID string, routeIDs []string) []model.Situation {
	seen := map[int]bool{}
	var out []model.Situation
	add := func(idxs []int) {
		for _, i := range idxs {
			if !seen[i] {
				seen[i] = true
				out = append(out, f.alerts[i])
			}
		}
	}
	add(f.alertsByStop[stopID])
	for _, rid := range routeIDs {
		add(f.alertsByRoute[rid])
	}
	return out
}
