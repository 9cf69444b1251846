package oba

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// Client talks to a OneBusAway REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	mu         sync.RWMutex
	routeNames map[string][2]string
}

// NewClient returns a client for baseURL (for example "https://api.pugetsound.onebusaway.org").
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("component", "oba"),
		routeNames: map[string][2]string{},
	}
}

// get calls /api/where/{method}/{id}.json and decodes data into out.
func (c *Client) get(ctx context.Context, method, id string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	u := fmt.Sprintf("%s/api/where/%s/%s.json", c.baseURL, method, url.PathEscape(id))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, id, model.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: HTTP %d", method, id, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, id, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s %s: decode envelope: %w", method, id, err)
	}
	switch {
	case env.Code == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, id, model.ErrNotFound)
	case env.Code != 0 && env.Code != http.StatusOK:
		return fmt.Errorf("%s %s: code %d: %s", method, id, env.Code, env.Text)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, id, err)
	}
	return nil
}

func (c *Client) StopSchedule(ctx context.Context, stopID string) (model.StopSchedule, error) {
	var data stopScheduleData
	if err := c.get(ctx, "schedule-for-stop", stopID, nil, &data); err != nil {
		return model.StopSchedule{}, err
	}
	var sched model.StopSchedule
	for _, rs := range data.Entry.StopRouteSchedules {
		for _, ds := range rs.StopRouteDirectionSchedules {
			for _, st := range ds.ScheduleStopTimes {
				headsign := st.StopHeadsign
				if headsign == "" {
					headsign = ds.TripHeadsign
				}
				sched.Arrivals = append(sched.Arrivals, model.ScheduleEntry{
					TripID:        st.TripID,
					StopID:        stopID,
					RouteID:       rs.RouteID,
					Headsign:      headsign,
					ArrivalTime:   utils.FromUnixMillis(st.ArrivalTime),
					DepartureTime: utils.FromUnixMillis(st.DepartureTime),
				})
			}
		}
	}
	sort.SliceStable(sched.Arrivals, func(i, j int) bool {
		return sched.Arrivals[i].ArrivalTime.Before(sched.Arrivals[j].ArrivalTime)
	})
	for _, a := range data.References.Agencies {
		sched.Agencies = append(sched.Agencies, model.Agency{ID: a.ID, Name: a.Name, URL: a.URL})
	}
	return sched, nil
}

func (c *Client) arrivals(ctx context.Context, stopID string) (arrivalsData, error) {
	var data arrivalsData
	q := url.Values{"minutesBefore": {"1"}, "minutesAfter": {"60"}}
	err := c.get(ctx, "arrivals-and-departures-for-stop", stopID, q, &data)
	return data, err
}

func (c *Client) StopArrivals(ctx context.Context, stopID string) ([]model.Arrival, error) {
	data, err := c.arrivals(ctx, stopID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Arrival, 0, len(data.Entry.ArrivalsAndDepartures))
	for _, ad := range data.Entry.ArrivalsAndDepartures {
		a := model.Arrival{
			RouteID:          ad.RouteID,
			RouteShortName:   ad.RouteShortName,
			TripID:           ad.TripID,
			TripHeadsign:     ad.TripHeadsign,
			StopID:           ad.StopID,
			VehicleID:        ad.VehicleID,
			ScheduledArrival: utils.FromUnixMillis(ad.ScheduledArrivalTime),
			Predicted:        ad.Predicted && ad.PredictedArrivalTime > 0,
		}
		if a.Predicted {
			a.PredictedArrival = utils.FromUnixMillis(ad.PredictedArrivalTime)
		}
		if a.StopID == "" {
			a.StopID = stopID
		}
		out = append(out, a)
	}
	return out, nil
}

// StopSituations returns the situations referenced by the stop's arrivals.
func (c *Client) StopSituations(ctx context.Context, stopID string) ([]model.Situation, error) {
	data, err := c.arrivals(ctx, stopID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Situation, 0, len(data.References.Situations))
	for _, s := range data.References.Situations {
		out = append(out, toSituation(s))
	}
	return out, nil
}

func toSituation(s situationRef) model.Situation {
	out := model.Situation{
		ID:          s.ID,
		Summary:     s.Summary.Value,
		Description: s.Description.Value,
		Severity:    s.Severity,
	}
	if len(s.ActiveWindows) > 0 {
		out.Start = utils.FromUnixMillis(s.ActiveWindows[0].From)
		out.End = utils.FromUnixMillis(s.ActiveWindows[0].To)
	}
	for _, a := range s.AllAffects {
		if a.RouteID != "" {
			out.RouteIDs = append(out.RouteIDs, a.RouteID)
		}
		if a.StopID != "" {
			out.StopIDs = append(out.StopIDs, a.StopID)
		}
	}
	return out
}

// RouteBranches turns the direction stop groupings of stops-for-route into branches.
func (c *Client) RouteBranches(ctx context.Context, routeID string) ([]model.Branch, error) {
	var data stopsForRouteData
	q := url.Values{"includePolylines": {"true"}}
	if err := c.get(ctx, "stops-for-route", routeID, q, &data); err != nil {
		return nil, err
	}
	c.rememberRoutes(data.References.Routes)

	stops := make(map[string]model.Stop, len(data.References.Stops))
	for _, s := range data.References.Stops {
		stops[s.ID] = model.Stop{
			ID:        s.ID,
			Code:      s.Code,
			Name:      s.Name,
			Latitude:  s.Lat,
			Longitude: s.Lon,
			Direction: s.Direction,
			RouteIDs:  s.RouteIDs,
		}
	}

	var branches []model.Branch
	for _, grouping := range data.Entry.StopGroupings {
		if grouping.Type != "" && grouping.Type != "direction" {
			continue
		}
		for _, g := range grouping.StopGroups {
			b := model.Branch{Name: g.Name.Name, DirectionID: g.ID}
			for _, id := range g.StopIDs {
				if s, ok := stops[id]; ok {
					b.Stops = append(b.Stops, s)
				}
			}
			b.Segments = decodePolylines(g.Polylines, c.log)
			branches = append(branches, b)
		}
	}
	if len(branches) == 0 && len(data.Entry.Polylines) > 0 {
		// routes without direction groupings get a single unnamed branch
		b := model.Branch{Segments: decodePolylines(data.Entry.Polylines, c.log)}
		for _, id := range data.Entry.StopIDs {
			if s, ok := stops[id]; ok {
				b.Stops = append(b.Stops, s)
			}
		}
		branches = append(branches, b)
	}
	return branches, nil
}

func decodePolylines(pls []encodedPolyline, log *slog.Logger) []model.LineString {
	var out []model.LineString
	for _, pl := range pls {
		coords, _, err := polyline.DecodeCoords([]byte(pl.Points))
		if err != nil {
			log.Warn("skipping undecodable polyline", "err", err)
			continue
		}
		line := make(model.LineString, 0, len(coords))
		for _, c := range coords {
			line = append(line, model.Coordinate{Latitude: c[0], Longitude: c[1]})
		}
		if len(line) > 1 {
			out = append(out, line)
		}
	}
	return out
}

// VehiclesForRoute returns the vehicles of the active trips of routeID.
func (c *Client) VehiclesForRoute(ctx context.Context, routeID string) ([]model.Vehicle, error) {
	var data tripsForRouteData
	q := url.Values{"includeStatus": {"true"}}
	if err := c.get(ctx, "trips-for-route", routeID, q, &data); err != nil {
		return nil, err
	}
	c.rememberRoutes(data.References.Routes)

	trips := make(map[string]tripRef, len(data.References.Trips))
	for _, t := range data.References.Trips {
		trips[t.ID] = t
	}
	var out []model.Vehicle
	for _, item := range data.List {
		st := item.Status
		if st == nil || st.VehicleID == "" || st.Position == nil {
			continue
		}
		tripID := st.ActiveTripID
		if tripID == "" {
			tripID = item.TripID
		}
		v := model.Vehicle{
			ID:           st.VehicleID,
			RouteID:      routeID,
			TripID:       tripID,
			TripHeadsign: trips[tripID].TripHeadsign,
			Latitude:     st.Position.Lat,
			Longitude:    st.Position.Lon,
			Heading:      st.Orientation,
			Phase:        st.Phase,
			UpdatedAt:    utils.FromUnixMillis(st.LastUpdateTime),
		}
		if st.Predicted {
			dev := st.ScheduleDeviation
			v.ScheduleDeviation = &dev
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RouteSchedule lists the first departure of every trip of routeID today.
func (c *Client) RouteSchedule(ctx context.Context, routeID string) ([]model.ScheduleEntry, error) {
	var data routeScheduleData
	if err := c.get(ctx, "schedule-for-route", routeID, nil, &data); err != nil {
		return nil, err
	}
	serviceDate := utils.FromUnixMillis(data.Entry.ServiceDate)
	var out []model.ScheduleEntry
	for _, g := range data.Entry.StopTripGroupings {
		headsign := ""
		if len(g.TripHeadsigns) > 0 {
			headsign = g.TripHeadsigns[0]
		}
		for _, tw := range g.TripsWithStopTimes {
			if len(tw.StopTimes) == 0 {
				continue
			}
			st := tw.StopTimes[0]
			out = append(out, model.ScheduleEntry{
				TripID:        tw.TripID,
				StopID:        st.StopID,
				RouteID:       routeID,
				Headsign:      headsign,
				ArrivalTime:   serviceDate.Add(time.Duration(st.ArrivalTime) * time.Second),
				DepartureTime: serviceDate.Add(time.Duration(st.DepartureTime) * time.Second),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (c *Client) rememberRoutes(routes []routeRef) {
	if len(routes) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range routes {
		c.routeNames[r.ID] = [2]string{r.ShortName, r.LongName}
	}
}

// RouteNames returns names learned from earlier responses.
func (c *Client) RouteNames(routeID string) (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.routeNames[routeID]
	return n[0], n[1], ok
}
