package oba

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/transitmap/enrich"
	"github.com/theoremus-urban-solutions/transitmap/model"
)

// Google's reference polyline: (38.5,-120.2) (40.7,-120.95) (43.252,-126.453)
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var fixtures = map[string]string{
	"/api/where/schedule-for-stop/1_75403.json": `{"code":200,"data":{
		"entry":{"stopId":"1_75403","stopRouteSchedules":[{"routeId":"1_100224","stopRouteDirectionSchedules":[
			{"tripHeadsign":"Downtown","scheduleStopTimes":[
				{"arrivalTime":1700003600000,"departureTime":1700003660000,"tripId":"1_t2"},
				{"arrivalTime":1700000000000,"departureTime":1700000060000,"tripId":"1_t1","stopHeadsign":"Pioneer Sq"}]}]}]},
		"references":{"agencies":[{"id":"1","name":"Metro Transit","url":"https://kingcounty.gov/metro"}]}}}`,
	"/api/where/arrivals-and-departures-for-stop/1_75403.json": `{"code":200,"data":{
		"entry":{"stopId":"1_75403","arrivalsAndDepartures":[
			{"routeId":"1_100224","routeShortName":"10","tripId":"1_t1","tripHeadsign":"Downtown","stopId":"1_75403","vehicleId":"1_4361",
			 "scheduledArrivalTime":1700000000000,"predictedArrivalTime":1700000120000,"predicted":true},
			{"routeId":"1_100224","routeShortName":"10","tripId":"1_t2","tripHeadsign":"Downtown","stopId":"1_75403",
			 "scheduledArrivalTime":1700003600000,"predictedArrivalTime":0,"predicted":false}]},
		"references":{"situations":[{"id":"1_s1","summary":{"value":"Stop closed"},"description":{"value":"Use 3rd Ave"},
			"severity":"severe","activeWindows":[{"from":1700000000000,"to":1700086400000}],
			"allAffects":[{"stopId":"1_75403"},{"routeId":"1_100224"}]}]}}}`,
	"/api/where/stops-for-route/1_100224.json": `{"code":200,"data":{
		"entry":{"routeId":"1_100224","stopGroupings":[{"type":"direction","stopGroups":[
			{"id":"0","name":{"name":"Downtown","type":"destination"},"stopIds":["1_75403","1_75404"],"polylines":[{"points":"` + samplePolyline + `"}]},
			{"id":"1","name":{"name":"Capitol Hill","type":"destination"},"stopIds":["1_75404","missing"],"polylines":[{"points":"` + samplePolyline + `"}]}]}]},
		"references":{"routes":[{"id":"1_100224","shortName":"10","longName":"Capitol Hill - Downtown"}],
			"stops":[{"id":"1_75403","name":"Pine St & 3rd","lat":47.61,"lon":-122.34,"code":"75403","direction":"W"},
			         {"id":"1_75404","name":"Pine St & 5th","lat":47.612,"lon":-122.336}]}}}`,
	"/api/where/trips-for-route/1_100224.json": `{"code":200,"data":{
		"list":[{"tripId":"1_t1","status":{"activeTripId":"1_t1","vehicleId":"1_4361","position":{"lat":47.611,"lon":-122.338},
			"orientation":270,"phase":"in_progress","predicted":true,"scheduleDeviation":95,"lastUpdateTime":1700000000000}},
			{"tripId":"1_t9","status":{"activeTripId":"1_t9","vehicleId":"","position":null}},
			{"tripId":"1_t3","status":{"activeTripId":"1_t3","vehicleId":"1_2000","position":{"lat":47.62,"lon":-122.32},"predicted":false}}],
		"references":{"trips":[{"id":"1_t1","routeId":"1_100224","tripHeadsign":"Downtown"},{"id":"1_t3","routeId":"1_100224","tripHeadsign":"Capitol Hill"}]}}}`,
	"/api/where/schedule-for-route/1_100224.json": `{"code":200,"data":{
		"entry":{"routeId":"1_100224","serviceDate":1699948800000,"stopTripGroupings":[{"directionId":"0","tripHeadsigns":["Downtown"],
			"tripsWithStopTimes":[{"tripId":"1_t2","stopTimes":[{"arrivalTime":30000,"departureTime":30060,"stopId":"1_75403"}]},
			                      {"tripId":"1_t1","stopTimes":[{"arrivalTime":28800,"departureTime":28800,"stopId":"1_75403"}]}]}]}}}`,
	"/api/where/schedule-for-stop/gone.json": `{"code":404,"text":"resource not found","data":null}`,
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "TEST" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		body, ok := fixtures[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "TEST", time.Second, nil)
}

var _ enrich.TransitService = (*Client)(nil)

func TestStopSchedule(t *testing.T) {
	c := newTestClient(t)
	sched, err := c.StopSchedule(context.Background(), "1_75403")
	require.NoError(t, err)
	require.Len(t, sched.Arrivals, 2)
	assert.Equal(t, "1_t1", sched.Arrivals[0].TripID)
	assert.Equal(t, "Pioneer Sq", sched.Arrivals[0].Headsign)
	assert.Equal(t, "Downtown", sched.Arrivals[1].Headsign)
	assert.Equal(t, int64(1700000060), sched.Arrivals[0].DepartureTime.Unix())
	require.Len(t, sched.Agencies, 1)
	assert.Equal(t, "Metro Transit", sched.Agencies[0].Name)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.StopSchedule(context.Background(), "gone")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.StopArrivals(context.Background(), "unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, enrich.ErrorKindNotFound, enrich.Classify(err))
}

func TestStopArrivalsAndSituations(t *testing.T) {
	c := newTestClient(t)
	arrivals, err := c.StopArrivals(context.Background(), "1_75403")
	require.NoError(t, err)
	require.Len(t, arrivals, 2)
	assert.True(t, arrivals[0].Predicted)
	assert.Equal(t, int64(1700000120), arrivals[0].PredictedArrival.Unix())
	assert.Equal(t, "1_4361", arrivals[0].VehicleID)
	assert.False(t, arrivals[1].Predicted)
	assert.True(t, arrivals[1].PredictedArrival.IsZero())

	sits, err := c.StopSituations(context.Background(), "1_75403")
	require.NoError(t, err)
	require.Len(t, sits, 1)
	assert.Equal(t, "Stop closed", sits[0].Summary)
	assert.Equal(t, []string{"1_75403"}, sits[0].StopIDs)
	assert.Equal(t, []string{"1_100224"}, sits[0].RouteIDs)
}

func TestRouteBranches(t *testing.T) {
	c := newTestClient(t)
	branches, err := c.RouteBranches(context.Background(), "1_100224")
	require.NoError(t, err)
	require.Len(t, branches, 2)

	assert.Equal(t, "Downtown", branches[0].Name)
	require.Len(t, branches[0].Stops, 2)
	assert.Equal(t, "W", branches[0].Stops[0].Direction)
	require.Len(t, branches[0].Segments, 1)
	require.Len(t, branches[0].Segments[0], 3)
	assert.InDelta(t, 38.5, branches[0].Segments[0][0].Latitude, 1e-6)
	assert.InDelta(t, -126.453, branches[0].Segments[0][2].Longitude, 1e-6)

	assert.Equal(t, "Capitol Hill", branches[1].Name)
	assert.Len(t, branches[1].Stops, 1, "unknown stop ids are skipped")

	short, long, ok := c.RouteNames("1_100224")
	assert.True(t, ok)
	assert.Equal(t, "10", short)
	assert.Equal(t, "Capitol Hill - Downtown", long)
}

func TestVehiclesForRoute(t *testing.T) {
	c := newTestClient(t)
	vehicles, err := c.VehiclesForRoute(context.Background(), "1_100224")
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	assert.Equal(t, "1_2000", vehicles[0].ID)
	assert.Equal(t, "Capitol Hill", vehicles[0].TripHeadsign)
	assert.Nil(t, vehicles[0].ScheduleDeviation)

	v := vehicles[1]
	assert.Equal(t, "1_4361", v.ID)
	assert.Equal(t, "Downtown", v.TripHeadsign)
	require.NotNil(t, v.Heading)
	assert.Equal(t, 270.0, *v.Heading)
	require.NotNil(t, v.ScheduleDeviation)
	assert.Equal(t, 95, *v.ScheduleDeviation)
}

func TestRouteSchedule(t *testing.T) {
	c := newTestClient(t)
	entries, err := c.RouteSchedule(context.Background(), "1_100224")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1_t1", entries[0].TripID)
	assert.Equal(t, int64(1699948800+28800), entries[0].DepartureTime.Unix())
	assert.Equal(t, "Downtown", entries[0].Headsign)
}
