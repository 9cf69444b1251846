package gtfsrt

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/transitmap/gtfs"
	"github.com/theoremus-urban-solutions/transitmap/model"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func staticIndex(t *testing.T) *gtfs.Index {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n1,Metro,https://metro.example,UTC\n",
		"routes.txt": "route_id,route_short_name,route_long_name\n10,10,Capitol Hill\n44,44,Ballard\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id\n" +
			"10,wk,t1,Downtown,0\n10,wk,t2,Downtown,0\n10,wk,t3,Eastside,1\n44,wk,t9,Ballard,0\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\nA,Pine,47.60,-122.33\nB,Pike,47.61,-122.33\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"t1,08:00:00,08:00:00,A,1\nt1,08:05:00,08:05:00,B,2\n" +
			"t2,08:20:00,08:20:00,B,1\n" +
			"t3,25:00:00,25:00:00,B,1\n" +
			"t9,08:02:00,08:02:00,A,1\n",
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	idx, err := gtfs.LoadBytes(buf.Bytes())
	require.NoError(t, err)
	return idx
}

func header() *gtfsrtpb.FeedHeader {
	return &gtfsrtpb.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
		Timestamp:           proto.Uint64(uint64(testNow.Unix())),
	}
}

func text(s string) *gtfsrtpb.TranslatedString {
	return &gtfsrtpb.TranslatedString{Translation: []*gtfsrtpb.TranslatedString_Translation{
		{Text: proto.String("texte " + s), Language: proto.String("fr")},
		{Text: proto.String(s), Language: proto.String("en")},
	}}
}

func tripUpdates() *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{Header: header(), Entity: []*gtfsrtpb.FeedEntity{
		{
			Id: proto.String("tu1"),
			TripUpdate: &gtfsrtpb.TripUpdate{
				Trip:    &gtfsrtpb.TripDescriptor{TripId: proto.String("t1"), RouteId: proto.String("10")},
				Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("v1")},
				StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String("B"),
					Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(testNow.Add(7 * time.Minute).Unix()), Delay: proto.Int32(120)},
				}},
			},
		},
		{
			Id: proto.String("tu2"),
			TripUpdate: &gtfsrtpb.TripUpdate{
				Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String("t2")},
				StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{{
					StopId:               proto.String("B"),
					ScheduleRelationship: gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED.Enum(),
				}},
			},
		},
	}}
}

func vehiclePositions() *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{Header: header(), Entity: []*gtfsrtpb.FeedEntity{
		{
			Id: proto.String("vp1"),
			Vehicle: &gtfsrtpb.VehiclePosition{
				Trip:     &gtfsrtpb.TripDescriptor{TripId: proto.String("t1")},
				Position: &gtfsrtpb.Position{Latitude: proto.Float32(47.605), Longitude: proto.Float32(-122.33), Bearing: proto.Float32(90)},
			},
		},
		{
			Id: proto.String("vp2"),
			Vehicle: &gtfsrtpb.VehiclePosition{
				Trip:          &gtfsrtpb.TripDescriptor{TripId: proto.String("t3"), RouteId: proto.String("10")},
				Vehicle:       &gtfsrtpb.VehicleDescriptor{Id: proto.String("v2")},
				Position:      &gtfsrtpb.Position{Latitude: proto.Float32(47.61), Longitude: proto.Float32(-122.33)},
				CurrentStatus: gtfsrtpb.VehiclePosition_STOPPED_AT.Enum(),
			},
		},
	}}
}

func alerts() *gtfsrtpb.FeedMessage {
	entity := func(id string, ie *gtfsrtpb.EntitySelector) *gtfsrtpb.FeedEntity {
		return &gtfsrtpb.FeedEntity{
			Id: proto.String(id),
			Alert: &gtfsrtpb.Alert{
				InformedEntity: []*gtfsrtpb.EntitySelector{ie},
				HeaderText:     text(id + " header"),
			},
		}
	}
	return &gtfsrtpb.FeedMessage{Header: header(), Entity: []*gtfsrtpb.FeedEntity{
		entity("a1", &gtfsrtpb.EntitySelector{StopId: proto.String("B")}),
		entity("a2", &gtfsrtpb.EntitySelector{RouteId: proto.String("10")}),
		entity("a3", &gtfsrtpb.EntitySelector{RouteId: proto.String("44")}),
	}}
}

type feedServer struct {
	*httptest.Server
	hits atomic.Int32
	fail atomic.Bool
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{}
	bodies := map[string]*gtfsrtpb.FeedMessage{
		"/tu": tripUpdates(),
		"/vp": vehiclePositions(),
		"/sa": alerts(),
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if fs.fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fm, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		b, err := proto.Marshal(fm)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newTestService(t *testing.T, fs *feedServer, now *time.Time) *Service {
	return NewService(staticIndex(t), NewClient(time.Second, "", ""), Feeds{
		TripUpdatesURL:      fs.URL + "/tu",
		VehiclePositionsURL: fs.URL + "/vp",
		ServiceAlertsURL:    fs.URL + "/sa",
	}, ServiceOptions{Now: func() time.Time { return *now }})
}

func TestStopArrivalsMergesPredictionsAndSchedule(t *testing.T) {
	now := testNow
	svc := newTestService(t, newFeedServer(t), &now)

	arrivals, err := svc.StopArrivals(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, arrivals, 2)

	assert.Equal(t, "t1", arrivals[0].TripID)
	assert.True(t, arrivals[0].Predicted)
	assert.Equal(t, "v1", arrivals[0].VehicleID)
	assert.Equal(t, "Downtown", arrivals[0].TripHeadsign)
	assert.Equal(t, "10", arrivals[0].RouteShortName)
	assert.True(t, arrivals[0].ScheduledArrival.Equal(testNow.Add(5*time.Minute)))
	assert.True(t, arrivals[0].PredictedArrival.Equal(testNow.Add(7*time.Minute)))

	// t2 is skipped at B, so the schedule stands in for it
	assert.Equal(t, "t2", arrivals[1].TripID)
	assert.False(t, arrivals[1].Predicted)

	_, err = svc.StopArrivals(context.Background(), "Z")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestVehiclesForRoute(t *testing.T) {
	now := testNow
	svc := newTestService(t, newFeedServer(t), &now)

	vehicles, err := svc.VehiclesForRoute(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	v1 := vehicles[0]
	assert.Equal(t, "v1", v1.ID)
	assert.Equal(t, "Downtown", v1.TripHeadsign)
	require.NotNil(t, v1.Heading)
	assert.Equal(t, 90.0, *v1.Heading)
	require.NotNil(t, v1.ScheduleDeviation)
	assert.Equal(t, 120, *v1.ScheduleDeviation)
	assert.Equal(t, "in_progress", v1.Phase)

	assert.Equal(t, "Eastside", vehicles[1].TripHeadsign)
	assert.Equal(t, "stopped", vehicles[1].Phase)
}

func TestStopSituations(t *testing.T) {
	now := testNow
	svc := newTestService(t, newFeedServer(t), &now)

	sits, err := svc.StopSituations(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, sits, 2)
	assert.Equal(t, "a1", sits[0].ID)
	assert.Equal(t, "a1 header", sits[0].Summary)
	assert.Equal(t, "a2", sits[1].ID)
}

func TestSnapshotReuseAndFallback(t *testing.T) {
	now := testNow
	fs := newFeedServer(t)
	svc := newTestService(t, fs, &now)
	ctx := context.Background()

	_, err := svc.VehiclesForRoute(ctx, "10")
	require.NoError(t, err)
	assert.EqualValues(t, 3, fs.hits.Load())

	_, err = svc.VehiclesForRoute(ctx, "10")
	require.NoError(t, err)
	assert.EqualValues(t, 3, fs.hits.Load(), "snapshot reused within MaxAge")

	fs.fail.Store(true)
	now = now.Add(time.Minute)
	vehicles, err := svc.VehiclesForRoute(ctx, "10")
	require.NoError(t, err, "previous snapshot served when refresh fails")
	assert.Len(t, vehicles, 2)
}

func TestRefreshFailureWithoutSnapshot(t *testing.T) {
	now := testNow
	fs := newFeedServer(t)
	fs.fail.Store(true)
	svc := newTestService(t, fs, &now)

	_, err := svc.VehiclesForRoute(context.Background(), "10")
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a protobuf"))
	assert.Error(t, err)
}
