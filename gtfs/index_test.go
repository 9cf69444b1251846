package gtfs

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fixtureFeed(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"1,Metro,https://metro.example,UTC\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"10,1,10,Capitol Hill,3\n" +
			"44,1,44,Ballard,3\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id\n" +
			"10,wk,t1,Downtown,0,\n" +
			"10,wk,t2,Downtown,0,\n" +
			"10,wk,t3,Eastside,1,s1\n",
		"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
			"A,100,Pine St,47.600,-122.330\n" +
			"B,101,Pike St,47.610,-122.330\n" +
			"C,102,Union St,47.620,-122.330\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"t1,08:00:00,08:00:00,A,1\n" +
			"t1,08:05:00,08:05:30,B,2\n" +
			"t1,08:10:00,08:10:00,C,3\n" +
			"t2,07:30:00,07:30:00,A,1\n" +
			"t2,07:35:00,07:35:00,B,2\n" +
			"t3,25:10:00,25:10:00,C,2\n" +
			"t3,25:00:00,25:00:00,B,1\n",
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
			"s1,47.615,-122.331,2\n" +
			"s1,47.610,-122.330,1\n" +
			"s1,47.620,-122.330,3\n",
	})
}

func TestBranches(t *testing.T) {
	g, err := LoadBytes(fixtureFeed(t))
	require.NoError(t, err)

	branches, err := g.Branches("10")
	require.NoError(t, err)
	require.Len(t, branches, 2)

	assert.Equal(t, "Downtown", branches[0].Name)
	assert.Equal(t, "0", branches[0].DirectionID)
	require.Len(t, branches[0].Stops, 3, "longest trip stands for the branch")
	assert.Equal(t, []string{"10"}, branches[0].Stops[0].RouteIDs)
	require.Len(t, branches[0].Segments, 1)
	assert.Len(t, branches[0].Segments[0], 3)

	assert.Equal(t, "Eastside", branches[1].Name)
	require.Len(t, branches[1].Stops, 2)
	assert.Equal(t, "B", branches[1].Stops[0].ID, "stop times ordered by sequence")
	require.Len(t, branches[1].Segments, 1)
	assert.Equal(t, model.Coordinate{Latitude: 47.615, Longitude: -122.331}, branches[1].Segments[0][1])

	_, err = g.Branches("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	empty, err := g.Branches("44")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStopSchedule(t *testing.T) {
	g, err := LoadBytes(fixtureFeed(t))
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, g.Location())

	sched, err := g.StopSchedule("B", day)
	require.NoError(t, err)
	require.Len(t, sched.Arrivals, 3)
	assert.Equal(t, "t2", sched.Arrivals[0].TripID)
	assert.WithinDuration(t, time.Date(2026, 3, 2, 7, 35, 0, 0, g.Location()), sched.Arrivals[0].ArrivalTime, 0)
	assert.WithinDuration(t, time.Date(2026, 3, 2, 8, 5, 30, 0, g.Location()), sched.Arrivals[1].DepartureTime, 0)
	assert.WithinDuration(t, time.Date(2026, 3, 3, 1, 0, 0, 0, g.Location()), sched.Arrivals[2].ArrivalTime, 0)
	assert.Equal(t, "Eastside", sched.Arrivals[2].Headsign)
	require.Len(t, sched.Agencies, 1)
	assert.Equal(t, "Metro", sched.Agencies[0].Name)

	_, err = g.StopSchedule("Z", day)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRouteSchedule(t *testing.T) {
	g, err := LoadBytes(fixtureFeed(t))
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, g.Location())

	entries := g.RouteSchedule("10", day)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"t2", "t1", "t3"}, []string{entries[0].TripID, entries[1].TripID, entries[2].TripID})
	assert.Equal(t, "B", entries[2].StopID)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"08:05:30", 8*time.Hour + 5*time.Minute + 30*time.Second, false},
		{"25:00:00", 25 * time.Hour, false},
		{"7:00:00", 7 * time.Hour, false},
		{"08:61:00", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	g, err := LoadBytes(fixtureFeed(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCache(g, &buf))
	back, err := ReadCache(&buf)
	require.NoError(t, err)

	want, err := g.Branches("10")
	require.NoError(t, err)
	got, err := back.Branches("10")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	short, long, ok := back.RouteNames("10")
	assert.True(t, ok)
	assert.Equal(t, "10", short)
	assert.Equal(t, "Capitol Hill", long)
}

func TestLoadRejectsFeedWithoutRoutes(t *testing.T) {
	_, err := LoadBytes(buildZip(t, map[string]string{"stops.txt": "stop_id\nA\n"}))
	assert.Error(t, err)
}
