package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/engine"
	"github.com/theoremus-urban-solutions/transitmap/model"
)

type fakeRoutes struct{}

func (fakeRoutes) RouteBranches(ctx context.Context, routeID string) ([]model.Branch, error) {
	if routeID != "r8" {
		return nil, model.ErrNotFound
	}
	stops := []model.Stop{{ID: "a", Latitude: 47.60, Longitude: -122.33}, {ID: "b", Latitude: 47.62, Longitude: -122.31}}
	return []model.Branch{{Name: "Mount Baker", Stops: stops}, {Name: "Seattle Center", Stops: stops}}, nil
}

func (fakeRoutes) RouteSchedule(ctx context.Context, routeID string) ([]model.ScheduleEntry, error) {
	return nil, nil
}

func (fakeRoutes) VehiclesForRoute(ctx context.Context, routeID string) ([]model.Vehicle, error) {
	return []model.Vehicle{{ID: "v1", RouteID: routeID, TripHeadsign: "Downtown"}}, nil
}

func newServer(t *testing.T) (*Server, *camera.RemotePort) {
	t.Helper()
	remote := camera.NewRemotePort(0)
	eng := engine.New(engine.Config{Routes: fakeRoutes{}, Camera: remote, VehiclePollInterval: time.Hour})
	t.Cleanup(eng.Close)
	return New(eng, Options{Remote: remote}), remote
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newServer(t)
	rec := do(t, s, "GET", "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Status)

	rec = do(t, s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transitmap_http_request_duration_ms")
}

func TestSelectionLifecycle(t *testing.T) {
	s, remote := newServer(t)

	rec := do(t, s, "PUT", "/api/search-results", `[{"id":"p1","name":"Cafe","latitude":47.6,"longitude":-122.3}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, "POST", "/api/selection/place/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[engine.State](t, rec)
	require.NotNil(t, state.Selection)
	assert.Equal(t, "p1", state.Selection.Place.ID)

	rec = do(t, s, "POST", "/api/selection/place/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, "POST", "/api/sections/photos/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, s, "POST", "/api/sections/weather/retry", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Eventually(t, func() bool { return len(remote.Pending()) == 1 }, 2*time.Second, 5*time.Millisecond)
	reqs := decode[[]camera.Request](t, do(t, s, "GET", "/api/camera/requests", ""))
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Target.Center)
	path := "/api/camera/complete/" + jsonNumber(reqs[0].ID)
	assert.Equal(t, http.StatusNoContent, do(t, s, "POST", path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "POST", path, "").Code)

	rec = do(t, s, "POST", "/api/map/click", "")
	assert.Equal(t, map[string]bool{"cleared": true}, decode[map[string]bool](t, rec))
	state = decode[engine.State](t, do(t, s, "GET", "/api/selection", ""))
	assert.Nil(t, state.Selection)
}

func jsonNumber(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestPlacesEndpoints(t *testing.T) {
	s, _ := newServer(t)

	rec := do(t, s, "POST", "/api/places", `{"name":"Home","latitude":47.6,"longitude":-122.3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Place](t, rec)
	assert.NotEmpty(t, created.ID)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "POST", "/api/places", `{"name":"","latitude":1,"longitude":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "POST", "/api/places", `{"name":"x","latitude":100,"longitude":1}`).Code)

	list := decode[[]model.Place](t, do(t, s, "GET", "/api/places?category=created", ""))
	require.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "GET", "/api/places?category=bogus", "").Code)

	do(t, s, "PUT", "/api/search-results", `[{"id":"p1","name":"Cafe","latitude":1,"longitude":2}]`)
	rec = do(t, s, "POST", "/api/places/p1/save", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Place](t, rec).Categories.Has(model.CategoryStored))
	assert.Len(t, decode[[]model.Place](t, do(t, s, "GET", "/api/places", "")), 2)

	assert.Equal(t, http.StatusOK, do(t, s, "DELETE", "/api/places/p1/save", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/api/places/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "DELETE", "/api/places/"+created.ID, "").Code)
}

func TestRouteEndpoints(t *testing.T) {
	s, _ := newServer(t)

	assert.Equal(t, http.StatusConflict, do(t, s, "POST", "/api/routes/r8/branch/1", "").Code)

	rec := do(t, s, "POST", "/api/routes/r8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.Route](t, rec).Branches, 2)

	rec = do(t, s, "POST", "/api/routes/r8/branch/99", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.Route](t, rec).SelectedBranchIndex)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "POST", "/api/routes/r8/branch/x", "").Code)

	require.Eventually(t, func() bool {
		return len(decode[[]model.Vehicle](t, do(t, s, "GET", "/api/routes/r8/vehicles", ""))) == 1
	}, 2*time.Second, 5*time.Millisecond, "headsign mismatch falls back to every vehicle")

	assert.Equal(t, http.StatusNotFound, do(t, s, "POST", "/api/routes/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/api/routes/nope", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/api/routes/r8", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/api/routes/r8", "").Code)
}

func TestCameraMoved(t *testing.T) {
	s, _ := newServer(t)
	rec := do(t, s, "POST", "/api/camera/moved", `{"view":{"center":{"lat":47.6,"lon":-122.3},"zoom":13},"userOriginated":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Eventually(t, func() bool {
		return decode[camera.View](t, do(t, s, "GET", "/api/camera/view", "")).Zoom == 13
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "POST", "/api/camera/moved", `{`).Code)
}

func TestCameraViewIgnoresEventsDuringFly(t *testing.T) {
	s, remote := newServer(t)
	require.Equal(t, http.StatusOK, do(t, s, "PUT", "/api/search-results",
		`[{"id":"p1","name":"Cafe","latitude":47.6,"longitude":-122.3}]`).Code)
	require.Equal(t, http.StatusOK, do(t, s, "POST", "/api/selection/place/p1", "").Code)
	require.Eventually(t, func() bool { return len(remote.Pending()) == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := do(t, s, "POST", "/api/camera/moved", `{"view":{"center":{"lat":47.6,"lon":-122.3},"zoom":99}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	view := decode[camera.View](t, do(t, s, "GET", "/api/camera/view", ""))
	assert.Equal(t, camera.View{}, view)

	path := "/api/camera/complete/" + jsonNumber(remote.Pending()[0].ID)
	require.Equal(t, http.StatusNoContent, do(t, s, "POST", path, "").Code)
	view = decode[camera.View](t, do(t, s, "GET", "/api/camera/view", ""))
	assert.Equal(t, camera.View{}, view)
}
