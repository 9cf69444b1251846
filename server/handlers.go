package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/transitmap/camera"
	"github.com/theoremus-urban-solutions/transitmap/enrich"
	"github.com/theoremus-urban-solutions/transitmap/engine"
	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/registry"
	"github.com/theoremus-urban-solutions/transitmap/routes"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

type healthResponse struct {
	Status    string `json:"status"`
	Selection uint64 `json:"selection"`
	Routes    int    `json:"routes"`
	Timestamp string `json:"timestamp"`
}

type createPlaceRequest struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrUnknownPlace), errors.Is(err, engine.ErrUnknownVehicle),
		errors.Is(err, model.ErrNotFound), errors.Is(err, camera.ErrUnknownRequest):
		status = http.StatusNotFound
	case errors.Is(err, routes.ErrRouteNotLoaded):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNoTransit):
		status = http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrInvalidCategory), errors.Is(err, registry.ErrEmptyID):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: utils.Iso8601(time.Now())}
	if sel, ok := s.eng.Selection().Current(); ok {
		resp.Selection = uint64(sel.Token)
	}
	if res := s.eng.Resolver(); res != nil {
		resp.Routes = len(res.Loaded())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.State())
}

func (s *Server) handleSelectPlace(w http.ResponseWriter, r *http.Request) {
	if _, err := s.eng.SelectPlace(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.State())
}

func (s *Server) handleSelectVehicle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.eng.SelectVehicle(chi.URLParam(r, "routeID"), chi.URLParam(r, "vehicleID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.State())
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.eng.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMapClick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": s.eng.HandleMapClick()})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	kind, ok := enrich.ParseSectionKind(chi.URLParam(r, "kind"))
	if !ok {
		badRequest(w, "unknown section "+chi.URLParam(r, "kind"))
		return
	}
	if !s.eng.RetrySection(kind) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "section " + string(kind) + " is not in error"})
		return
	}
	writeJSON(w, http.StatusAccepted, s.eng.State())
}

func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if q := r.URL.Query().Get("category"); q != "" {
		parsed, ok := model.ParseCategory(q)
		if !ok {
			badRequest(w, "unknown category "+q)
			return
		}
		c = parsed
	}
	writeJSON(w, http.StatusOK, s.eng.Places(c))
}

func (s *Server) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var req createPlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		badRequest(w, "coordinates out of range")
		return
	}
	p, err := s.eng.CreatePlace(r.Context(), req.Name, req.Latitude, req.Longitude, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleSavePlace(w http.ResponseWriter, r *http.Request) {
	p, err := s.eng.SavePlace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUnsavePlace(w http.ResponseWriter, r *http.Request) {
	p, err := s.eng.UnsavePlace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlace(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.DeletePlace(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchResults(w http.ResponseWriter, r *http.Request) {
	var places []model.Place
	if err := json.NewDecoder(r.Body).Decode(&places); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.SetSearchResults(places))
}

func (s *Server) handleShowRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.eng.ShowRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleHideRoute(w http.ResponseWriter, r *http.Request) {
	s.eng.HideRoute(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.eng.Route(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleSelectBranch(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "branch index must be an integer")
		return
	}
	rt, err := s.eng.SelectBranch(chi.URLParam(r, "id"), idx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleRouteVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles := s.eng.RouteVehicles(chi.URLParam(r, "id"))
	if vehicles == nil {
		vehicles = []model.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleCameraMoved(w http.ResponseWriter, r *http.Request) {
	var ev camera.MoveEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	s.eng.HandleCameraMove(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCameraView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Camera().View())
}

func (s *Server) handleCameraRequests(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		writeJSON(w, http.StatusOK, []camera.Request{})
		return
	}
	pending := s.remote.Pending()
	if pending == nil {
		pending = []camera.Request{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleCameraComplete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "request id must be an integer")
		return
	}
	if s.remote == nil {
		writeError(w, camera.ErrUnknownRequest)
		return
	}
	if err := s.remote.Complete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
