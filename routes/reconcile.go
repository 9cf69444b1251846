package routes

import (
	"strings"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// ReconcileVehiclesToBranch returns the vehicles shown for a branch.
//
// A vehicle matches when its trip headsign, trimmed and lowercased, contains the branch
// name, or when it has no headsign at all. When nothing matches but vehicles exist the
// whole list is returned: headsign conventions drift between feeds, and showing every
// vehicle of the route is preferred over showing none. An empty branch name also
// returns every vehicle.
//
// TODO(product): confirm the all-vehicles fallback; a strict filter would return an empty
// list for a mismatched branch name.
func ReconcileVehiclesToBranch(vehicles []model.Vehicle, branchName string) []model.Vehicle {
	name := normalizeHeadsign(branchName)
	if name == "" {
		return append([]model.Vehicle(nil), vehicles...)
	}
	out := make([]model.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		hs := normalizeHeadsign(v.TripHeadsign)
		if hs == "" || strings.Contains(hs, name) {
			out = append(out, v)
		}
	}
	if len(out) == 0 && len(vehicles) > 0 {
		return append([]model.Vehicle(nil), vehicles...)
	}
	return out
}

func normalizeHeadsign(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
