// Package routes resolves transit routes into branches and tracks their live vehicles.
//
// The Resolver owns every loaded Route and its vehicle list. Vehicles belong to a route;
// which branch a vehicle runs on is decided when it is read, by
// ReconcileVehiclesToBranch, and never stored.
//
// A failed load or vehicle refresh is recorded on that route only. Other routes keep
// their data and keep tracking.
package routes
