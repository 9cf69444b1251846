// Package gtfsrt fetches and indexes GTFS-Realtime protobuf feeds.
//
// It supports three feed types:
//   - Trip Updates: real-time arrival/departure predictions
//   - Vehicle Positions: current vehicle locations
//   - Service Alerts: disruptions and service changes
//
// Feed indexes one snapshot of all three. Service combines a Feed with a static
// gtfs.Index and serves the transit questions of the map: stop schedules, arrivals,
// situations, route branches and live vehicles.
package gtfsrt
