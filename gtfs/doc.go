/*
Package gtfs loads a GTFS static feed and answers the route and stop questions the map
asks of it.

The loader reads the zip once and keeps an in-memory index:

  - Routes (route_id → short and long name)
  - Trips (trip_id → route, headsign, direction, shape)
  - Stops (stop_id → name, position, serving routes)
  - Stop times (trip_id → ordered calls with arrival and departure)
  - Shapes (shape_id → ordered points)

# Usage

	index, err := gtfs.LoadFile("google_transit.zip")
	if err != nil {
	    return err
	}
	branches, err := index.Branches("10")

Branches groups the trips of a route by direction and headsign. Each group is drawn from
its longest trip: the trip's shape when the feed has one, otherwise the line through its
stops.

# Caching

Parsing a large feed takes seconds. WriteCache and ReadCache store the parsed index with
encoding/gob so a restart can skip the zip.

Calendars are not evaluated: every trip is assumed to run on the requested service day.
*/
package gtfs
