// Package geocode turns coordinates into addresses.
//
// Mapbox calls a Mapbox-shaped reverse geocoding API. Cached puts a Redis cache in front
// of any reverse geocoder, keyed by coordinates rounded to four decimals (about 11 m).
package geocode
