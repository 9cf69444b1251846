// Package model defines the map entities shared by the selection and enrichment engine.
//
// The types are plain data:
//   - Place: search results, stored places, user-created places and transit stops
//   - Stop, Vehicle, Route, Branch: transit entities owned by the route resolver
//   - TransitInfo, ParsedHours, NearbyPlace, Photo: enrichment payloads
//
// Nothing in this package performs I/O.
package model
