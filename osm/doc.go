// Package osm finds OpenStreetMap points of interest through an Overpass API and parses
// their opening_hours tags.
//
// The parser covers the forms most tags use: "24/7", weekday lists and ranges, several
// time spans per rule, spans past midnight and "off". Holiday rules (PH, SH) are skipped.
package osm
