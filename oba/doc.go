// Package oba is a client for OneBusAway-shaped REST transit APIs.
//
// It serves stop schedules, arrivals and situations for the transit section, and
// route branches and live vehicles for the route resolver. Branches come from the
// stop groupings of stops-for-route; their shapes are Google encoded polylines.
package oba
