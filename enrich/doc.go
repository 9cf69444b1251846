// Package enrich loads the popup sections of the active selection.
//
// Each section (transit, hours, nearby, photos) has its own status and retry counter and
// is fetched in its own goroutine. Results carry the selection token they were started
// for; a result whose token is no longer current is dropped without touching any section.
// The address of a place is resolved alongside the sections and falls back to the
// formatted coordinate when reverse geocoding fails.
//
// Starting a new load cancels the context of the previous one. Collaborators that ignore
// the context keep running until they return; their results are then discarded.
package enrich
