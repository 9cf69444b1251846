// Package registry merges search results, stored places and user-created places into one
// in-memory collection keyed by place id.
//
// A place may carry several origin tags at once (a search result that was saved is both
// "search" and "stored"); ListByCategory returns it in each matching list and Visible
// returns the union by id. The registry does no I/O: persistence of stored and created
// places is handled by the engine through a store.
package registry
