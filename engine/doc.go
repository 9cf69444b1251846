// Package engine wires the registry, selection machine, enrichment loader, route
// resolver and camera guard into one facade.
//
// Selection changes are serialized by the engine so the loader always starts against
// the selection that was just published. Camera moves triggered by a selection or a
// branch fit run in the background through the camera guard; a move requested for a
// selection that is no longer current is skipped.
//
// Stored and created places are written through to a store.PlaceStore when one is
// configured, and LoadStoredPlaces hydrates the registry from it at startup.
package engine
