// Package store persists stored and created places so they survive restarts.
//
// Two backends implement PlaceStore: SQLite through modernc.org/sqlite (the default, a
// single file next to the binary) and Postgres through a pgx connection pool. Only the
// stored and created categories are written; search results are never persisted.
package store
