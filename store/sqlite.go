package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS places (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT '',
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	properties   TEXT NOT NULL DEFAULT '{}',
	categories   INTEGER NOT NULL,
	transit_stop INTEGER NOT NULL DEFAULT 0,
	stop_id      TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_places_created_at ON places(created_at);
`

// sqliteTime has a fixed width so created_at sorts as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps places in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path in WAL mode and creates the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "transitmap.db"
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements PlaceStore.
func (s *SQLiteStore) Save(ctx context.Context, p model.Place) error {
	r, err := toRow(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(sqliteTime)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO places (id, name, type, latitude, longitude, description, properties,
			categories, transit_stop, stop_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			description = excluded.description,
			properties = excluded.properties,
			categories = excluded.categories,
			transit_stop = excluded.transit_stop,
			stop_id = excluded.stop_id,
			updated_at = excluded.updated_at`,
		r.id, r.name, r.kind, r.lat, r.lon, r.description, r.properties,
		r.categories, r.transitStop, r.stopID, now, now)
	if err != nil {
		return fmt.Errorf("failed to save place %s: %w", p.ID, err)
	}
	return nil
}

// Delete implements PlaceStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM places WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete place %s: %w", id, err)
	}
	return nil
}

// List implements PlaceStore.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, latitude, longitude, description, properties,
			categories, transit_stop, stop_id
		FROM places
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Place
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.kind, &r.lat, &r.lon, &r.description,
			&r.properties, &r.categories, &r.transitStop, &r.stopID); err != nil {
			return nil, fmt.Errorf("failed to scan place row: %w", err)
		}
		p, err := r.place()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating place rows: %w", err)
	}
	return out, nil
}

// Close implements PlaceStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
