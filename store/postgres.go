package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS places (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	properties   JSONB NOT NULL DEFAULT '{}'::jsonb,
	categories   INTEGER NOT NULL,
	transit_stop BOOLEAN NOT NULL DEFAULT FALSE,
	stop_id      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_places_created_at ON places(created_at);
`

// PostgresStore keeps places in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save implements PlaceStore.
func (s *PostgresStore) Save(ctx context.Context, p model.Place) error {
	r, err := toRow(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO places (id, name, type, latitude, longitude, description, properties,
			categories, transit_stop, stop_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			description = EXCLUDED.description,
			properties = EXCLUDED.properties,
			categories = EXCLUDED.categories,
			transit_stop = EXCLUDED.transit_stop,
			stop_id = EXCLUDED.stop_id,
			updated_at = NOW()`,
		r.id, r.name, r.kind, r.lat, r.lon, r.description, r.properties,
		r.categories, r.transitStop, r.stopID)
	if err != nil {
		return fmt.Errorf("failed to save place %s: %w", p.ID, err)
	}
	return nil
}

// Delete implements PlaceStore.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete place %s: %w", id, err)
	}
	return nil
}

// List implements PlaceStore.
func (s *PostgresStore) List(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, latitude, longitude, description, properties::text,
			categories, transit_stop, stop_id
		FROM places
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

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
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
