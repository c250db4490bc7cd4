// Package ingest loads a Catalogue from a Postgres-backed schema, as
// an alternative to the JSON base_requests path in internal/dispatch.
// Both paths converge on the same Catalogue mutation calls, so a
// catalogue populated from either source behaves identically to the
// renderer and router built on top of it.
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antigravity/transitcat/internal/catalogue"
	"github.com/antigravity/transitcat/internal/geo"
)

// Source reads a transit dataset from Postgres tables:
//
//	stop(name TEXT PRIMARY KEY, lat DOUBLE PRECISION, lon DOUBLE PRECISION)
//	bus(name TEXT PRIMARY KEY, is_roundtrip BOOLEAN)
//	bus_stop(bus_name TEXT, stop_name TEXT, sequence INT)
//	road_distance(from_stop TEXT, to_stop TEXT, meters INT)
type Source struct {
	db *pgxpool.Pool
}

// NewSource wraps an existing connection pool.
func NewSource(db *pgxpool.Pool) *Source {
	return &Source{db: db}
}

// Load populates cat from the database, in the same stops-then-
// distances-then-buses order the JSON ingestion path uses, since a
// bus or a distance row can only name stops already registered.
func (s *Source) Load(ctx context.Context, cat *catalogue.Catalogue) error {
	if err := s.loadStops(ctx, cat); err != nil {
		return fmt.Errorf("ingest: load stops: %w", err)
	}
	if err := s.loadDistances(ctx, cat); err != nil {
		return fmt.Errorf("ingest: load distances: %w", err)
	}
	if err := s.loadBuses(ctx, cat); err != nil {
		return fmt.Errorf("ingest: load buses: %w", err)
	}
	return nil
}

func (s *Source) loadStops(ctx context.Context, cat *catalogue.Catalogue) error {
	rows, err := s.db.Query(ctx, `SELECT name, lat, lon FROM stop ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var lat, lon float64
		if err := rows.Scan(&name, &lat, &lon); err != nil {
			return err
		}
		coords := geo.Coordinates{Lat: lat, Lng: lon}
		if err := coords.Validate(); err != nil {
			return fmt.Errorf("stop %q: %w", name, err)
		}
		if _, err := cat.AddStop(name, coords); err != nil {
			return fmt.Errorf("stop %q: %w", name, err)
		}
	}
	return rows.Err()
}

func (s *Source) loadDistances(ctx context.Context, cat *catalogue.Catalogue) error {
	rows, err := s.db.Query(ctx, `SELECT from_stop, to_stop, meters FROM road_distance`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var from, to string
		var meters int
		if err := rows.Scan(&from, &to, &meters); err != nil {
			return err
		}
		if err := cat.AddDistance(from, to, meters); err != nil {
			return fmt.Errorf("distance %s->%s: %w", from, to, err)
		}
	}
	return rows.Err()
}

func (s *Source) loadBuses(ctx context.Context, cat *catalogue.Catalogue) error {
	buses, err := s.busRoster(ctx)
	if err != nil {
		return err
	}

	stopsByBus, err := s.stopSequences(ctx)
	if err != nil {
		return err
	}

	for _, bus := range buses {
		if _, err := cat.AddBus(bus.name, stopsByBus[bus.name], bus.isRoundtrip); err != nil {
			return fmt.Errorf("bus %q: %w", bus.name, err)
		}
	}
	return nil
}

type busRow struct {
	name        string
	isRoundtrip bool
}

func (s *Source) busRoster(ctx context.Context) ([]busRow, error) {
	rows, err := s.db.Query(ctx, `SELECT name, is_roundtrip FROM bus ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buses []busRow
	for rows.Next() {
		var b busRow
		if err := rows.Scan(&b.name, &b.isRoundtrip); err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	return buses, rows.Err()
}

// stopSequences returns, per bus, its declared stop names ordered by
// sequence (not yet palindrome-expanded — AddBus does that).
func (s *Source) stopSequences(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT bus_name, stop_name, sequence
		FROM bus_stop
		ORDER BY bus_name, sequence
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type seqEntry struct {
		stopName string
		sequence int
	}
	raw := make(map[string][]seqEntry)
	for rows.Next() {
		var busName, stopName string
		var sequence int
		if err := rows.Scan(&busName, &stopName, &sequence); err != nil {
			return nil, err
		}
		raw[busName] = append(raw[busName], seqEntry{stopName: stopName, sequence: sequence})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]string, len(raw))
	for busName, entries := range raw {
		sort.Slice(entries, func(i, j int) bool { return entries[i].sequence < entries[j].sequence })
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.stopName
		}
		result[busName] = names
	}
	return result, nil
}

// Pool parses connString as a pgx connection string, switches the pool
// to the simple query protocol, and returns a ready pool.
func Pool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse connection string: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return pgxpool.NewWithConfig(ctx, cfg)
}
