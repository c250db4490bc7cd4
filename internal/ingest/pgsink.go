package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antigravity/transitcat/internal/catalogue"
)

// Sink writes a populated Catalogue into the Postgres tables Source
// reads back from, so a JSON base_requests document can be bulk-loaded
// once and later read back into a Catalogue by Source.
type Sink struct {
	db *pgxpool.Pool
}

// NewSink wraps an existing connection pool.
func NewSink(db *pgxpool.Pool) *Sink {
	return &Sink{db: db}
}

// Store writes every stop and bus from cat into the database,
// overwriting any existing row with the same key. Distance rows are
// written only for the consecutive stop pairs some bus travels, with
// the fallback-resolved value of cat.Distance; other declared
// road_distances rows are not written.
func (s *Sink) Store(ctx context.Context, cat *catalogue.Catalogue) error {
	if err := s.storeStops(ctx, cat); err != nil {
		return fmt.Errorf("ingest: store stops: %w", err)
	}
	if err := s.storeDistances(ctx, cat); err != nil {
		return fmt.Errorf("ingest: store distances: %w", err)
	}
	if err := s.storeBuses(ctx, cat); err != nil {
		return fmt.Errorf("ingest: store buses: %w", err)
	}
	return nil
}

func (s *Sink) storeStops(ctx context.Context, cat *catalogue.Catalogue) error {
	batch := &pgx.Batch{}
	for _, stop := range cat.AllStops() {
		batch.Queue(`
			INSERT INTO stop (name, lat, lon)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET lat = EXCLUDED.lat, lon = EXCLUDED.lon
		`, stop.Name, stop.Coordinates.Lat, stop.Coordinates.Lng)
	}
	return s.execBatch(ctx, batch)
}

func (s *Sink) storeDistances(ctx context.Context, cat *catalogue.Catalogue) error {
	batch := &pgx.Batch{}
	seen := make(map[[2]catalogue.StopID]struct{})
	for _, bus := range cat.AllBuses() {
		for i := 1; i < len(bus.Stops); i++ {
			pair := [2]catalogue.StopID{bus.Stops[i-1], bus.Stops[i]}
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			meters := cat.Distance(pair[0], pair[1])
			batch.Queue(`
				INSERT INTO road_distance (from_stop, to_stop, meters)
				VALUES ($1, $2, $3)
				ON CONFLICT (from_stop, to_stop) DO UPDATE SET meters = EXCLUDED.meters
			`, cat.Stop(pair[0]).Name, cat.Stop(pair[1]).Name, meters)
		}
	}
	return s.execBatch(ctx, batch)
}

func (s *Sink) storeBuses(ctx context.Context, cat *catalogue.Catalogue) error {
	busBatch := &pgx.Batch{}
	stopBatch := &pgx.Batch{}

	for _, bus := range cat.AllBuses() {
		busBatch.Queue(`
			INSERT INTO bus (name, is_roundtrip)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET is_roundtrip = EXCLUDED.is_roundtrip
		`, bus.Name, bus.IsRoundtrip)

		declared := declaredSequence(bus)
		for i, sid := range declared {
			stopBatch.Queue(`
				INSERT INTO bus_stop (bus_name, stop_name, sequence)
				VALUES ($1, $2, $3)
				ON CONFLICT (bus_name, sequence) DO UPDATE SET stop_name = EXCLUDED.stop_name
			`, bus.Name, cat.Stop(sid).Name, i)
		}
	}

	if err := s.execBatch(ctx, busBatch); err != nil {
		return err
	}
	return s.execBatch(ctx, stopBatch)
}

// declaredSequence undoes a non-roundtrip bus's palindrome expansion,
// since bus_stop stores the declared sequence, not the expanded one
// (AddBus re-expands it on the way back in).
func declaredSequence(bus catalogue.Bus) []catalogue.StopID {
	if bus.IsRoundtrip {
		return bus.Stops
	}
	half := len(bus.Stops)/2 + 1
	return bus.Stops[:half]
}

func (s *Sink) execBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}
	return nil
}
