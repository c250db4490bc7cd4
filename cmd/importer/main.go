// Command transitcat-import bulk-loads a JSON request document's
// base_requests into the Postgres schema internal/ingest.Source reads
// back from. transitcat-server does not load its catalogue from that
// schema; it builds one per /query call from the posted document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/antigravity/transitcat/internal/catalogue"
	"github.com/antigravity/transitcat/internal/dispatch"
	"github.com/antigravity/transitcat/internal/ingest"
	"github.com/antigravity/transitcat/internal/jsonval"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON request document (required)")
	dsn := flag.String("dsn", "", "Postgres connection string (required)")
	flag.Parse()

	if *inputPath == "" || *dsn == "" {
		fmt.Println("Usage: transitcat-import --input=<requests.json> --dsn=<postgres-url>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer f.Close()

	doc, err := jsonval.Parse(f)
	if err != nil {
		log.Fatalf("Failed to parse request document: %v", err)
	}

	cat, err := catalogueFromRequestDocument(doc)
	if err != nil {
		log.Fatalf("Failed to build catalogue from request document: %v", err)
	}
	log.Printf("Parsed %d stops, %d buses", len(cat.AllStops()), len(cat.AllBuses()))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := ingest.Pool(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	sink := ingest.NewSink(pool)
	if err := sink.Store(ctx, cat); err != nil {
		log.Fatalf("Failed to store catalogue: %v", err)
	}

	log.Println("Import completed successfully")
}

// catalogueFromRequestDocument exposes dispatch's base_requests
// ingestion for reuse outside a full dispatch.Run call: the importer
// only needs a populated Catalogue, not a stat_requests answer.
func catalogueFromRequestDocument(doc jsonval.Value) (*catalogue.Catalogue, error) {
	root, err := doc.Object()
	if err != nil {
		return nil, fmt.Errorf("root is not an object: %w", err)
	}
	cat := catalogue.New()
	if err := dispatch.LoadBaseRequests(cat, root); err != nil {
		return nil, err
	}
	return cat, nil
}
