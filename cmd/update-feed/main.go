// Command update-feed runs the full feed build: fetch new timetable data,
// render the store into a GTFS bundle, then clean and shape-match it with
// the external tools.
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/zpcg-gtfs/feedbuilder/internal/config"
	"github.com/zpcg-gtfs/feedbuilder/internal/db"
	"github.com/zpcg-gtfs/feedbuilder/internal/fetcher"
	"github.com/zpcg-gtfs/feedbuilder/internal/gtfs"
	"github.com/zpcg-gtfs/feedbuilder/internal/hafas"
	"github.com/zpcg-gtfs/feedbuilder/internal/pipeline"
	"github.com/zpcg-gtfs/feedbuilder/internal/stations"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to feed configuration")
	skipFetch := flag.Bool("skip-fetch", false, "Render and clean the existing store without fetching")
	delayRetention := flag.Duration("delay-retention", 12*time.Hour, "How long to keep realtime delay records")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rawZip := filepath.Join(cfg.OutputDir, "gtfs.zip")
	feedZip := cfg.Feed.Name + ".gtfs.zip"

	clean := pipeline.CleanStage("gtfs.zip", filepath.Join("..", feedZip))
	clean.Dir = cfg.OutputDir
	stages := []pipeline.Stage{clean}
	if cfg.OSM.RoutesExtract != "" {
		stages = append(stages,
			pipeline.ShapeStage(feedZip, cfg.OSM.RoutesExtract),
			pipeline.CleanDefaultStage(feedZip, feedZip),
		)
	}
	tools := pipeline.New(stages...)

	// A missing binary fails the run before any fetching happens.
	if err := tools.Preflight(); err != nil {
		log.Fatalf("Pipeline preflight failed: %v", err)
	}

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	if !*skipFetch {
		index, err := stations.Load(cfg.OSM.StationsGeoJSON)
		if err != nil {
			log.Fatalf("Failed to load station index: %v", err)
		}

		client := hafas.NewClient(cfg.Hafas.BaseURL, cfg.Hafas.MaxResults, cfg.Hafas.Products, cfg.HTTPTimeout())
		report, err := fetcher.New(database, client, index, cfg).Run(ctx)
		if err != nil {
			log.Fatalf("Fetch run failed: %v", err)
		}
		if report.Stats.StationsOK == 0 {
			log.Fatalf("All %d stations failed, not publishing a feed", report.Stats.StationsFailed)
		}

		if err := database.PruneStaleDelays(ctx, *delayRetention); err != nil {
			log.Printf("Warning: failed to prune delays: %v", err)
		}
	}

	log.Println("Rendering GTFS text files...")
	if err := gtfs.Render(ctx, database.Conn(), cfg.OutputDir); err != nil {
		log.Fatalf("Failed to render feed: %v", err)
	}
	if err := gtfs.Bundle(cfg.OutputDir, rawZip); err != nil {
		log.Fatalf("Failed to bundle feed: %v", err)
	}

	if err := tools.Run(ctx); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	log.Printf("Feed published: %s", feedZip)
}
