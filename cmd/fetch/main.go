package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/zpcg-gtfs/feedbuilder/internal/config"
	"github.com/zpcg-gtfs/feedbuilder/internal/db"
	"github.com/zpcg-gtfs/feedbuilder/internal/fetcher"
	"github.com/zpcg-gtfs/feedbuilder/internal/hafas"
	"github.com/zpcg-gtfs/feedbuilder/internal/stations"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to feed configuration")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	index, err := stations.Load(cfg.OSM.StationsGeoJSON)
	if err != nil {
		log.Fatalf("Failed to load station index: %v", err)
	}
	log.Printf("Loaded %d stations from %s", index.Len(), cfg.OSM.StationsGeoJSON)

	client := hafas.NewClient(cfg.Hafas.BaseURL, cfg.Hafas.MaxResults, cfg.Hafas.Products, cfg.HTTPTimeout())

	report, err := fetcher.New(database, client, index, cfg).Run(ctx)
	if err != nil {
		log.Fatalf("Fetch run failed: %v", err)
	}
	if report.Stats.StationsOK == 0 {
		log.Fatalf("All %d stations failed", report.Stats.StationsFailed)
	}
}
