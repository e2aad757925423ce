// Command export-rt writes a GTFS-Realtime TripUpdates feed from the
// delays recorded during the most recent fetch runs.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/zpcg-gtfs/feedbuilder/internal/config"
	"github.com/zpcg-gtfs/feedbuilder/internal/db"
	"github.com/zpcg-gtfs/feedbuilder/internal/rtexport"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to feed configuration")
	output := flag.String("o", "trip_updates.pb", "Output path for the TripUpdates feed")
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

	if err := rtexport.Export(context.Background(), database, *output); err != nil {
		log.Fatalf("Failed to export trip updates: %v", err)
	}
}
