package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FeedConfig describes the published feed (feed_info.txt).
type FeedConfig struct {
	Name          string `yaml:"name" validate:"required"`
	Language      string `yaml:"language" validate:"required"`
	PublisherName string `yaml:"publisherName" validate:"required"`
	PublisherURL  string `yaml:"publisherURL" validate:"required,url"`
	ContactEmail  string `yaml:"contactEmail" validate:"omitempty,email"`
}

// AgencyConfig describes the operator the feed is built for (agency.txt).
type AgencyConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Timezone string `yaml:"timezone" validate:"required"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email" validate:"omitempty,email"`
}

// HafasConfig configures the journey-planning API client.
type HafasConfig struct {
	BaseURL     string   `yaml:"baseURL" validate:"required,url"`
	MaxResults  int      `yaml:"maxResults" validate:"gt=0"`
	WindowHours int      `yaml:"windowHours" validate:"gt=0"`
	TimeoutSec  int      `yaml:"timeoutSec" validate:"gte=0"`
	Products    []string `yaml:"products" validate:"min=1"`
}

// OSMConfig points at the OpenStreetMap extracts used for station
// canonicalization and shape matching.
type OSMConfig struct {
	StationsGeoJSON string `yaml:"stationsGeoJSON" validate:"required"`
	RoutesExtract   string `yaml:"routesExtract"`
}

// Config holds all configuration for a feed build
type Config struct {
	Feed     FeedConfig   `yaml:"feed" validate:"required"`
	Agency   AgencyConfig `yaml:"agency" validate:"required"`
	Hafas    HafasConfig  `yaml:"hafas" validate:"required"`
	OSM      OSMConfig    `yaml:"osm" validate:"required"`
	Stations []string     `yaml:"stations" validate:"min=1"`

	DatabasePath string `yaml:"database"`
	OutputDir    string `yaml:"output"`
}

// Window returns the fetch window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Hafas.WindowHours) * time.Hour
}

// HTTPTimeout returns the per-request timeout for the API client.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Hafas.TimeoutSec == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Hafas.TimeoutSec) * time.Second
}

// Load reads the YAML config file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		Hafas: HafasConfig{
			MaxResults:  600,
			WindowHours: 24,
		},
		DatabasePath: "gtfs.sqlite",
		OutputDir:    "out",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config.
func applyEnvOverrides(cfg *Config) {
	cfg.DatabasePath = getEnv("SQLITE_DATABASE", cfg.DatabasePath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.Hafas.BaseURL = getEnv("HAFAS_BASE_URL", cfg.Hafas.BaseURL)
	cfg.Hafas.MaxResults = getEnvInt("HAFAS_MAX_RESULTS", cfg.Hafas.MaxResults)
	cfg.Hafas.WindowHours = getEnvInt("HAFAS_WINDOW_HOURS", cfg.Hafas.WindowHours)
	cfg.OSM.StationsGeoJSON = getEnv("STATIONS_GEOJSON", cfg.OSM.StationsGeoJSON)
	cfg.OSM.RoutesExtract = getEnv("OSM_ROUTES_EXTRACT", cfg.OSM.RoutesExtract)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
