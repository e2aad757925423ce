// Package stations canonicalizes station names and coordinates against an
// OpenStreetMap GeoJSON extract. HAFAS stop coordinates are imprecise and
// its names are often German-style transliterations; the OSM extract is
// the source of truth for both.
package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNotFound is returned when no OSM station lies within the match
// threshold of the queried coordinates.
var ErrNotFound = errors.New("stations: no station near coordinates")

// matchThreshold is the maximum squared coordinate distance (in degrees)
// between a HAFAS stop and an OSM station for them to be considered the
// same station. Roughly 500 m at Balkan latitudes.
const matchThreshold = 0.000032

// namePriority lists the OSM name tags to try, most preferred first.
var namePriority = []string{"name:sr-Latn", "name:en", "name"}

// Station is one canonicalized railway station.
type Station struct {
	Name      string
	Latitude  float64
	Longitude float64
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat
	} `json:"geometry"`
	// OSM property values are not uniformly strings (layer and level
	// tags come through as numbers), so decode loosely and pick the
	// string-typed name tags out afterwards.
	Properties map[string]any `json:"properties"`
}

type featureCollection struct {
	Features []feature `json:"features"`
}

// Index holds the loaded OSM stations for nearest-match lookup.
type Index struct {
	features []feature
}

// Load reads a GeoJSON FeatureCollection of railway stations.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file: %w", err)
	}
	return Parse(data)
}

// Parse builds an index from raw GeoJSON bytes.
func Parse(data []byte) (*Index, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse stations GeoJSON: %w", err)
	}

	features := make([]feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		// Abandoned stations still exist in OSM but must never end up
		// in a feed.
		if _, abandoned := f.Properties["abandoned:railway"]; abandoned {
			continue
		}
		features = append(features, f)
	}

	sort.Slice(features, func(i, j int) bool {
		a, b := features[i].Geometry.Coordinates, features[j].Geometry.Coordinates
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[0] < b[0]
	})

	return &Index{features: features}, nil
}

// Len returns the number of usable stations in the index.
func (idx *Index) Len() int {
	return len(idx.features)
}

// Find returns the nearest station within the match threshold of the
// given coordinates, or ErrNotFound.
func (idx *Index) Find(lat, lon float64) (*Station, error) {
	best := -1
	bestDist := matchThreshold
	for i, f := range idx.features {
		fLat, fLon := f.Geometry.Coordinates[1], f.Geometry.Coordinates[0]
		d := sqDist(fLat, fLon, lat, lon)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w (%f, %f)", ErrNotFound, lat, lon)
	}

	f := idx.features[best]
	name, err := preferredName(f.Properties)
	if err != nil {
		return nil, err
	}
	return &Station{
		Name:      name,
		Latitude:  f.Geometry.Coordinates[1],
		Longitude: f.Geometry.Coordinates[0],
	}, nil
}

func sqDist(aLat, aLon, bLat, bLon float64) float64 {
	dLat := aLat - bLat
	dLon := aLon - bLon
	return dLat*dLat + dLon*dLon
}

func preferredName(props map[string]any) (string, error) {
	for _, key := range namePriority {
		if name, ok := props[key].(string); ok && name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("stations: feature has no usable name tag: %v", props)
}
