package stations

import (
	"errors"
	"testing"
)

const testGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [19.2743, 42.4411]},
			"properties": {"name": "Подгорица", "name:sr-Latn": "Podgorica", "name:en": "Podgorica"}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [19.0904, 42.0972]},
			"properties": {"name": "Bar", "layer": 1, "wheelchair": true}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [19.5203, 42.7801]},
			"properties": {"name": "Old Halt", "abandoned:railway": "station"}
		}
	]
}`

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Parse([]byte(testGeoJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return idx
}

func TestParseSkipsAbandoned(t *testing.T) {
	idx := testIndex(t)
	if idx.Len() != 2 {
		t.Errorf("index has %d stations, expected 2 (abandoned skipped)", idx.Len())
	}
}

func TestFindNearest(t *testing.T) {
	idx := testIndex(t)

	// Slightly off the exact OSM point, as HAFAS coordinates are.
	st, err := idx.Find(42.4415, 19.2748)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if st.Name != "Podgorica" {
		t.Errorf("name = %q, expected Podgorica (sr-Latn preferred)", st.Name)
	}
	// Canonical coordinates come from OSM, not the query.
	if st.Latitude != 42.4411 || st.Longitude != 19.2743 {
		t.Errorf("coordinates = (%f, %f), expected OSM point", st.Latitude, st.Longitude)
	}
}

func TestFindNamePriorityFallback(t *testing.T) {
	idx := testIndex(t)

	st, err := idx.Find(42.0972, 19.0904)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if st.Name != "Bar" {
		t.Errorf("name = %q, expected fallback to plain name tag", st.Name)
	}
}

func TestParseNonStringProperties(t *testing.T) {
	// Real OSM extracts mix types in the properties object: numeric
	// layer tags, booleans, even numbers where a name tag is expected.
	raw := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [20.6894, 43.7235]},
				"properties": {"name": "Kraljevo", "name:en": 42, "layer": -1, "ele": 206.5}
			}
		]
	}`
	idx, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed on mixed-type properties: %v", err)
	}

	st, err := idx.Find(43.7235, 20.6894)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	// The numeric name:en tag must be passed over for the string name.
	if st.Name != "Kraljevo" {
		t.Errorf("name = %q, expected Kraljevo", st.Name)
	}
}

func TestFindOutsideThreshold(t *testing.T) {
	idx := testIndex(t)

	_, err := idx.Find(43.5, 20.0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindIgnoresAbandoned(t *testing.T) {
	idx := testIndex(t)

	// Exactly on the abandoned station's point.
	_, err := idx.Find(42.7801, 19.5203)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for abandoned station, got %v", err)
	}
}
