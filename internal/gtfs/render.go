package gtfs

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// feedFiles maps each GTFS text file to the query producing its rows.
// Column names in the schema match the GTFS reference, so the query
// result headers double as the file headers.
var feedFiles = []struct {
	Name  string
	Query string
}{
	{"agency.txt", `SELECT * FROM agencies`},
	{"stops.txt", `SELECT * FROM stops`},
	{"routes.txt", `SELECT * FROM routes`},
	{"trips.txt", `SELECT * FROM trips`},
	{"stop_times.txt", `SELECT * FROM stop_times ORDER BY trip_id, stop_sequence`},
	{"calendar_dates.txt", `SELECT * FROM calendar_dates ORDER BY service_id, date`},
	{"feed_info.txt", `SELECT * FROM feed_info`},
}

// Render dumps the store into GTFS text files under dir.
func Render(ctx context.Context, conn *sql.DB, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, ff := range feedFiles {
		n, err := renderFile(ctx, conn, ff.Query, filepath.Join(dir, ff.Name))
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", ff.Name, err)
		}
		log.Printf("render: %s: %d rows", ff.Name, n)
	}
	return nil
}

func renderFile(ctx context.Context, conn *sql.DB, query, path string) (int, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return 0, err
	}

	values := make([]sql.NullString, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	record := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return count, err
		}
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return count, err
	}
	return count, f.Close()
}
