package gtfs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Bundle zips all .txt files from dir into a GTFS feed archive at zipPath.
func Bundle(dir, zipPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read render dir: %w", err)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	wrote := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		if err := addFile(w, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			return fmt.Errorf("failed to bundle %s: %w", entry.Name(), err)
		}
		wrote++
	}
	if wrote == 0 {
		return fmt.Errorf("no feed files found in %s", dir)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return out.Close()
}

func addFile(w *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
