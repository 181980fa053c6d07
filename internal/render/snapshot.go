package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot writes both rasters as PNGs into dir and returns their paths.
// Must run on the thread that owns the surfaces.
func Snapshot(dir string, spectrum, scope *Raster, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	stamp := now.Format("20060102-150405")
	targets := []struct {
		name string
		r    *Raster
	}{
		{"spectrum", spectrum},
		{"oscilloscope", scope},
	}

	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", t.name, stamp))
		if err := writePNG(path, t.r); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, r *Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := r.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
