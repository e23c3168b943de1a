// Package ingest loads recorded sensor traces for replay into the twin.
package ingest

import (
	"fmt"
	"io"
	"os"

	"microgrid_twin/internal/model"
)

// Parser reads sensor data from a source and returns readings.
type Parser interface {
	Parse(r io.Reader) ([]model.Reading, error)
}

// ParseFile opens path and runs p over it.
func ParseFile(p Parser, path string) ([]model.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	readings, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return readings, nil
}
