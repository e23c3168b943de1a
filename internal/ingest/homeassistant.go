package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"microgrid_twin/internal/model"
)

// HomeAssistantParser parses Home Assistant CSV history exports of the rig's
// current sensor.
//
// Expected format:
//
//	entity_id,state,last_changed
//	sensor.panel_bus_current,412.5,2025-06-21T12:00:00.000Z
type HomeAssistantParser struct {
	// SensorType to assign to parsed readings.
	SensorType model.SensorType
	// Unit for the sensor values (e.g. "mA").
	Unit string
	// Entity, when set, keeps only rows for that entity_id.
	Entity string
}

// NewHomeAssistantParser returns a parser for sensorType. An empty unit
// falls back to the catalog unit for that sensor.
func NewHomeAssistantParser(sensorType model.SensorType, unit string) *HomeAssistantParser {
	if unit == "" {
		unit = model.SensorCatalog[sensorType].Unit
	}
	return &HomeAssistantParser{
		SensorType: sensorType,
		Unit:       unit,
	}
}

// Parse returns readings in timestamp order. Rows with a non-numeric state
// (e.g. "unavailable") are skipped.
func (p *HomeAssistantParser) Parse(r io.Reader) ([]model.Reading, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var readings []model.Reading
	lineNum := 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		reading, err := p.parseRecord(record, lineNum)
		if err != nil {
			continue
		}
		if p.Entity != "" && reading.SensorID != p.Entity {
			continue
		}
		readings = append(readings, reading)
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, nil
}

func validateHeader(header []string) error {
	if len(header) < 3 {
		return fmt.Errorf("expected at least 3 columns, got %d", len(header))
	}

	expected := []string{"entity_id", "state", "last_changed"}
	for i, col := range expected {
		if strings.TrimSpace(header[i]) != col {
			return fmt.Errorf("expected column %d to be %q, got %q", i, col, header[i])
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
}

func (p *HomeAssistantParser) parseRecord(record []string, lineNum int) (model.Reading, error) {
	if len(record) < 3 {
		return model.Reading{}, fmt.Errorf("line %d: expected 3 fields, got %d", lineNum, len(record))
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: parsing value %q: %w", lineNum, record[1], err)
	}

	ts, err := parseTimestamp(record[2])
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: parsing timestamp %q: %w", lineNum, record[2], err)
	}

	return model.Reading{
		Timestamp: ts,
		SensorID:  strings.TrimSpace(record[0]),
		Type:      p.SensorType,
		Value:     value,
		Unit:      p.Unit,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, err
}
