package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// readTrack parses a CSV track. The header must name lat and lon; heading,
// speed and time (RFC 3339) are optional. Rows with unparsable coordinates
// are skipped.
func readTrack(r io.Reader, vehicleID string) ([]domain.PositionFix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"lat", "lon"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("header is missing %q column", required)
		}
	}

	var fixes []domain.PositionFix
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		lat, errLat := strconv.ParseFloat(getField(record, cols, "lat"), 64)
		lon, errLon := strconv.ParseFloat(getField(record, cols, "lon"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		fix := domain.PositionFix{
			VehicleID:  vehicleID,
			Coordinate: domain.NewCoordinate(lat, lon),
		}
		fix.Heading, _ = strconv.ParseFloat(getField(record, cols, "heading"), 64)
		fix.Speed, _ = strconv.ParseFloat(getField(record, cols, "speed"), 64)
		if ts := getField(record, cols, "time"); ts != "" {
			fix.Time, _ = time.Parse(time.RFC3339, ts)
		}
		fixes = append(fixes, fix)
	}
	return fixes, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
