package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Zoom is a slippy-map zoom level, always within [MinZoom, MaxZoom].
type Zoom uint8

const (
	MinZoom Zoom = 1
	MaxZoom Zoom = 18
)

// NewZoom clamps v into [MinZoom, MaxZoom].
func NewZoom(v int) Zoom {
	switch {
	case v < int(MinZoom):
		return MinZoom
	case v > int(MaxZoom):
		return MaxZoom
	}
	return Zoom(v)
}

// Get returns the level as an int.
func (z Zoom) Get() int { return int(z) }

func (z *Zoom) Increment() { z.SaturatingAdd(1) }

func (z *Zoom) Decrement() { z.SaturatingSub(1) }

// SaturatingAdd raises the level by v, stopping at MaxZoom.
func (z *Zoom) SaturatingAdd(v int) { *z = NewZoom(int(*z) + v) }

// SaturatingSub lowers the level by v, stopping at MinZoom.
func (z *Zoom) SaturatingSub(v int) { *z = NewZoom(int(*z) - v) }

func (z Zoom) String() string { return strconv.Itoa(int(z)) }

// Scale selects the tile pixel size served by the tile server.
type Scale int

const (
	ScaleOne  Scale = 1
	ScaleTwo  Scale = 2
	ScaleFour Scale = 4
)

// TileSize returns the edge length in pixels of a tile at this scale.
func (s Scale) TileSize() int {
	switch s {
	case ScaleTwo:
		return 512
	case ScaleFour:
		return 1024
	default:
		return 256
	}
}

// QueryValue is the value of the "scale" query parameter.
func (s Scale) QueryValue() string { return strconv.Itoa(int(s.normalize())) }

func (s Scale) normalize() Scale {
	switch s {
	case ScaleTwo, ScaleFour:
		return s
	default:
		return ScaleOne
	}
}

func (s Scale) String() string { return s.QueryValue() }

// ParseScale accepts "1"/"one", "2"/"two" and "4"/"four".
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "one":
		return ScaleOne, nil
	case "2", "two":
		return ScaleTwo, nil
	case "4", "four":
		return ScaleFour, nil
	}
	return 0, NewError(KindConfig, fmt.Sprintf("failed to parse scale %q", s), nil)
}

// Daylight selects the day or night tile style.
type Daylight int

const (
	Night Daylight = iota
	Day
)

// QueryValue is the value of the "daylight" query parameter.
func (d Daylight) QueryValue() string {
	if d == Day {
		return "1"
	}
	return "0"
}

func (d Daylight) String() string {
	if d == Day {
		return "day"
	}
	return "night"
}

// ParseDaylight accepts "day" or "night" in any case.
func ParseDaylight(s string) (Daylight, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return Day, nil
	case "night":
		return Night, nil
	}
	return 0, NewError(KindConfig, fmt.Sprintf("failed to parse daylight %q", s), nil)
}
