package usecases

import (
	"math"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/projection"
)

// DefaultPanPixels is how far one pan command moves the view.
const DefaultPanPixels = 64

// Delta is a latitude/longitude step.
type Delta struct {
	Lat float64
	Lon float64
}

// ZoomDeltaMap gives, per zoom level, the lat/lon step that moves the map by
// a fixed number of pixels around a reference point.
type ZoomDeltaMap struct {
	deltas [domain.MaxZoom + 1]Delta
}

// NewZoomDeltaMap precomputes steps for every zoom level.
func NewZoomDeltaMap(ref domain.Coordinate, tileSize, panPixels int) *ZoomDeltaMap {
	if panPixels <= 0 {
		panPixels = DefaultPanPixels
	}
	m := &ZoomDeltaMap{}
	for z := domain.MinZoom; z <= domain.MaxZoom; z++ {
		tr := projection.NewWithTileSize(ref, tileSize, z, 0, 0)
		east := tr.PixelToCoordinate(float64(panPixels), 0)
		north := tr.PixelToCoordinate(0, -float64(panPixels))
		m.deltas[z] = Delta{
			Lat: math.Abs(north.Latitude.Get() - ref.Latitude.Get()),
			Lon: math.Abs(east.Longitude.Get() - ref.Longitude.Get()),
		}
	}
	return m
}

// Get returns the step for zoom.
func (m *ZoomDeltaMap) Get(zoom domain.Zoom) Delta {
	return m.deltas[domain.NewZoom(zoom.Get())]
}
