// Package projection places geographic coordinates on the screen relative to
// a viewport center. Map tiles and route points both go through
// CoordinateTransform so that they stay aligned.
package projection

import (
	"math"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/pkg/geospatial"
)

// CoordinateTransform is a snapshot of the projection state for one view.
// Only Update mutates it; every pixel query is a read.
type CoordinateTransform struct {
	tileSize int
	zoom     domain.Zoom
	xCenter  float64
	yCenter  float64
	width    int
	height   int
}

// New builds a transform centered on center.
func New(center domain.Coordinate, scale domain.Scale, zoom domain.Zoom, width, height int) *CoordinateTransform {
	t := &CoordinateTransform{
		tileSize: scale.TileSize(),
		width:    width,
		height:   height,
	}
	t.Update(center, zoom)
	return t
}

// NewWithTileSize is New for callers that already resolved a tile size.
func NewWithTileSize(center domain.Coordinate, tileSize int, zoom domain.Zoom, width, height int) *CoordinateTransform {
	t := &CoordinateTransform{
		tileSize: tileSize,
		width:    width,
		height:   height,
	}
	t.Update(center, zoom)
	return t
}

// Update recomputes the cached projected center. Latitudes beyond the
// Mercator limit are clamped to it.
func (t *CoordinateTransform) Update(center domain.Coordinate, zoom domain.Zoom) {
	center = center.MercatorClamped()
	t.zoom = zoom
	t.xCenter = geospatial.LonToX(center.Longitude.Get(), zoom.Get())
	t.yCenter = geospatial.LatToY(center.Latitude.Get(), zoom.Get())
}

// Center returns the projected center in tile-space.
func (t *CoordinateTransform) Center() (x, y float64) { return t.xCenter, t.yCenter }

func (t *CoordinateTransform) Zoom() domain.Zoom { return t.zoom }

func (t *CoordinateTransform) TileSize() int { return t.tileSize }

// Size returns the viewport dimensions in pixels.
func (t *CoordinateTransform) Size() (width, height int) { return t.width, t.height }

// CoordinateToPixel projects c at the transform's zoom and returns its pixel
// position, rounded to the nearest integer.
func (t *CoordinateTransform) CoordinateToPixel(c domain.Coordinate) (float64, float64) {
	c = c.MercatorClamped()
	return t.TileSpaceToPixel(
		geospatial.LonToX(c.Longitude.Get(), t.zoom.Get()),
		geospatial.LatToY(c.Latitude.Get(), t.zoom.Get()),
	)
}

// TileSpaceToPixel converts a tile-space position to rounded pixels.
func (t *CoordinateTransform) TileSpaceToPixel(x, y float64) (float64, float64) {
	px := (x-t.xCenter)*float64(t.tileSize) + float64(t.width)/2
	py := (y-t.yCenter)*float64(t.tileSize) + float64(t.height)/2
	return math.Round(px), math.Round(py)
}

// PixelToCoordinate is the reverse lookup of CoordinateToPixel, without
// rounding.
func (t *CoordinateTransform) PixelToCoordinate(px, py float64) domain.Coordinate {
	x := (px-float64(t.width)/2)/float64(t.tileSize) + t.xCenter
	y := (py-float64(t.height)/2)/float64(t.tileSize) + t.yCenter
	return domain.Coordinate{
		Latitude:  domain.Latitude(geospatial.YToLat(y, t.zoom.Get())),
		Longitude: domain.Longitude(geospatial.XToLon(x, t.zoom.Get())),
	}
}
