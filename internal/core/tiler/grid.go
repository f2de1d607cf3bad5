package tiler

import (
	"math"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/pkg/geospatial"
)

// Grid is the set of tiles covering one viewport, in row-major order
// (x outer, y inner).
type Grid struct {
	XMin, XMax int
	YMin, YMax int
	Tiles      []domain.TileCoordinate
}

// ResolveGrid returns every tile in [xMin, xMax) x [yMin, yMax) around the
// tile-space center. Fetch keys are wrapped into [0, 2^zoom); X and Y keep
// the unwrapped grid position.
func ResolveGrid(xCenter, yCenter float64, width, height, tileSize int, zoom domain.Zoom) Grid {
	halfW := 0.5 * float64(width) / float64(tileSize)
	halfH := 0.5 * float64(height) / float64(tileSize)

	g := Grid{
		XMin: int(math.Floor(xCenter - halfW)),
		XMax: int(math.Ceil(xCenter + halfW)),
		YMin: int(math.Floor(yCenter - halfH)),
		YMax: int(math.Ceil(yCenter + halfH)),
	}

	maxTile := geospatial.TileCount(zoom.Get())
	g.Tiles = make([]domain.TileCoordinate, 0, (g.XMax-g.XMin)*(g.YMax-g.YMin))
	for x := g.XMin; x < g.XMax; x++ {
		for y := g.YMin; y < g.YMax; y++ {
			g.Tiles = append(g.Tiles, domain.TileCoordinate{
				TileX: uint32(domain.WrapTile(x, maxTile)),
				TileY: uint32(domain.WrapTile(y, maxTile)),
				X:     x,
				Y:     y,
			})
		}
	}
	return g
}
