package domain

import "github.com/paulmach/orb/maptile"

// TileCoordinate pairs the wrapped fetch key of a tile with its unwrapped
// grid position. X and Y are only used for pixel placement, so tiles across
// the antimeridian still line up while fetching a valid key.
type TileCoordinate struct {
	TileX uint32
	TileY uint32
	X     int
	Y     int
}

// Key returns the fetch key for the tile at zoom z.
func (t TileCoordinate) Key(z Zoom) maptile.Tile {
	return maptile.New(t.TileX, t.TileY, maptile.Zoom(z))
}

// WrapTile folds n into [0, maxTile), handling negative input.
func WrapTile(n, maxTile int) int {
	return ((n % maxTile) + maxTile) % maxTile
}
