package geospatial

import "math"

// Spherical Web Mercator in tile-space: at zoom z the world spans
// [0, 2^z) on both axes.

// LonToX projects a longitude onto the tile-space x axis. Longitudes outside
// [-180, 180) are wrapped modulo 360 first.
func LonToX(lon float64, zoom int) float64 {
	if lon < -180 || lon >= 180 {
		lon = wrap(lon+180, 360) - 180
	}
	return (lon + 180) / 360 * tiles(zoom)
}

// LatToY projects a latitude onto the tile-space y axis. Latitudes outside
// [-90, 90) are wrapped modulo 180 first, not clamped.
func LatToY(lat float64, zoom int) float64 {
	if lat < -90 || lat >= 90 {
		lat = wrap(lat+90, 180) - 90
	}
	r := toRad(lat)
	return (1 - math.Log(math.Tan(r)+1/math.Cos(r))/math.Pi) / 2 * tiles(zoom)
}

// YToLat is the inverse of LatToY.
func YToLat(y float64, zoom int) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/tiles(zoom)))) / math.Pi * 180
}

// XToLon is the inverse of LonToX.
func XToLon(x float64, zoom int) float64 {
	return x/tiles(zoom)*360 - 180
}

// TileCount returns 2^zoom, the number of tiles along one axis.
func TileCount(zoom int) int {
	return 1 << uint(zoom)
}

func tiles(zoom int) float64 {
	return math.Exp2(float64(zoom))
}

// wrap returns v modulo m in [0, m), also for negative v.
func wrap(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}
