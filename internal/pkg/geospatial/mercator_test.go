package geospatial

import (
	"math"
	"testing"
)

func TestLonToX(t *testing.T) {
	tests := []struct {
		name string
		lon  float64
		zoom int
		want float64
	}{
		{"west edge z1", -180, 1, 0},
		{"prime meridian z1", 0, 1, 1},
		{"prime meridian z11", 0, 11, 1024},
		{"east of center z2", 90, 2, 3},
		{"sample center z11", -116.788118, 11, 359.6053731555556},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LonToX(tt.lon, tt.zoom)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LonToX(%v, %d) = %v, want %v", tt.lon, tt.zoom, got, tt.want)
			}
		})
	}
}

func TestLatToY(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		zoom int
		want float64
	}{
		{"equator z1", 0, 1, 1},
		{"equator z11", 0, 11, 1024},
		{"sample center z11", 47.453551, 11, 716.5358208236679},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatToY(tt.lat, tt.zoom)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("LatToY(%v, %d) = %v, want %v", tt.lat, tt.zoom, got, tt.want)
			}
		})
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	coords := [][2]float64{
		{0, 0},
		{47.453551, -116.788118},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
		{84.9, 179.9},
		{-84.9, -179.9},
	}

	for zoom := 1; zoom <= 18; zoom++ {
		for _, c := range coords {
			lat, lon := c[0], c[1]
			gotLat := YToLat(LatToY(lat, zoom), zoom)
			gotLon := XToLon(LonToX(lon, zoom), zoom)
			if math.Abs(gotLat-lat) > 1e-9 || math.Abs(gotLon-lon) > 1e-9 {
				t.Errorf("z%d round trip (%v, %v) = (%v, %v)", zoom, lat, lon, gotLat, gotLon)
			}
		}
	}
}

func TestLonToX_Wraps(t *testing.T) {
	tests := []struct {
		name     string
		lon, alt float64
	}{
		{"190 is -170", 190, -170},
		{"-190 is 170", -190, 170},
		{"540 is -180", 540, -180},
		{"180 is -180", 180, -180},
	}

	for zoom := 1; zoom <= 18; zoom++ {
		for _, tt := range tests {
			a := LonToX(tt.lon, zoom)
			b := LonToX(tt.alt, zoom)
			if math.Abs(a-b) > 1e-9 {
				t.Errorf("%s at z%d: %v != %v", tt.name, zoom, a, b)
			}
		}
	}
}

func TestLatToY_WrapsInsteadOfClamping(t *testing.T) {
	// 100 degrees wraps to -80, it is not clamped to 90.
	a := LatToY(100, 5)
	b := LatToY(-80, 5)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("LatToY(100) = %v, want LatToY(-80) = %v", a, b)
	}
}

func TestTileCount(t *testing.T) {
	if got := TileCount(11); got != 2048 {
		t.Errorf("TileCount(11) = %d, want 2048", got)
	}
	if got := TileCount(1); got != 2 {
		t.Errorf("TileCount(1) = %d, want 2", got)
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is roughly 111.2 km.
	d := Haversine(0, 0, 1, 0)
	if d < 111_000 || d > 111_300 {
		t.Errorf("Haversine 1 deg lat = %v, want ~111195", d)
	}
	if Haversine(47.45, -116.78, 47.45, -116.78) != 0 {
		t.Error("distance to self should be 0")
	}
}

func TestPathLength(t *testing.T) {
	lats := []float64{0, 1, 2}
	lons := []float64{0, 0, 0}
	got := PathLength(lats, lons)
	want := Haversine(0, 0, 2, 0)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("PathLength = %v, want %v", got, want)
	}
	if PathLength(lats[:1], lons[:1]) != 0 {
		t.Error("single point path should have zero length")
	}
}
