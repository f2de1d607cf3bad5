package domain

import (
	"fmt"
	"time"
)

// Latitude is a WGS 84 latitude in degrees.
type Latitude float64

// Longitude is a WGS 84 longitude in degrees.
type Longitude float64

const (
	MinLatitude  Latitude  = -90
	MaxLatitude  Latitude  = 90
	MinLongitude Longitude = -180
	MaxLongitude Longitude = 180
)

// NewLatitude clamps v into [-90, 90].
func NewLatitude(v float64) Latitude {
	return Latitude(clamp(v, float64(MinLatitude), float64(MaxLatitude)))
}

// Get returns the raw degree value.
func (l Latitude) Get() float64 { return float64(l) }

// SaturatingAdd adds v, clamping at the valid bounds.
func (l *Latitude) SaturatingAdd(v float64) { *l = NewLatitude(float64(*l) + v) }

// SaturatingSub subtracts v, clamping at the valid bounds.
func (l *Latitude) SaturatingSub(v float64) { *l = NewLatitude(float64(*l) - v) }

func (l Latitude) String() string { return fmt.Sprintf("%g", float64(l)) }

// NewLongitude clamps v into [-180, 180].
func NewLongitude(v float64) Longitude {
	return Longitude(clamp(v, float64(MinLongitude), float64(MaxLongitude)))
}

// Get returns the raw degree value.
func (l Longitude) Get() float64 { return float64(l) }

// SaturatingAdd adds v, clamping at the valid bounds.
func (l *Longitude) SaturatingAdd(v float64) { *l = NewLongitude(float64(*l) + v) }

// SaturatingSub subtracts v, clamping at the valid bounds.
func (l *Longitude) SaturatingSub(v float64) { *l = NewLongitude(float64(*l) - v) }

func (l Longitude) String() string { return fmt.Sprintf("%g", float64(l)) }

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Latitude  Latitude  `json:"lat"`
	Longitude Longitude `json:"lon"`
}

// NewCoordinate builds a coordinate with both components clamped.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Latitude: NewLatitude(lat), Longitude: NewLongitude(lon)}
}

// MaxMercatorLatitude is the latitude at which Web Mercator tile space ends.
const MaxMercatorLatitude = 85.05112878

// MercatorClamped clamps the latitude into the Web Mercator range so that it
// projects to a finite y.
func (c Coordinate) MercatorClamped() Coordinate {
	c.Latitude = Latitude(clamp(c.Latitude.Get(), -MaxMercatorLatitude, MaxMercatorLatitude))
	return c
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s, %s", c.Latitude, c.Longitude)
}

// PositionFix is a single GPS reading published on the position feed.
type PositionFix struct {
	VehicleID  string     `json:"vehicle_id"`
	Time       time.Time  `json:"time"`
	Coordinate Coordinate `json:"coordinate"`
	Heading    float64    `json:"heading"`
	Speed      float64    `json:"speed"`
}

// PixelPoint is a rounded screen position relative to the viewport origin.
type PixelPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
