// Package render draws frames for the viewport: the map canvas, the route
// polyline and the vehicle marker, stacked in that order.
package render

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

var (
	Background  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	RouteColor  = color.RGBA{R: 195, G: 66, B: 244, A: 255}
	MarkerColor = color.RGBA{R: 230, G: 57, B: 70, A: 255}
)

// Drawer is anything that can paint itself onto a frame.
type Drawer interface {
	Draw(dc *gg.Context)
}

// Sizer reports the frame size, typically a viewport.
type Sizer interface {
	Size() (width, height int)
}

// Frame clears a frame of the sizer's dimensions and paints layers in order.
func Frame(s Sizer, layers ...Drawer) *image.RGBA {
	w, h := s.Size()
	dc := gg.NewContext(w, h)
	dc.SetColor(Background)
	dc.Clear()
	for _, l := range layers {
		if l != nil {
			l.Draw(dc)
		}
	}
	return dc.Image().(*image.RGBA)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return gg.NewContextForImage(img).EncodePNG(w)
}

// DrawMap paints img with its top-left corner at the frame origin.
func DrawMap(dc *gg.Context, img image.Image) {
	if img == nil {
		return
	}
	dc.DrawImage(img, 0, 0)
}

// DrawRoute strokes the points as one polyline. A single point is drawn as
// a dot.
func DrawRoute(dc *gg.Context, points []domain.PixelPoint, c color.Color, width float64) {
	switch len(points) {
	case 0:
		return
	case 1:
		dc.SetColor(c)
		dc.DrawCircle(float64(points[0].X), float64(points[0].Y), width)
		dc.Fill()
		return
	}

	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(float64(points[0].X), float64(points[0].Y))
	for _, p := range points[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	dc.Stroke()
}

// DrawMarker draws a filled circle at p with a heading tick. Heading is in
// degrees clockwise from north; NaN skips the tick.
func DrawMarker(dc *gg.Context, p domain.PixelPoint, radius, heading float64, c color.Color) {
	x, y := float64(p.X), float64(p.Y)
	dc.SetColor(c)
	dc.DrawCircle(x, y, radius)
	dc.Fill()

	if math.IsNaN(heading) {
		return
	}
	rad := gg.Radians(heading)
	dc.SetLineWidth(radius / 2)
	dc.MoveTo(x, y)
	dc.LineTo(x+2*radius*math.Sin(rad), y-2*radius*math.Cos(rad))
	dc.Stroke()
}

// MapLayer draws a composited map canvas.
type MapLayer struct {
	Canvas image.Image
}

func (l MapLayer) Draw(dc *gg.Context) { DrawMap(dc, l.Canvas) }

// RouteLayer draws a projected route.
type RouteLayer struct {
	Points []domain.PixelPoint
	Color  color.Color
	Width  float64
}

func (l RouteLayer) Draw(dc *gg.Context) {
	c, w := l.Color, l.Width
	if c == nil {
		c = RouteColor
	}
	if w <= 0 {
		w = 4
	}
	DrawRoute(dc, l.Points, c, w)
}

// MarkerLayer draws the vehicle position.
type MarkerLayer struct {
	Point   domain.PixelPoint
	Heading float64
	Radius  float64
}

func (l MarkerLayer) Draw(dc *gg.Context) {
	r := l.Radius
	if r <= 0 {
		r = 8
	}
	DrawMarker(dc, l.Point, r, l.Heading, MarkerColor)
}
