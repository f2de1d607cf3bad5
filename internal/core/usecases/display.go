package usecases

import (
	"sync/atomic"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// Display hands out the single Viewport for the process.
type Display struct {
	title   string
	width   int
	height  int
	claimed atomic.Bool
}

func NewDisplay(title string, width, height int) *Display {
	return &Display{title: title, width: width, height: height}
}

// Claim returns the viewport. Only the first call succeeds; later calls
// return ErrViewportClaimed.
func (d *Display) Claim() (*Viewport, error) {
	if !d.claimed.CompareAndSwap(false, true) {
		return nil, domain.ErrViewportClaimed
	}
	return &Viewport{title: d.title, width: d.width, height: d.height}, nil
}

// Viewport is proof of ownership of the screen area frames are drawn into.
type Viewport struct {
	title  string
	width  int
	height int
}

func (v *Viewport) Title() string { return v.title }

// Size returns the viewport dimensions in pixels.
func (v *Viewport) Size() (width, height int) { return v.width, v.height }
