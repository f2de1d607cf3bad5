package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/projection"
	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
	"github.com/samirrijal/vehiclenav/internal/pkg/worker"
)

// View is what the driver is currently showing.
type View struct {
	Center domain.Coordinate `json:"center"`
	Zoom   domain.Zoom       `json:"zoom"`
}

// Direction is a pan direction.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

// ParseDirection accepts north/south/east/west and their first letter.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "south", "s", "down":
		return South, nil
	case "east", "e", "right":
		return East, nil
	case "west", "w", "left":
		return West, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// DriverOptions configures the foreground loop.
type DriverOptions struct {
	View  View
	Scale domain.Scale
	// Deltas defaults to DefaultPanPixels steps around View.Center.
	Deltas *ZoomDeltaMap
	// Tick is the polling period. Zero means 60 ticks per second.
	Tick time.Duration
	// Follow recenters the view on every position fix.
	Follow bool
}

// Driver is the foreground loop. It owns the view state, polls both services
// without blocking and keeps the latest canvas and route frame.
type Driver struct {
	viewport *Viewport
	tiles    *MapTileClient
	tilesH   *worker.ShutdownHandle
	route    *RouteClient
	routeH   *worker.ShutdownHandle
	deltas   *ZoomDeltaMap
	scale    domain.Scale
	tick     time.Duration
	follow   bool

	mu         sync.RWMutex
	view       View
	tilesDirty bool
	routeDirty bool
	canvas     *MapTileResponse
	frame      *RouteResponse
	frameSeq   uint64
	position   *domain.PositionFix
}

// NewDriver wires a driver to running services. The first tick requests
// both a canvas and a route frame for opts.View.
func NewDriver(
	viewport *Viewport,
	tiles *MapTileClient, tilesHandle *worker.ShutdownHandle,
	route *RouteClient, routeHandle *worker.ShutdownHandle,
	opts DriverOptions,
) *Driver {
	if opts.Tick <= 0 {
		opts.Tick = time.Second / 60
	}
	if opts.Scale == 0 {
		opts.Scale = domain.ScaleOne
	}
	if opts.Deltas == nil {
		opts.Deltas = NewZoomDeltaMap(opts.View.Center, opts.Scale.TileSize(), DefaultPanPixels)
	}
	return &Driver{
		viewport:   viewport,
		tiles:      tiles,
		tilesH:     tilesHandle,
		route:      route,
		routeH:     routeHandle,
		deltas:     opts.Deltas,
		scale:      opts.Scale,
		tick:       opts.Tick,
		follow:     opts.Follow,
		view:       View{Center: opts.View.Center.MercatorClamped(), Zoom: opts.View.Zoom},
		tilesDirty: true,
		routeDirty: true,
	}
}

func (d *Driver) Viewport() *Viewport { return d.viewport }

// View returns the current view.
func (d *Driver) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// SetView moves the view. Zoom is clamped, and so is the center latitude to
// the Mercator limit.
func (d *Driver) SetView(v View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v.Center = v.Center.MercatorClamped()
	v.Zoom = domain.NewZoom(v.Zoom.Get())
	d.view = v
	d.markDirty()
}

// Pan moves the view one step in dir.
func (d *Driver) Pan(dir Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	step := d.deltas.Get(d.view.Zoom)
	switch dir {
	case North:
		d.view.Center.Latitude.SaturatingAdd(step.Lat)
	case South:
		d.view.Center.Latitude.SaturatingSub(step.Lat)
	case East:
		d.view.Center.Longitude.SaturatingAdd(step.Lon)
	case West:
		d.view.Center.Longitude.SaturatingSub(step.Lon)
	}
	d.view.Center = d.view.Center.MercatorClamped()
	d.markDirty()
}

func (d *Driver) ZoomIn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Zoom.Increment()
	d.markDirty()
}

func (d *Driver) ZoomOut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Zoom.Decrement()
	d.markDirty()
}

// markDirty must be called with mu held.
func (d *Driver) markDirty() {
	d.tilesDirty = true
	d.routeDirty = true
}

// PushCoordinate appends c to the route. It blocks while the route service
// queue is full.
func (d *Driver) PushCoordinate(ctx context.Context, c domain.Coordinate) error {
	if err := d.route.PushCoordinate(ctx, c); err != nil {
		return d.serviceErr("route", err, d.routeH)
	}
	d.mu.Lock()
	d.routeDirty = true
	d.mu.Unlock()
	return nil
}

// HandlePosition records a GPS fix and adds it to the route.
func (d *Driver) HandlePosition(ctx context.Context, fix *domain.PositionFix) error {
	metrics.PositionsReceived.Inc()
	if err := d.PushCoordinate(ctx, fix.Coordinate); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	f := *fix
	d.position = &f
	if center := fix.Coordinate.MercatorClamped(); d.follow && d.view.Center != center {
		d.view.Center = center
		d.markDirty()
	}
	return nil
}

// Position returns the last GPS fix, if any.
func (d *Driver) Position() (domain.PositionFix, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.position == nil {
		return domain.PositionFix{}, false
	}
	return *d.position, true
}

// Project places c on screen for the current view, the same way the route
// service places route points.
func (d *Driver) Project(c domain.Coordinate) domain.PixelPoint {
	v := d.View()
	w, h := d.viewport.Size()
	x, y := projection.New(v.Center, d.scale, v.Zoom, w, h).CoordinateToPixel(c)
	return domain.PixelPoint{X: int(x), Y: int(y)}
}

// ServiceStatus describes one background service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Services reports whether the map tile and route services are still up.
func (d *Driver) Services() []ServiceStatus {
	out := make([]ServiceStatus, 0, 2)
	for _, h := range []*worker.ShutdownHandle{d.tilesH, d.routeH} {
		if h == nil {
			continue
		}
		st := ServiceStatus{Name: h.Name(), Running: true}
		select {
		case <-h.Done():
			st.Running = false
			st.Reason = h.Reason().String()
			if err := h.Err(); err != nil {
				st.Error = err.Error()
			}
		default:
		}
		out = append(out, st)
	}
	return out
}

// Canvas returns the newest composited map.
func (d *Driver) Canvas() (MapTileResponse, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.canvas == nil {
		return MapTileResponse{}, false
	}
	return *d.canvas, true
}

// RouteFrame returns the newest projected route and a sequence number that
// grows with every new frame.
func (d *Driver) RouteFrame() (RouteResponse, uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.frame == nil {
		return RouteResponse{}, d.frameSeq, false
	}
	return *d.frame, d.frameSeq, true
}

// Tick polls both services and issues requests for a changed view. It never
// blocks on a service; a full request queue is retried on the next tick.
func (d *Driver) Tick() error {
	if err := d.pollTiles(); err != nil {
		return err
	}
	if err := d.pollRoute(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tilesDirty {
		switch err := d.tiles.TryRequestTiles(d.view.Center, d.view.Zoom); {
		case err == nil:
			d.tilesDirty = false
		case !errors.Is(err, domain.ErrQueueFull):
			return d.serviceErr("map tile", err, d.tilesH)
		}
	}
	if d.routeDirty {
		switch err := d.route.TryRequestRoute(d.view.Center, d.view.Zoom); {
		case err == nil:
			d.routeDirty = false
		case !errors.Is(err, domain.ErrQueueFull):
			return d.serviceErr("route", err, d.routeH)
		}
	}
	return nil
}

func (d *Driver) pollTiles() error {
	for {
		resp, ok, err := d.tiles.TryRecv()
		if err != nil {
			return d.serviceErr("map tile", err, d.tilesH)
		}
		if !ok {
			return nil
		}
		d.mu.Lock()
		d.canvas = &resp
		d.mu.Unlock()
	}
}

func (d *Driver) pollRoute() error {
	for {
		resp, ok, err := d.route.TryRecv()
		if err != nil {
			return d.serviceErr("route", err, d.routeH)
		}
		if !ok {
			return nil
		}
		d.mu.Lock()
		d.frame = &resp
		d.frameSeq++
		d.mu.Unlock()
	}
}

func (d *Driver) serviceErr(service string, err error, h *worker.ShutdownHandle) error {
	if h != nil && domain.IsDisconnected(err) {
		if cause := h.Err(); cause != nil {
			err = errors.Join(err, cause)
		}
	}
	return fmt.Errorf("%s service: %w", service, err)
}

// Run ticks until ctx is done or a service stops.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	slog.Info("driver started", "view", d.View().Center.String(), "zoom", d.View().Zoom.Get())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Tick(); err != nil {
				slog.Error("driver stopped", "error", err)
				return err
			}
		}
	}
}

// Shutdown stops both services and waits for their threads. Responses are
// drained meanwhile so a worker blocked on a full response queue can finish.
func (d *Driver) Shutdown() error {
	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = shutdownDraining(d.tilesH, func() { _, _, _ = d.tiles.TryRecv() })
	}()
	go func() {
		defer wg.Done()
		errs[1] = shutdownDraining(d.routeH, func() { _, _, _ = d.route.TryRecv() })
	}()
	wg.Wait()
	return errors.Join(errs[:]...)
}

func shutdownDraining(h *worker.ShutdownHandle, drain func()) error {
	res := make(chan error, 1)
	go func() { res <- h.Shutdown() }()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-res:
			if err != nil {
				return fmt.Errorf("shutdown %s: %w", h.Name(), err)
			}
			return nil
		case <-ticker.C:
			drain()
		}
	}
}
