package usecases

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/projection"
	"github.com/samirrijal/vehiclenav/internal/pkg/geospatial"
	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
	"github.com/samirrijal/vehiclenav/internal/pkg/telemetry"
	"github.com/samirrijal/vehiclenav/internal/pkg/worker"
)

const (
	RouteWorkerName       = "route-transform-service"
	DefaultRouteQueueSize = 32
	DefaultRouteCapacity  = 1024
)

// RouteRequest is either AddRouteCoordinate or GetRoute.
type RouteRequest interface {
	isRouteRequest()
}

// AddRouteCoordinate appends a coordinate to the stored route.
type AddRouteCoordinate struct {
	Coordinate domain.Coordinate
}

// GetRoute asks for the whole route projected around Center at Zoom.
type GetRoute struct {
	Center domain.Coordinate
	Zoom   domain.Zoom
}

func (AddRouteCoordinate) isRouteRequest() {}
func (GetRoute) isRouteRequest()           {}

// RouteResponse holds the route in screen pixels, in route order.
type RouteResponse struct {
	Center       domain.Coordinate   `json:"center"`
	Zoom         domain.Zoom         `json:"zoom"`
	Offset       int                 `json:"offset"`
	Points       []domain.PixelPoint `json:"points"`
	LengthMeters float64             `json:"length_meters"`
}

// RouteOptions sizes the route service. Width, Height and Scale must match
// the map viewport so that points line up with the tiles.
type RouteOptions struct {
	Width     int
	Height    int
	Scale     domain.Scale
	QueueSize int
	Capacity  int
}

type routeHandler struct {
	route     []domain.Coordinate
	length    float64
	transform *projection.CoordinateTransform
	responses *worker.Channel[RouteResponse]
}

func (h *routeHandler) HandleRequests(ctx context.Context, batch []RouteRequest) error {
	for _, req := range batch {
		switch r := req.(type) {
		case AddRouteCoordinate:
			h.add(r.Coordinate)
		case GetRoute:
			if err := h.responses.Send(ctx, h.project(ctx, r)); err != nil {
				return err
			}
		default:
			return domain.NewError(domain.KindHandler, fmt.Sprintf("unknown route request %T", req), nil)
		}
	}
	return nil
}

func (h *routeHandler) add(c domain.Coordinate) {
	if n := len(h.route); n > 0 {
		last := h.route[n-1]
		h.length += geospatial.Haversine(last.Latitude.Get(), last.Longitude.Get(), c.Latitude.Get(), c.Longitude.Get())
	}
	h.route = append(h.route, c)
	metrics.RoutePoints.Set(float64(len(h.route)))
}

func (h *routeHandler) project(ctx context.Context, r GetRoute) RouteResponse {
	_, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanRouteFrame)
	defer span.End()
	span.SetAttributes(attribute.Int("route.points", len(h.route)))

	h.transform.Update(r.Center, r.Zoom)
	points := make([]domain.PixelPoint, len(h.route))
	for i, c := range h.route {
		x, y := h.transform.CoordinateToPixel(c)
		points[i] = domain.PixelPoint{X: int(x), Y: int(y)}
	}
	return RouteResponse{
		Center:       r.Center,
		Zoom:         r.Zoom,
		Points:       points,
		LengthMeters: h.length,
	}
}

func (h *routeHandler) PreShutdown() {
	h.responses.CloseSender()
}

// RouteClient is the driver side of a running route transform service.
type RouteClient struct {
	requests  *worker.Channel[RouteRequest]
	responses *worker.Channel[RouteResponse]
}

// StartRouteTransformService runs the route store on its own worker thread.
// Responses are unbounded so a slow driver never stalls the worker.
func StartRouteTransformService(ctx context.Context, opts RouteOptions) (*RouteClient, *worker.ShutdownHandle) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultRouteQueueSize
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultRouteCapacity
	}

	client := &RouteClient{
		requests:  worker.Bounded[RouteRequest](opts.QueueSize),
		responses: worker.Unbounded[RouteResponse](),
	}
	h := &routeHandler{
		route:     make([]domain.Coordinate, 0, opts.Capacity),
		transform: projection.New(domain.Coordinate{}, opts.Scale, domain.MinZoom, opts.Width, opts.Height),
		responses: client.responses,
	}
	handle := worker.Spawn[RouteRequest](ctx, RouteWorkerName, client.requests, h)
	return client, handle
}

// PushCoordinate appends c to the route.
func (c *RouteClient) PushCoordinate(ctx context.Context, coord domain.Coordinate) error {
	return c.requests.Send(ctx, AddRouteCoordinate{Coordinate: coord})
}

// RequestRoute asks for the route projected around center.
func (c *RouteClient) RequestRoute(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) error {
	return c.requests.Send(ctx, GetRoute{Center: center, Zoom: zoom})
}

// TryRequestRoute enqueues a route query or fails with ErrQueueFull.
func (c *RouteClient) TryRequestRoute(center domain.Coordinate, zoom domain.Zoom) error {
	return c.requests.TrySend(GetRoute{Center: center, Zoom: zoom})
}

// TryRecv polls for a projected route without blocking.
func (c *RouteClient) TryRecv() (RouteResponse, bool, error) {
	return c.responses.TryRecv()
}

// Recv waits for the next projected route.
func (c *RouteClient) Recv(ctx context.Context) (RouteResponse, error) {
	return c.responses.Recv(ctx)
}

// Close drops the client. The service stops once it notices.
func (c *RouteClient) Close() {
	c.requests.CloseSender()
	c.responses.CloseReceiver()
}
