package usecases

import (
	"context"
	"image"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/ports"
	"github.com/samirrijal/vehiclenav/internal/pkg/worker"
)

const (
	MapTileWorkerName        = "map-tile-service"
	DefaultMapTileQueueSize  = 2
	DefaultMapTileResultSize = 2
)

// MapTileRequest asks for the canvas around Center at Zoom.
type MapTileRequest struct {
	Center domain.Coordinate
	Zoom   domain.Zoom
}

// MapTileResponse carries a private copy of the composited canvas.
type MapTileResponse struct {
	Center domain.Coordinate
	Zoom   domain.Zoom
	Canvas *image.RGBA
}

// MapTileOptions tunes the map tile service.
type MapTileOptions struct {
	QueueSize    int
	ResponseSize int
	// CoalesceRequests composites only the newest request of each batch.
	CoalesceRequests bool
}

type mapTileHandler struct {
	compositor ports.TileCompositor
	responses  *worker.Channel[MapTileResponse]
	coalesce   bool
}

func (h *mapTileHandler) HandleRequests(ctx context.Context, batch []MapTileRequest) error {
	if h.coalesce && len(batch) > 1 {
		batch = batch[len(batch)-1:]
	}
	for _, req := range batch {
		canvas, err := h.compositor.RequestTiles(ctx, req.Center, req.Zoom)
		if err != nil {
			return err
		}
		resp := MapTileResponse{Center: req.Center, Zoom: req.Zoom, Canvas: cloneRGBA(canvas)}
		if err := h.responses.Send(ctx, resp); err != nil {
			return err
		}
	}
	return nil
}

func (h *mapTileHandler) PreShutdown() {
	h.responses.CloseSender()
}

// MapTileClient is the driver side of a running map tile service.
type MapTileClient struct {
	requests  *worker.Channel[MapTileRequest]
	responses *worker.Channel[MapTileResponse]
}

// StartMapTileService runs compositor on its own worker thread.
func StartMapTileService(ctx context.Context, compositor ports.TileCompositor, opts MapTileOptions) (*MapTileClient, *worker.ShutdownHandle) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultMapTileQueueSize
	}
	if opts.ResponseSize <= 0 {
		opts.ResponseSize = DefaultMapTileResultSize
	}

	client := &MapTileClient{
		requests:  worker.Bounded[MapTileRequest](opts.QueueSize),
		responses: worker.Bounded[MapTileResponse](opts.ResponseSize),
	}
	h := &mapTileHandler{
		compositor: compositor,
		responses:  client.responses,
		coalesce:   opts.CoalesceRequests,
	}
	handle := worker.Spawn[MapTileRequest](ctx, MapTileWorkerName, client.requests, h)
	return client, handle
}

// RequestTiles enqueues a request. It blocks only while the queue is full.
func (c *MapTileClient) RequestTiles(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) error {
	return c.requests.Send(ctx, MapTileRequest{Center: center, Zoom: zoom})
}

// TryRequestTiles enqueues a request or fails with ErrQueueFull.
func (c *MapTileClient) TryRequestTiles(center domain.Coordinate, zoom domain.Zoom) error {
	return c.requests.TrySend(MapTileRequest{Center: center, Zoom: zoom})
}

// TryRecv polls for a finished canvas without blocking.
func (c *MapTileClient) TryRecv() (MapTileResponse, bool, error) {
	return c.responses.TryRecv()
}

// Recv waits for the next canvas.
func (c *MapTileClient) Recv(ctx context.Context) (MapTileResponse, error) {
	return c.responses.Recv(ctx)
}

// Close drops the client. The service stops once it notices.
func (c *MapTileClient) Close() {
	c.requests.CloseSender()
	c.responses.CloseReceiver()
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	return dst
}
