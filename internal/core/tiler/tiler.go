// Package tiler resolves the tile grid around a view center, fetches the
// tiles concurrently and composites them onto one RGBA canvas.
package tiler

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/ports"
	"github.com/samirrijal/vehiclenav/internal/core/projection"
	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
	"github.com/samirrijal/vehiclenav/internal/pkg/telemetry"
)

const DefaultConcurrency = 8

// Config sizes the canvas and tunes the fetch fan-out.
type Config struct {
	Width    int
	Height   int
	TileSize int
	// Concurrency caps in-flight tile fetches. Zero means DefaultConcurrency.
	Concurrency int
	// BestEffort skips tiles that fail to fetch or decode instead of failing
	// the whole composite.
	BestEffort bool
}

// MapTiler implements ports.TileCompositor. It is not safe for concurrent
// use: the canvas belongs to whichever goroutine calls RequestTiles.
type MapTiler struct {
	source    ports.TileSource
	decoder   ports.ImageDecoder
	cfg       Config
	transform *projection.CoordinateTransform
	canvas    *image.RGBA
}

// New allocates the canvas once. Width and height must be positive.
func New(source ports.TileSource, decoder ports.ImageDecoder, cfg Config) (*MapTiler, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, domain.NewError(domain.KindImageSize,
			fmt.Sprintf("invalid canvas size %dx%d", cfg.Width, cfg.Height), nil)
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = domain.ScaleOne.TileSize()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &MapTiler{
		source:    source,
		decoder:   decoder,
		cfg:       cfg,
		transform: projection.NewWithTileSize(domain.Coordinate{}, cfg.TileSize, domain.MinZoom, cfg.Width, cfg.Height),
		canvas:    image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}, nil
}

type fetchResult struct {
	img image.Image
	err error
}

// RequestTiles fetches every tile covering the view around center and blits
// them onto the canvas. The returned canvas is reused by the next call and
// is not cleared in between; callers that hand it to another goroutine must
// copy it first.
func (m *MapTiler) RequestTiles(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) (*image.RGBA, error) {
	start := time.Now()
	defer func() { metrics.CompositeDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanRequestTiles)
	defer span.End()

	m.transform.Update(center, zoom)
	xc, yc := m.transform.Center()
	if !finite(xc) || !finite(yc) {
		err := domain.NewError(domain.KindProjection,
			fmt.Sprintf("center %s does not project at zoom %d", center, zoom.Get()), nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	grid := ResolveGrid(xc, yc, m.cfg.Width, m.cfg.Height, m.cfg.TileSize, zoom)

	span.SetAttributes(
		attribute.Int("tiler.zoom", zoom.Get()),
		attribute.Int("tiler.tiles", len(grid.Tiles)),
	)

	results := make([]fetchResult, len(grid.Tiles))

	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for i, tile := range grid.Tiles {
		g.Go(func() error {
			img, err := m.fetch(ctx, tile, zoom)
			results[i] = fetchResult{img: img, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, tile := range grid.Tiles {
		res := results[i]
		if res.err != nil {
			if !m.cfg.BestEffort {
				span.RecordError(res.err)
				span.SetStatus(codes.Error, res.err.Error())
				return nil, res.err
			}
			slog.Warn("skipping tile", "tile", tile.Key(zoom), "error", res.err)
			continue
		}

		px, py := m.transform.TileSpaceToPixel(float64(tile.X), float64(tile.Y))
		b := res.img.Bounds()
		dst := image.Rect(int(px), int(py), int(px)+b.Dx(), int(py)+b.Dy())
		draw.Draw(m.canvas, dst, res.img, b.Min, draw.Src)
	}

	return m.canvas, nil
}

func (m *MapTiler) fetch(ctx context.Context, tile domain.TileCoordinate, zoom domain.Zoom) (image.Image, error) {
	key := tile.Key(zoom)

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanFetchTile)
	defer span.End()
	span.SetAttributes(
		attribute.Int("tile.x", int(key.X)),
		attribute.Int("tile.y", int(key.Y)),
		attribute.Int("tile.z", int(key.Z)),
	)

	if err := ctx.Err(); err != nil {
		metrics.TileFetches.WithLabelValues("canceled").Inc()
		return nil, err
	}

	start := time.Now()
	data, err := m.source.FetchTile(ctx, key)
	metrics.TileFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TileFetches.WithLabelValues("error").Inc()
		span.RecordError(err)
		if domain.KindOf(err) != domain.KindUnknown {
			return nil, err
		}
		return nil, domain.NewError(domain.KindTransport,
			fmt.Sprintf("fetch tile %d/%d/%d", key.Z, key.X, key.Y), err)
	}

	img, err := m.decoder.Decode(data)
	if err != nil {
		metrics.TileFetches.WithLabelValues("decode_error").Inc()
		span.RecordError(err)
		if domain.KindOf(err) != domain.KindUnknown {
			return nil, err
		}
		return nil, domain.NewError(domain.KindDecode,
			fmt.Sprintf("decode tile %d/%d/%d", key.Z, key.X, key.Y), err)
	}

	metrics.TileFetches.WithLabelValues("ok").Inc()
	return img, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
