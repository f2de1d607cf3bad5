// Command mapshot composites one map view through the map tile service and
// writes it to a PNG file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/samirrijal/vehiclenav/internal/adapters/osm"
	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/render"
	"github.com/samirrijal/vehiclenav/internal/core/tiler"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
	"github.com/samirrijal/vehiclenav/internal/pkg/config"
	"github.com/samirrijal/vehiclenav/internal/pkg/logging"
)

func main() {
	fs := pflag.NewFlagSet("mapshot", pflag.ContinueOnError)
	lat := fs.Float64("lat", 0, "center latitude (default: startup_defaults.latitude)")
	lon := fs.Float64("lon", 0, "center longitude (default: startup_defaults.longitude)")
	zoom := fs.Int("zoom", 0, "zoom level (default: startup_defaults.zoom)")
	out := fs.StringP("out", "o", "map.png", "output PNG path")
	timeout := fs.Duration("timeout", 30*time.Second, "give up after this long")

	opts, err := config.ParseFlags("mapshot", os.Args[1:], fs)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("flags: %v", err)
	}
	cfg, err := config.LoadFromOptions(opts)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup("mapshot", cfg.Log.Level, "text")

	center := cfg.StartupDefaults.Coordinate()
	if fs.Changed("lat") || fs.Changed("lon") {
		center = domain.NewCoordinate(*lat, *lon)
	}
	z := cfg.StartupDefaults.ZoomLevel()
	if fs.Changed("zoom") {
		z = domain.NewZoom(*zoom)
	}

	scale, _ := cfg.Tiler.TileScale()
	client, err := osm.NewClient(cfg.Tiler.URL, cfg.Tiler.Timeout)
	if err != nil {
		log.Fatalf("tile client: %v", err)
	}
	client.SetScale(scale)
	if cfg.Tiler.SupportDaynight {
		daylight, _ := cfg.StartupDefaults.Daylight()
		client.SetDaylight(daylight)
	}

	compositor, err := tiler.New(client, osm.Decoder{}, tiler.Config{
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		TileSize:    scale.TileSize(),
		Concurrency: cfg.Tiler.Concurrency,
		BestEffort:  cfg.Tiler.BestEffort,
	})
	if err != nil {
		log.Fatalf("tiler: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tiles, handle := usecases.StartMapTileService(context.Background(), compositor, usecases.MapTileOptions{})
	resp, err := snapshot(ctx, tiles, center, z)
	if shutdownErr := handle.Shutdown(); shutdownErr != nil && err == nil {
		slog.Warn("map tile service shutdown", "error", shutdownErr)
	}
	if err != nil {
		if cause := handle.Err(); cause != nil {
			err = errors.Join(err, cause)
		}
		log.Fatalf("composite: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	if err := render.EncodePNG(f, resp.Canvas); err != nil {
		_ = f.Close()
		log.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close %s: %v", *out, err)
	}

	fmt.Printf("wrote %dx%d map of %s at zoom %d to %s\n",
		cfg.Window.Width, cfg.Window.Height, center, z.Get(), *out)
}

func snapshot(ctx context.Context, tiles *usecases.MapTileClient, center domain.Coordinate, zoom domain.Zoom) (usecases.MapTileResponse, error) {
	if err := tiles.RequestTiles(ctx, center, zoom); err != nil {
		return usecases.MapTileResponse{}, err
	}
	return tiles.Recv(ctx)
}
