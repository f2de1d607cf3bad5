package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"

	"github.com/samirrijal/vehiclenav/internal/adapters/http"
	natsadapter "github.com/samirrijal/vehiclenav/internal/adapters/nats"
	"github.com/samirrijal/vehiclenav/internal/adapters/osm"
	"github.com/samirrijal/vehiclenav/internal/core/tiler"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
	"github.com/samirrijal/vehiclenav/internal/pkg/config"
	"github.com/samirrijal/vehiclenav/internal/pkg/logging"
	"github.com/samirrijal/vehiclenav/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens first.
func run() int {
	fs := pflag.NewFlagSet("navd", pflag.ContinueOnError)
	follow := fs.Bool("follow", true, "recenter the map on every position fix")
	opts, err := config.ParseFlags("navd", os.Args[1:], fs)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		log.Fatalf("flags: %v", err)
	}

	if opts.WriteDefaultConfig != "" {
		if err := config.WriteDefault(opts.WriteDefaultConfig); err != nil {
			log.Fatalf("write default config: %v", err)
		}
		fmt.Printf("wrote default config to %s\n", opts.WriteDefaultConfig)
		return 0
	}

	cfg, err := config.LoadFromOptions(opts)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup("navd", cfg.Log.Level, cfg.Log.Format)
	slog.Info("config loaded", "name", cfg.Name, "path", opts.ConfigPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Tile server
	scale, _ := cfg.Tiler.TileScale()
	client, err := osm.NewClient(cfg.Tiler.URL, cfg.Tiler.Timeout)
	if err != nil {
		log.Fatalf("tile client: %v", err)
	}
	client.SetScale(scale)
	client.SetUserAgent("vehiclenav-navd/" + version)
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

	// Services outlive ctx; they are stopped by driver.Shutdown.
	svcCtx, svcCancel := context.WithCancel(context.Background())
	defer svcCancel()

	tiles, tilesHandle := usecases.StartMapTileService(svcCtx, compositor, usecases.MapTileOptions{
		CoalesceRequests: cfg.Tiler.CoalesceRequests,
	})
	route, routeHandle := usecases.StartRouteTransformService(svcCtx, usecases.RouteOptions{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Scale:     scale,
		QueueSize: cfg.Route.QueueSize,
		Capacity:  cfg.Route.Capacity,
	})

	viewport, err := usecases.NewDisplay(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height).Claim()
	if err != nil {
		log.Fatalf("display: %v", err)
	}
	driver := usecases.NewDriver(viewport, tiles, tilesHandle, route, routeHandle, usecases.DriverOptions{
		View: usecases.View{
			Center: cfg.StartupDefaults.Coordinate(),
			Zoom:   cfg.StartupDefaults.ZoomLevel(),
		},
		Scale:  scale,
		Tick:   cfg.Window.TickInterval(),
		Follow: *follow,
	})

	deps := &http.Dependencies{Driver: driver, Version: version}

	// Position feed
	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			slog.Warn("nats unavailable, position feed disabled", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribePositions(ctx, driver.HandlePosition); err != nil {
				slog.Warn("position subscribe failed", "error", err)
			}
			deps.NATS = sub
		}
	}

	driverErr := make(chan error, 1)
	go func() { driverErr <- driver.Run(ctx) }()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      viewport.Title(),
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("navd starting", "addr", addr, "view", cfg.StartupDefaults.Coordinate().String())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-driverErr:
		slog.Error("driver stopped", "error", err)
		exitCode = 1
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	if err := driver.Shutdown(); err != nil {
		slog.Warn("service shutdown", "error", err)
	}

	slog.Info("navd stopped")
	return exitCode
}
