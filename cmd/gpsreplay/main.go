// Command gpsreplay publishes a recorded CSV track to the NATS position
// feed at a fixed rate, standing in for the IMU/GPS unit.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	natsadapter "github.com/samirrijal/vehiclenav/internal/adapters/nats"
	"github.com/samirrijal/vehiclenav/internal/pkg/config"
	"github.com/samirrijal/vehiclenav/internal/pkg/logging"
)

func main() {
	fs := pflag.NewFlagSet("gpsreplay", pflag.ContinueOnError)
	track := fs.StringP("track", "t", "track.csv", "CSV track with lat,lon[,heading,speed,time] columns")
	vehicle := fs.String("vehicle", "vehicle-1", "vehicle id to publish under")
	rate := fs.Duration("interval", time.Second, "delay between fixes")
	loop := fs.Bool("loop", false, "restart the track when it ends")

	opts, err := config.ParseFlags("gpsreplay", os.Args[1:], fs)
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
	logging.Setup("gpsreplay", cfg.Log.Level, cfg.Log.Format)

	f, err := os.Open(*track)
	if err != nil {
		log.Fatalf("open track: %v", err)
	}
	fixes, err := readTrack(f, *vehicle)
	_ = f.Close()
	if err != nil {
		log.Fatalf("read track %s: %v", *track, err)
	}
	if len(fixes) == 0 {
		log.Fatalf("track %s has no usable fixes", *track)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	slog.Info("replaying track", "path", *track, "fixes", len(fixes), "interval", rate.String())
	sent := 0
	for i := 0; ; i++ {
		if i == len(fixes) {
			if !*loop {
				break
			}
			i = 0
		}

		fix := fixes[i]
		if fix.Time.IsZero() {
			fix.Time = time.Now().UTC()
		}
		if err := pub.PublishPosition(ctx, &fix); err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("publish failed", "index", i, "error", err)
		} else {
			sent++
		}

		select {
		case <-ctx.Done():
			slog.Info("replay interrupted", "sent", sent)
			return
		case <-ticker.C:
		}
	}
	slog.Info("replay finished", "sent", sent)
}
