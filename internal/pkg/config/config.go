package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/vehicle-nav/config.toml"

// Config holds all application configuration.
type Config struct {
	Name            string                `mapstructure:"name"`
	Window          WindowConfig          `mapstructure:"window"`
	Tiler           TilerConfig           `mapstructure:"tiler"`
	IMUGPS          IMUGPSConfig          `mapstructure:"imu_gps"`
	StartupDefaults StartupDefaultsConfig `mapstructure:"startup_defaults"`
	Route           RouteConfig           `mapstructure:"route"`
	Server          ServerConfig          `mapstructure:"server"`
	NATS            NATSConfig            `mapstructure:"nats"`
	Telemetry       TelemetryConfig       `mapstructure:"telemetry"`
	Log             LogConfig             `mapstructure:"log"`
}

type WindowConfig struct {
	Title     string `mapstructure:"title"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	TargetFPS int    `mapstructure:"target_fps"`
}

// TickInterval is the driver polling period for TargetFPS.
func (w WindowConfig) TickInterval() time.Duration {
	if w.TargetFPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(w.TargetFPS)
}

type TilerConfig struct {
	URL              string        `mapstructure:"url"`
	Scale            string        `mapstructure:"scale"`
	SupportDaynight  bool          `mapstructure:"support_daynight"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Concurrency      int           `mapstructure:"concurrency"`
	BestEffort       bool          `mapstructure:"best_effort"`
	CoalesceRequests bool          `mapstructure:"coalesce_requests"`
}

// TileScale parses Scale. An empty scale means one.
func (t TilerConfig) TileScale() (domain.Scale, error) {
	if strings.TrimSpace(t.Scale) == "" {
		return domain.ScaleOne, nil
	}
	return domain.ParseScale(t.Scale)
}

type IMUGPSConfig struct {
	// MountLocation is relative to the center of the rear axle, [x, y, z]
	// in meters.
	MountLocation []float64 `mapstructure:"mount_location"`
}

type StartupDefaultsConfig struct {
	Daynight  string  `mapstructure:"daynight"`
	Zoom      int     `mapstructure:"zoom"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

func (s StartupDefaultsConfig) Coordinate() domain.Coordinate {
	return domain.NewCoordinate(s.Latitude, s.Longitude)
}

func (s StartupDefaultsConfig) ZoomLevel() domain.Zoom { return domain.NewZoom(s.Zoom) }

func (s StartupDefaultsConfig) Daylight() (domain.Daylight, error) {
	return domain.ParseDaylight(s.Daynight)
}

type RouteConfig struct {
	Capacity  int `mapstructure:"capacity"`
	QueueSize int `mapstructure:"queue_size"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Sample returns the stock configuration.
func Sample() *Config {
	return &Config{
		Name: "sample config",
		Window: WindowConfig{
			Title:     "VehicleNAV",
			Width:     800,
			Height:    600,
			TargetFPS: 60,
		},
		Tiler: TilerConfig{
			URL:             "http://127.0.0.1:8553/v1/tile",
			Scale:           "four",
			SupportDaynight: true,
			Timeout:         10 * time.Second,
			Concurrency:     8,
		},
		IMUGPS: IMUGPSConfig{MountLocation: []float64{0, 0, 0}},
		StartupDefaults: StartupDefaultsConfig{
			Daynight:  "day",
			Zoom:      11,
			Latitude:  47.453551,
			Longitude: -116.788118,
		},
		Route: RouteConfig{
			Capacity:  1024,
			QueueSize: 32,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10,
			WriteTimeout: 10,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "vehicle.position.>",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "vehiclenav",
			TempoAddr:   "tempo:4317",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("name", c.Name)
	v.SetDefault("window.title", c.Window.Title)
	v.SetDefault("window.width", c.Window.Width)
	v.SetDefault("window.height", c.Window.Height)
	v.SetDefault("window.target_fps", c.Window.TargetFPS)
	v.SetDefault("tiler.url", c.Tiler.URL)
	v.SetDefault("tiler.scale", c.Tiler.Scale)
	v.SetDefault("tiler.support_daynight", c.Tiler.SupportDaynight)
	v.SetDefault("tiler.timeout", c.Tiler.Timeout.String())
	v.SetDefault("tiler.concurrency", c.Tiler.Concurrency)
	v.SetDefault("tiler.best_effort", c.Tiler.BestEffort)
	v.SetDefault("tiler.coalesce_requests", c.Tiler.CoalesceRequests)
	v.SetDefault("imu_gps.mount_location", c.IMUGPS.MountLocation)
	v.SetDefault("startup_defaults.daynight", c.StartupDefaults.Daynight)
	v.SetDefault("startup_defaults.zoom", c.StartupDefaults.Zoom)
	v.SetDefault("startup_defaults.latitude", c.StartupDefaults.Latitude)
	v.SetDefault("startup_defaults.longitude", c.StartupDefaults.Longitude)
	v.SetDefault("route.capacity", c.Route.Capacity)
	v.SetDefault("route.queue_size", c.Route.QueueSize)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("nats.url", c.NATS.URL)
	v.SetDefault("nats.subject", c.NATS.Subject)
	v.SetDefault("nats.enabled", c.NATS.Enabled)
	v.SetDefault("telemetry.service_name", c.Telemetry.ServiceName)
	v.SetDefault("telemetry.tempo_addr", c.Telemetry.TempoAddr)
	v.SetDefault("telemetry.enabled", c.Telemetry.Enabled)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
}

// Load reads the TOML file at path, applies VEHICLENAV_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Sample())

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, domain.NewError(domain.KindConfig, fmt.Sprintf("config file %s", path), err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, domain.NewError(domain.KindConfig, fmt.Sprintf("read config %s", path), err)
		}
	}

	// Environment variables: VEHICLENAV_TILER_URL → tiler.url
	v.SetEnvPrefix("VEHICLENAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewError(domain.KindConfig, "unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteDefault writes the sample configuration to path as TOML, replacing
// any existing file.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v, Sample())
	v.SetConfigType("toml")
	if err := v.WriteConfigAs(path); err != nil {
		return domain.NewError(domain.KindConfig, fmt.Sprintf("write config %s", path), err)
	}
	return nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Sprintf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.TargetFPS <= 0 || c.Window.TargetFPS > 255 {
		errs = append(errs, fmt.Sprintf("window.target_fps must be 1-255, got %d", c.Window.TargetFPS))
	}
	if u, err := url.Parse(c.Tiler.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("tiler.url must be an absolute http(s) url, got %q", c.Tiler.URL))
	}
	if _, err := c.Tiler.TileScale(); err != nil {
		errs = append(errs, fmt.Sprintf("tiler.scale: %v", err))
	}
	if c.Tiler.Timeout <= 0 {
		errs = append(errs, "tiler.timeout must be positive")
	}
	if c.Tiler.Concurrency <= 0 {
		errs = append(errs, "tiler.concurrency must be positive")
	}
	if len(c.IMUGPS.MountLocation) != 3 {
		errs = append(errs, fmt.Sprintf("imu_gps.mount_location must have 3 components, got %d", len(c.IMUGPS.MountLocation)))
	}
	if _, err := c.StartupDefaults.Daylight(); err != nil {
		errs = append(errs, fmt.Sprintf("startup_defaults.daynight: %v", err))
	}
	if z := c.StartupDefaults.Zoom; z < int(domain.MinZoom) || z > int(domain.MaxZoom) {
		errs = append(errs, fmt.Sprintf("startup_defaults.zoom must be %d-%d, got %d", domain.MinZoom, domain.MaxZoom, z))
	}
	if lat := c.StartupDefaults.Latitude; lat < float64(domain.MinLatitude) || lat > float64(domain.MaxLatitude) {
		errs = append(errs, fmt.Sprintf("startup_defaults.latitude out of range: %g", lat))
	}
	if lon := c.StartupDefaults.Longitude; lon < float64(domain.MinLongitude) || lon > float64(domain.MaxLongitude) {
		errs = append(errs, fmt.Sprintf("startup_defaults.longitude out of range: %g", lon))
	}
	if c.Route.Capacity <= 0 {
		errs = append(errs, "route.capacity must be positive")
	}
	if c.Route.QueueSize <= 0 {
		errs = append(errs, "route.queue_size must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}

	if len(errs) > 0 {
		return domain.NewError(domain.KindConfig,
			fmt.Sprintf("config validation failed:\n  - %s", strings.Join(errs, "\n  - ")), nil)
	}
	return nil
}

// IsNotExist reports whether err comes from a missing config file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
