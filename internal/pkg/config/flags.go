package config

import (
	"github.com/spf13/pflag"
)

// Options are the command line flags shared by every binary.
type Options struct {
	ConfigPath         string
	WriteDefaultConfig string
	explicitConfig     bool
}

// ExplicitConfig reports whether --config was given on the command line.
func (o Options) ExplicitConfig() bool { return o.explicitConfig }

// ParseFlags parses args (without the program name). Extra flags can be
// registered on fs before the call by passing a non-nil fs.
func ParseFlags(name string, args []string, fs *pflag.FlagSet) (Options, error) {
	if fs == nil {
		fs = pflag.NewFlagSet(name, pflag.ContinueOnError)
	}
	var o Options
	fs.StringVarP(&o.ConfigPath, "config", "c", DefaultPath, "path to the TOML config file")
	fs.StringVar(&o.WriteDefaultConfig, "write-default-config", "", "write the default config to `path` and exit")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	o.explicitConfig = fs.Changed("config")
	return o, nil
}

// LoadFromOptions loads the config named by o. A missing file at the
// default path is not an error; the defaults are used instead.
func LoadFromOptions(o Options) (*Config, error) {
	cfg, err := Load(o.ConfigPath)
	if err != nil && !o.ExplicitConfig() && IsNotExist(err) {
		return Load("")
	}
	return cfg, err
}
