// Package config loads signpost settings from defaults, an optional config
// file, SIGNPOST_* environment variables and bound command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/sign"
)

// EnvPrefix is prepended to every environment variable, with dots in keys
// replaced by underscores: SIGNPOST_CAMERA_SOURCE.
const EnvPrefix = "SIGNPOST"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Camera      CameraConfig      `mapstructure:"camera"`
	Marker      MarkerConfig      `mapstructure:"marker"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Dwell       DwellConfig       `mapstructure:"dwell"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Display     DisplayConfig     `mapstructure:"display"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Plugins     PluginsConfig     `mapstructure:"plugins"`
	Tray        TrayConfig        `mapstructure:"tray"`
	Log         LogConfig         `mapstructure:"log"`
}

// CameraConfig selects the frame source. Source is a device index or a
// video file path.
type CameraConfig struct {
	Source string `mapstructure:"source"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

type MarkerConfig struct {
	Dictionary string  `mapstructure:"dictionary"`
	TagWidthCm float64 `mapstructure:"tag_width_cm"`
}

type FilterConfig struct {
	MinCm float64 `mapstructure:"min_cm"`
	MaxCm float64 `mapstructure:"max_cm"`
}

type DwellConfig struct {
	Stop time.Duration `mapstructure:"stop"`
}

type CalibrationConfig struct {
	Initial int `mapstructure:"initial"`
	Step    int `mapstructure:"step"`
	Min     int `mapstructure:"min"`
}

// DisplayConfig controls the desktop windows. With Enabled false the loop
// runs headless and confirmation holds become plain sleeps.
type DisplayConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// ServerConfig enables the HTTP API when Addr is set.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig enables the run journal when Path is set.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// PluginsConfig enables action hooks when Dir is set.
type PluginsConfig struct {
	Dir string `mapstructure:"dir"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("camera.source", "0")
	v.SetDefault("camera.width", 1080)
	v.SetDefault("camera.height", 720)

	v.SetDefault("marker.dictionary", "apriltag_36h11")
	v.SetDefault("marker.tag_width_cm", sign.DefaultTagWidthCm)

	v.SetDefault("filter.min_cm", sign.DefaultMinCm)
	v.SetDefault("filter.max_cm", sign.DefaultMaxCm)

	v.SetDefault("dwell.stop", dwell.DefaultThreshold)

	v.SetDefault("calibration.initial", calibration.DefaultFocal)
	v.SetDefault("calibration.step", calibration.DefaultStep)
	v.SetDefault("calibration.min", calibration.DefaultMin)

	v.SetDefault("display.enabled", true)
	v.SetDefault("display.snapshot_path", "processing_steps.png")

	v.SetDefault("server.addr", "")
	v.SetDefault("store.path", "")
	v.SetDefault("plugins.dir", "")
	v.SetDefault("tray.enabled", false)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding set
// up. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the optional config file into v and decodes the result.
// An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every key at its default.
func Default() *Config {
	cfg, err := Load(New(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Marker.TagWidthCm <= 0:
		return errors.WithHintf(errors.Wrapf(ErrInvalid, "marker.tag_width_cm = %v", c.Marker.TagWidthCm),
			"the printed tag width must be positive")
	case !c.Range().Valid():
		return errors.WithHintf(errors.Wrapf(ErrInvalid, "filter range %s", c.Range()),
			"filter.min_cm must not exceed filter.max_cm")
	case c.Calibration.Step <= 0:
		return errors.Wrapf(ErrInvalid, "calibration.step = %d", c.Calibration.Step)
	case c.Calibration.Min <= 0 || c.Calibration.Min > c.Calibration.Initial:
		return errors.WithHintf(errors.Wrapf(ErrInvalid, "calibration.min = %d, calibration.initial = %d",
			c.Calibration.Min, c.Calibration.Initial),
			"the focal floor must be positive and not above the initial focal length")
	case c.Dwell.Stop < 0:
		return errors.Wrapf(ErrInvalid, "dwell.stop = %s", c.Dwell.Stop)
	}
	return nil
}

// Range returns the distance acceptance range.
func (c *Config) Range() sign.Range {
	return sign.Range{MinCm: c.Filter.MinCm, MaxCm: c.Filter.MaxCm}
}

// Pipeline returns the per-frame decision parameters.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Estimator: sign.NewEstimator(c.Marker.TagWidthCm),
		Range:     c.Range(),
		Dwell:     dwell.New(c.Dwell.Stop),
	}
}

// CalibrationSettings returns the focal length controller settings.
func (c *Config) CalibrationSettings() calibration.Settings {
	return calibration.Settings{
		Initial: c.Calibration.Initial,
		Step:    c.Calibration.Step,
		Min:     c.Calibration.Min,
	}
}
