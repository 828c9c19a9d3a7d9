// Package config assembles the engine's typed configuration tree from
// defaults, an optional YAML file, environment variables and CLI flags,
// following this codebase's viper-binding convention.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// QueueConfig configures internal/queue.RequestQueue.
type QueueConfig struct {
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	MinInterval        time.Duration `mapstructure:"min_interval_ms"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBase          time.Duration `mapstructure:"retry_base_ms"`
	RetryMax           time.Duration `mapstructure:"retry_max_ms"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout_ms"`
	BreakerThreshold   int           `mapstructure:"breaker_threshold"`
	BreakerResetWindow time.Duration `mapstructure:"breaker_reset_ms"`
}

// SpringConfig configures the navigator's fixed-timestep spring integrator.
type SpringConfig struct {
	Stiffness   float64 `mapstructure:"stiffness"`
	Damping     float64 `mapstructure:"damping"`
	Mass        float64 `mapstructure:"mass"`
	MinDistance float64 `mapstructure:"min_distance"`
	MinVelocity float64 `mapstructure:"min_velocity"`
}

// NavigatorConfig configures internal/navigator.Navigator.
type NavigatorConfig struct {
	VelocityThreshold float64       `mapstructure:"velocity_threshold"`
	MomentumScale     float64       `mapstructure:"momentum_scale"`
	WheelSensitivity  float64       `mapstructure:"wheel_sensitivity"`
	Spring            SpringConfig  `mapstructure:"spring"`
	ElasticLimitDays  int           `mapstructure:"elastic_limit_days"`
	KeyboardAnimTime  time.Duration `mapstructure:"keyboard_anim_ms"`
}

// RenderingConfig configures internal/tile.FacilityYearTile row layout.
type RenderingConfig struct {
	MinRowShort   int `mapstructure:"min_row_short"`
	MinRowLong    int `mapstructure:"min_row_long"`
	MaxRow        int `mapstructure:"max_row"`
	CapacityPerPx int `mapstructure:"capacity_per_px"`
	ShortLabels   bool `mapstructure:"short_labels"`
}

// Config is the complete engine configuration tree, covering every key
// enumerated in spec.md §6.
type Config struct {
	MaxCachedYears        int             `mapstructure:"max_cached_years"`
	MaxCachedTiles        int             `mapstructure:"max_cached_tiles"`
	RequestQueue          QueueConfig     `mapstructure:"request_queue"`
	Navigator             NavigatorConfig `mapstructure:"navigator"`
	Rendering             RenderingConfig `mapstructure:"rendering"`
	TimeZoneOffsetMinutes int             `mapstructure:"time_zone_offset_minutes"`
	EarliestYear          int             `mapstructure:"earliest_year"`
}

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		MaxCachedYears: 5,
		MaxCachedTiles: 10,
		RequestQueue: QueueConfig{
			MaxConcurrent:      4,
			MinInterval:        250 * time.Millisecond,
			MaxRetries:         3,
			RetryBase:          500 * time.Millisecond,
			RetryMax:           10 * time.Second,
			RequestTimeout:     15 * time.Second,
			BreakerThreshold:   5,
			BreakerResetWindow: 30 * time.Second,
		},
		Navigator: NavigatorConfig{
			VelocityThreshold: 200, // days/sec
			MomentumScale:     0.35,
			WheelSensitivity:  1.0,
			Spring: SpringConfig{
				Stiffness:   170,
				Damping:     26,
				Mass:        1,
				MinDistance: 0.5,
				MinVelocity: 0.5,
			},
			ElasticLimitDays: 60,
			KeyboardAnimTime: 300 * time.Millisecond,
		},
		Rendering: RenderingConfig{
			MinRowShort:   6,
			MinRowLong:    10,
			MaxRow:        40,
			CapacityPerPx: 30,
			ShortLabels:   false,
		},
		TimeZoneOffsetMinutes: 600,
		EarliestYear:          2000,
	}
}

// Load assembles configuration from defaults, the file at path (if
// non-empty), and environment variables prefixed CAPSTRIPE_ (the prefix
// internal/cmd/root.go also uses), with a nested key's dots written as
// underscores (e.g. CAPSTRIPE_REQUEST_QUEUE_MAX_CONCURRENT).
func Load(path string) (Config, error) {
	v := viper.New()
	applyDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("CAPSTRIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, c Config) {
	v.SetDefault("max_cached_years", c.MaxCachedYears)
	v.SetDefault("max_cached_tiles", c.MaxCachedTiles)
	v.SetDefault("time_zone_offset_minutes", c.TimeZoneOffsetMinutes)
	v.SetDefault("earliest_year", c.EarliestYear)

	v.SetDefault("request_queue.max_concurrent", c.RequestQueue.MaxConcurrent)
	v.SetDefault("request_queue.min_interval_ms", c.RequestQueue.MinInterval)
	v.SetDefault("request_queue.max_retries", c.RequestQueue.MaxRetries)
	v.SetDefault("request_queue.retry_base_ms", c.RequestQueue.RetryBase)
	v.SetDefault("request_queue.retry_max_ms", c.RequestQueue.RetryMax)
	v.SetDefault("request_queue.request_timeout_ms", c.RequestQueue.RequestTimeout)
	v.SetDefault("request_queue.breaker_threshold", c.RequestQueue.BreakerThreshold)
	v.SetDefault("request_queue.breaker_reset_ms", c.RequestQueue.BreakerResetWindow)

	v.SetDefault("navigator.velocity_threshold", c.Navigator.VelocityThreshold)
	v.SetDefault("navigator.momentum_scale", c.Navigator.MomentumScale)
	v.SetDefault("navigator.wheel_sensitivity", c.Navigator.WheelSensitivity)
	v.SetDefault("navigator.spring.stiffness", c.Navigator.Spring.Stiffness)
	v.SetDefault("navigator.spring.damping", c.Navigator.Spring.Damping)
	v.SetDefault("navigator.spring.mass", c.Navigator.Spring.Mass)
	v.SetDefault("navigator.spring.min_distance", c.Navigator.Spring.MinDistance)
	v.SetDefault("navigator.spring.min_velocity", c.Navigator.Spring.MinVelocity)
	v.SetDefault("navigator.elastic_limit_days", c.Navigator.ElasticLimitDays)
	v.SetDefault("navigator.keyboard_anim_ms", c.Navigator.KeyboardAnimTime)

	v.SetDefault("rendering.min_row_short", c.Rendering.MinRowShort)
	v.SetDefault("rendering.min_row_long", c.Rendering.MinRowLong)
	v.SetDefault("rendering.max_row", c.Rendering.MaxRow)
	v.SetDefault("rendering.capacity_per_px", c.Rendering.CapacityPerPx)
	v.SetDefault("rendering.short_labels", c.Rendering.ShortLabels)
}
