package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validOutputFormats = []string{"text", "json", "csv", "xml", "yaml"}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	formats := barcode.DefaultFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}

	return Config{
		LogLevel: "info",
		Verbose:  false,
		Search: SearchConfig{
			Workers:            0,
			Formats:            names,
			TryHarder:          true,
			ProgressIntervalMs: 100,
		},
		Output: OutputConfig{
			Format:           "text",
			OverlayBoxColor:  "#FF0000",
			OverlayFillColor: "#FF0000",
			OverlayFillAlpha: 0.2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
		Batch: BatchConfig{
			Recursive:       false,
			ContinueOnError: true,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validOutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validOutputFormats, ", "))
	}

	if c.Search.Workers < 0 {
		return fmt.Errorf("invalid search workers: %d (must be >= 0)", c.Search.Workers)
	}
	if c.Search.ProgressIntervalMs < 0 {
		return fmt.Errorf("invalid progress interval: %d (must be >= 0)", c.Search.ProgressIntervalMs)
	}
	if _, err := c.SearchFormats(); err != nil {
		return fmt.Errorf("invalid search formats: %w", err)
	}
	for i, v := range c.Search.Variants {
		if v.Contrast < 0 {
			return fmt.Errorf("invalid search.variants[%d].contrast: %.2f (must be >= 0)", i, v.Contrast)
		}
		if v.Brightness < -255 || v.Brightness > 255 {
			return fmt.Errorf("invalid search.variants[%d].brightness: %.0f (must be between -255 and 255)", i, v.Brightness)
		}
	}

	if err := validateThreshold(c.Output.OverlayFillAlpha, "output.overlay_fill_alpha"); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute (must be positive)", c.Server.RateLimit.RequestsPerMinute)
	}
	if c.Server.RateLimit.MaxRequestsPerDay < 0 || c.Server.RateLimit.MaxDataPerDayMB < 0 {
		return errors.New("invalid daily quota: must be >= 0")
	}
	return nil
}

// SearchFormats parses the configured format names. An empty list selects
// the default formats.
func (c *Config) SearchFormats() ([]barcode.Format, error) {
	formats, err := barcode.ParseFormats(c.Search.Formats)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return barcode.DefaultFormats(), nil
	}
	return formats, nil
}

// ToPipelineConfig converts the config to the searcher configuration.
// It assumes Validate has passed.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if formats, err := c.SearchFormats(); err == nil {
		cfg.Hints.Formats = formats
	}
	cfg.Hints.TryHarder = c.Search.TryHarder
	cfg.Parallel.MaxWorkers = c.Search.Workers
	if len(c.Search.Variants) > 0 {
		cfg.Variants = make([]pipeline.Variant, len(c.Search.Variants))
		for i, v := range c.Search.Variants {
			cfg.Variants[i] = pipeline.Variant{Contrast: v.Contrast, Brightness: v.Brightness}
		}
	}
	return cfg
}

// ProgressInterval returns the progress throttle as a duration.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Search.ProgressIntervalMs) * time.Millisecond
}

// OverlayStyle builds the overlay style from the output colors.
func (c *Config) OverlayStyle() (pipeline.OverlayStyle, error) {
	return pipeline.OverlayStyleFromHex(c.Output.OverlayBoxColor, c.Output.OverlayFillColor, c.Output.OverlayFillAlpha, 2)
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
