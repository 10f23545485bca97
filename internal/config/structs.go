//nolint:lll
package config

// Config represents the complete configuration for the qerc application.
// It covers every command (scan, batch, pdf, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Search strategy
	Search SearchConfig `mapstructure:"search" yaml:"search" json:"search"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// PDF extraction
	PDF PDFConfig `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
}

// SearchConfig contains the region/variant search settings.
type SearchConfig struct {
	// Workers is the attempt pool size. 0 selects min(NumCPU, variants).
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	// Variants replaces the default enhancement plan when non-empty.
	Variants []VariantConfig `mapstructure:"variants" yaml:"variants,omitempty" json:"variants,omitempty"`
	// ProgressIntervalMs throttles console and WebSocket progress output.
	ProgressIntervalMs int `mapstructure:"progress_interval_ms" yaml:"progress_interval_ms" json:"progress_interval_ms"`
}

// VariantConfig is one contrast/brightness pair.
type VariantConfig struct {
	Contrast   float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	Brightness float64 `mapstructure:"brightness" yaml:"brightness" json:"brightness"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format           string  `mapstructure:"format" yaml:"format" json:"format"`
	File             string  `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir       string  `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayBoxColor  string  `mapstructure:"overlay_box_color" yaml:"overlay_box_color" json:"overlay_box_color"`
	OverlayFillColor string  `mapstructure:"overlay_fill_color" yaml:"overlay_fill_color" json:"overlay_fill_color"`
	OverlayFillAlpha float64 `mapstructure:"overlay_fill_alpha" yaml:"overlay_fill_alpha" json:"overlay_fill_alpha"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	// Daily quotas; 0 disables them.
	MaxRequestsPerDay int `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	OutputDir       string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// PDFConfig contains PDF extraction settings.
type PDFConfig struct {
	// Pages is a pdfcpu page selection such as "1-3,5". Empty means all pages.
	Pages string `mapstructure:"pages" yaml:"pages" json:"pages"`
}
