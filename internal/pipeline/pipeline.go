package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhjs0000/QERC/internal/barcode"
)

// Config holds configuration for a Searcher.
type Config struct {
	// Hints are passed unchanged to the decoder on every attempt.
	Hints barcode.Hints
	// Variants is the enhancement plan. It must not be empty.
	Variants []Variant
	// Parallel configures the attempt worker pool.
	Parallel ParallelConfig
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		Hints:    barcode.DefaultHints(),
		Variants: PlanVariants(),
		Parallel: DefaultParallelConfig(),
	}
}

// Builder constructs a Searcher with fluent configuration.
type Builder struct {
	cfg      Config
	decoder  barcode.Decoder
	progress ProgressCallback
	logger   *slog.Logger
}

// NewBuilder creates a new searcher builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDecoder sets the decoder collaborator. Defaults to barcode.NewDecoder().
func (b *Builder) WithDecoder(d barcode.Decoder) *Builder {
	b.decoder = d
	return b
}

// WithFormats restricts the accepted symbologies.
func (b *Builder) WithFormats(formats ...barcode.Format) *Builder {
	if len(formats) > 0 {
		b.cfg.Hints.Formats = formats
	}
	return b
}

// WithTryHarder toggles the decoder's exhaustive mode.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.Hints.TryHarder = enabled
	return b
}

// WithVariants replaces the enhancement plan.
func (b *Builder) WithVariants(variants ...Variant) *Builder {
	if len(variants) > 0 {
		b.cfg.Variants = variants
	}
	return b
}

// WithParallelWorkers sets the number of attempt workers. 1 selects the
// sequential mode with canonical discovery order.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress sink.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.progress = callback
	return b
}

// WithLogger sets the logger used for debug and summary output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if len(b.cfg.Variants) == 0 {
		return errors.New("at least one variant is required")
	}
	for i, v := range b.cfg.Variants {
		if v.Contrast < 0 {
			return fmt.Errorf("variant %d: contrast must be >= 0, got %v", i, v.Contrast)
		}
		if v.Brightness < -255 || v.Brightness > 255 {
			return fmt.Errorf("variant %d: brightness must be within [-255,255], got %v", i, v.Brightness)
		}
	}
	for _, f := range b.cfg.Hints.Formats {
		if f == barcode.FormatUnknown {
			return errors.New("hints contain an unknown format")
		}
	}
	if b.cfg.Parallel.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be >= 0, got %d", b.cfg.Parallel.MaxWorkers)
	}
	return nil
}

// Build validates the configuration and returns a Searcher.
func (b *Builder) Build() (*Searcher, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}

	dec := b.decoder
	if dec == nil {
		dec = barcode.NewDecoder()
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := b.progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	cfg := b.cfg
	cfg.Variants = append([]Variant(nil), b.cfg.Variants...)
	if len(cfg.Hints.Formats) == 0 {
		cfg.Hints.Formats = barcode.DefaultFormats()
	}

	return &Searcher{
		cfg:      cfg,
		adapter:  NewAdapter(dec, cfg.Hints, logger),
		progress: progress,
		logger:   logger,
	}, nil
}
