package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/utils"
)

// Outcome classifies a single attempt.
type Outcome int

const (
	// OutcomeMiss means no symbol was decoded. This is the common case.
	OutcomeMiss Outcome = iota
	// OutcomeHit means a symbol was decoded.
	OutcomeHit
	// OutcomeFault means the decoder failed unexpectedly. Callers treat it
	// like a miss.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeFault:
		return "fault"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// binarizerOrder is tried in sequence on every crop.
var binarizerOrder = []barcode.Binarizer{barcode.BinarizerHybrid, barcode.BinarizerGlobalHistogram}

// FaultError wraps a panic recovered from the decoder.
type FaultError struct {
	Binarizer barcode.Binarizer
	Value     any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("decoder fault with %s binarizer: %v", e.Binarizer, e.Value)
}

// Adapter runs single decode attempts. It never panics and never returns an
// error: every failure becomes a miss or a fault.
type Adapter struct {
	decoder barcode.Decoder
	hints   barcode.Hints
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdapter creates an adapter that passes hints unchanged on every attempt.
func NewAdapter(decoder barcode.Decoder, hints barcode.Hints, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{decoder: decoder, hints: hints, logger: logger, now: time.Now}
}

// Attempt crops img to region (clamped to the image bounds) and tries the
// hybrid binarizer, then the global histogram binarizer. The returned hit is
// only meaningful when the outcome is OutcomeHit.
func (a *Adapter) Attempt(img image.Image, region Region) (Hit, Outcome) {
	if img == nil {
		return Hit{}, OutcomeMiss
	}
	rect := region.Clamp(img.Bounds())
	crop, ok := utils.CropImageRect(img, rect)
	if !ok {
		return Hit{}, OutcomeMiss
	}

	outcome := OutcomeMiss
	for _, b := range binarizerOrder {
		sym, err := a.decode(crop, b)
		if err != nil {
			var fault *FaultError
			if errors.As(err, &fault) {
				outcome = OutcomeFault
				a.logger.Debug("decoder fault", "region", region.String(), "error", err)
			}
			continue
		}
		if sym == nil {
			continue
		}
		return Hit{
			Format:    sym.Format,
			Text:      sym.Text,
			Region:    region,
			Binarizer: b,
			Points:    offsetPoints(sym.Points, rect.Min),
			Timestamp: a.now(),
		}, OutcomeHit
	}
	return Hit{}, outcome
}

func (a *Adapter) decode(img image.Image, b barcode.Binarizer) (sym *barcode.Symbol, err error) {
	defer func() {
		if r := recover(); r != nil {
			sym = nil
			err = &FaultError{Binarizer: b, Value: r}
		}
	}()
	return a.decoder.Decode(img, b, a.hints)
}

func offsetPoints(pts []image.Point, origin image.Point) []image.Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Add(origin)
	}
	return out
}
