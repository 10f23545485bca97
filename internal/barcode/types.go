package barcode

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatCode128
	FormatEAN13
	FormatDataMatrix
	FormatCode39
	FormatCode93
	FormatITF
)

var formatNames = map[Format]string{
	FormatUnknown:    "UNKNOWN",
	FormatQR:         "QR_CODE",
	FormatCode128:    "CODE_128",
	FormatEAN13:      "EAN_13",
	FormatDataMatrix: "DATA_MATRIX",
	FormatCode39:     "CODE_39",
	FormatCode93:     "CODE_93",
	FormatITF:        "ITF",
}

// formatAliases maps lower-case user spellings to formats.
var formatAliases = map[string]Format{
	"qr":          FormatQR,
	"qrcode":      FormatQR,
	"qr_code":     FormatQR,
	"code128":     FormatCode128,
	"code_128":    FormatCode128,
	"ean13":       FormatEAN13,
	"ean_13":      FormatEAN13,
	"datamatrix":  FormatDataMatrix,
	"data_matrix": FormatDataMatrix,
	"dm":          FormatDataMatrix,
	"code39":      FormatCode39,
	"code_39":     FormatCode39,
	"code93":      FormatCode93,
	"code_93":     FormatCode93,
	"itf":         FormatITF,
}

// ErrUnknownFormat is returned by ParseFormat for unrecognized names.
var ErrUnknownFormat = errors.New("barcode: unknown format")

// String returns the canonical ZXing-style name of the format.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat resolves a format from its canonical name or a common alias.
// Matching is case-insensitive; dashes and spaces are treated as underscores.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseFormats parses a list of format names, skipping empty entries.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// DefaultFormats returns the symbologies accepted on every attempt unless
// configured otherwise.
func DefaultFormats() []Format {
	return []Format{
		FormatQR,
		FormatCode128,
		FormatEAN13,
		FormatDataMatrix,
		FormatCode39,
		FormatCode93,
		FormatITF,
	}
}

// Binarizer selects the luminance to 1-bit conversion strategy.
type Binarizer int

const (
	// BinarizerHybrid uses local block thresholds (adaptive).
	BinarizerHybrid Binarizer = iota
	// BinarizerGlobalHistogram uses one threshold per row from a histogram.
	BinarizerGlobalHistogram
)

func (b Binarizer) String() string {
	switch b {
	case BinarizerHybrid:
		return "hybrid"
	case BinarizerGlobalHistogram:
		return "global_histogram"
	default:
		return fmt.Sprintf("Binarizer(%d)", int(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Binarizer) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Hints are passed unchanged to the decoder on every attempt.
type Hints struct {
	// Formats constrains the set of symbologies to try, in order.
	Formats []Format

	// TryHarder enables the decoder's more exhaustive scan.
	TryHarder bool
}

// DefaultHints returns all default formats with TryHarder enabled.
func DefaultHints() Hints {
	return Hints{Formats: DefaultFormats(), TryHarder: true}
}

// Symbol is one decoded barcode as reported by the decoder.
type Symbol struct {
	Format Format
	Text   string
	// Points are the decoder's result points (finder patterns or bar ends)
	// in the coordinates of the image passed to Decode.
	Points []image.Point
}

// ErrNotFound reports that no symbol was decoded. It is the normal outcome
// for most attempts.
var ErrNotFound = errors.New("barcode: not found")

// Decoder makes one decode attempt on img using the given binarizer.
// It returns ErrNotFound (possibly wrapped) when nothing is decoded.
type Decoder interface {
	Decode(img image.Image, binarizer Binarizer, hints Hints) (*Symbol, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(img image.Image, binarizer Binarizer, hints Hints) (*Symbol, error)

// Decode calls f.
func (f DecoderFunc) Decode(img image.Image, binarizer Binarizer, hints Hints) (*Symbol, error) {
	return f(img, binarizer, hints)
}
