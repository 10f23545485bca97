// Package export serializes search results as text, JSON, CSV, XML or YAML.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dhjs0000/QERC/internal/pipeline"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned by ParseFormat and Write for unsupported formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV, FormatXML, FormatYAML}
}

// ParseFormat resolves a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV, FormatXML, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Location is the pixel rectangle of the region that produced a hit.
type Location struct {
	X      float64 `json:"x" yaml:"x" xml:"x,attr"`
	Y      float64 `json:"y" yaml:"y" xml:"y,attr"`
	Width  float64 `json:"width" yaml:"width" xml:"width,attr"`
	Height float64 `json:"height" yaml:"height" xml:"height,attr"`
}

// Barcode is one exported hit.
type Barcode struct {
	Type      string    `json:"type" yaml:"type"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Location  Location  `json:"location" yaml:"location"`
}

// ImageResult is the export record for one searched image.
type ImageResult struct {
	Image     string    `json:"image" yaml:"image"`
	Width     int       `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int       `json:"height,omitempty" yaml:"height,omitempty"`
	Barcodes  []Barcode `json:"barcodes" yaml:"barcodes"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	Cancelled bool      `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// FromHits converts hits to export records in the same order.
func FromHits(hits []pipeline.Hit) []Barcode {
	out := make([]Barcode, len(hits))
	for i, h := range hits {
		out[i] = Barcode{
			Type:      h.Format.String(),
			Content:   h.Text,
			Timestamp: h.Timestamp.UTC(),
			Location: Location{
				X:      h.Region.X,
				Y:      h.Region.Y,
				Width:  h.Region.Width,
				Height: h.Region.Height,
			},
		}
	}
	return out
}

// FromReport builds the record for one finished or cancelled session.
func FromReport(image string, r *pipeline.Report) ImageResult {
	if r == nil {
		return ImageResult{Image: image, Barcodes: []Barcode{}}
	}
	return ImageResult{
		Image:     image,
		Width:     r.Width,
		Height:    r.Height,
		Barcodes:  FromHits(r.Hits),
		Message:   r.Message(),
		Cancelled: r.Cancelled,
	}
}

// FromError builds the record for an image that could not be searched.
func FromError(image string, err error) ImageResult {
	res := ImageResult{Image: image, Barcodes: []Barcode{}}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Write encodes results to w in format f.
func Write(w io.Writer, f Format, results []ImageResult) error {
	switch f {
	case FormatText, "":
		return WriteText(w, results)
	case FormatJSON:
		return WriteJSON(w, results)
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatXML:
		return WriteXML(w, results)
	case FormatYAML:
		return WriteYAML(w, results)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// String encodes results in format f and returns the output.
func String(f Format, results []ImageResult) (string, error) {
	var b strings.Builder
	if err := Write(&b, f, results); err != nil {
		return "", err
	}
	return b.String(), nil
}
