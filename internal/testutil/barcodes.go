package testutil

import (
	"fmt"
	"image"
	"image/color"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/code93"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/qr"
	"github.com/boombuler/barcode/twooffive"
	"github.com/disintegration/imaging"
)

// Symbology names the encoders available for fixtures.
type Symbology string

const (
	SymQR         Symbology = "qr"
	SymCode128    Symbology = "code128"
	SymEAN13      Symbology = "ean13"
	SymDataMatrix Symbology = "datamatrix"
	SymCode39     Symbology = "code39"
	SymCode93     Symbology = "code93"
	SymITF        Symbology = "itf"
)

// Encode renders text in the given symbology with each module drawn as
// module x module pixels (1D codes use height for bar length).
func Encode(sym Symbology, text string, module, height int) (image.Image, error) {
	if module < 1 {
		module = 1
	}
	var (
		bc  barcode.Barcode
		err error
	)
	twoD := false
	switch sym {
	case SymQR:
		bc, err = qr.Encode(text, qr.M, qr.Auto)
		twoD = true
	case SymDataMatrix:
		bc, err = datamatrix.Encode(text)
		twoD = true
	case SymCode128:
		bc, err = code128.Encode(text)
	case SymEAN13:
		bc, err = ean.Encode(text)
	case SymCode39:
		bc, err = code39.Encode(text, false, false)
	case SymCode93:
		bc, err = code93.Encode(text, true, false)
	case SymITF:
		bc, err = twooffive.Encode(text, true)
	default:
		return nil, fmt.Errorf("unknown symbology %q", sym)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s %q: %w", sym, text, err)
	}

	b := bc.Bounds()
	w := b.Dx() * module
	h := height
	if twoD || h <= 0 {
		h = b.Dy() * module
	}
	scaled, err := barcode.Scale(bc, w, h)
	if err != nil {
		return nil, fmt.Errorf("scale %s: %w", sym, err)
	}
	return scaled, nil
}

// Placement positions one symbol on a scene.
type Placement struct {
	Symbology Symbology
	Text      string
	Module    int
	Height    int
	At        image.Point
}

// Scene is a white canvas with symbols pasted onto it.
type Scene struct {
	Width      int
	Height     int
	Placements []Placement
}

// Render draws the scene. White around each symbol acts as its quiet zone.
func (s Scene) Render() (*image.NRGBA, error) {
	canvas := imaging.New(s.Width, s.Height, color.White)
	for _, p := range s.Placements {
		img, err := Encode(p.Symbology, p.Text, p.Module, p.Height)
		if err != nil {
			return nil, err
		}
		canvas = imaging.Paste(canvas, img, p.At)
	}
	return canvas, nil
}

// Bounds returns the rectangle each placement occupies after rendering.
func (s Scene) Bounds() ([]image.Rectangle, error) {
	out := make([]image.Rectangle, 0, len(s.Placements))
	for _, p := range s.Placements {
		img, err := Encode(p.Symbology, p.Text, p.Module, p.Height)
		if err != nil {
			return nil, err
		}
		out = append(out, img.Bounds().Sub(img.Bounds().Min).Add(p.At))
	}
	return out, nil
}

// QRTopLeftScene is a 400x400 image with one QR code reading "HELLO" inside
// the top-left corner square.
func QRTopLeftScene() Scene {
	return Scene{
		Width:  400,
		Height: 400,
		Placements: []Placement{
			{Symbology: SymQR, Text: "HELLO", Module: 7, At: image.Pt(40, 40)},
		},
	}
}

// TwoCode128Scene is a 1000x300 image with distinct Code 128 symbols in the
// left and right thirds.
func TwoCode128Scene() Scene {
	return Scene{
		Width:  1000,
		Height: 300,
		Placements: []Placement{
			{Symbology: SymCode128, Text: "LEFT-001", Module: 2, Height: 120, At: image.Pt(40, 90)},
			{Symbology: SymCode128, Text: "RIGHT-002", Module: 2, Height: 120, At: image.Pt(690, 90)},
		},
	}
}

// DataMatrixScene is a 300x300 image with one Data Matrix symbol reading
// "DM-42". The detector needs the larger module and the wide white margin.
func DataMatrixScene() Scene {
	return Scene{
		Width:  300,
		Height: 300,
		Placements: []Placement{
			{Symbology: SymDataMatrix, Text: "DM-42", Module: 10, At: image.Pt(40, 40)},
		},
	}
}

// MustRender renders s and panics on encoder errors. Intended for tests
// with fixed fixture definitions.
func MustRender(s Scene) *image.NRGBA {
	img, err := s.Render()
	if err != nil {
		panic(err)
	}
	return img
}

// Blank returns a uniform white image.
func Blank(width, height int) *image.NRGBA {
	return imaging.New(width, height, color.White)
}
