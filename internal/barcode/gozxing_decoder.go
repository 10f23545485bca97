package barcode

import (
	"fmt"
	"image"
	"math"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// NewDecoder returns the gozxing-backed decoder.
func NewDecoder() Decoder { return &gozxingDecoder{} }

type gozxingDecoder struct{}

// Decode builds a binary bitmap with the requested binarizer and runs one
// reader per hinted format in order. The first successful reader wins.
func (d *gozxingDecoder) Decode(img image.Image, binarizer Binarizer, hints Hints) (*Symbol, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNotFound
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(newBinarizer(source, binarizer))
	if err != nil {
		return nil, fmt.Errorf("barcode: create bitmap: %w", err)
	}

	zxHints := make(map[gozxing.DecodeHintType]interface{})
	if hints.TryHarder {
		zxHints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	formats := hints.Formats
	if len(formats) == 0 {
		formats = DefaultFormats()
	}

	var lastErr error
	for _, f := range formats {
		reader := newReader(f)
		if reader == nil {
			continue
		}
		res, err := reader.Decode(bitmap, zxHints)
		if err != nil {
			lastErr = err
			continue
		}
		if res == nil {
			continue
		}
		return symbolFromResult(res), nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
	}
	return nil, ErrNotFound
}

func newBinarizer(source gozxing.LuminanceSource, b Binarizer) gozxing.Binarizer {
	if b == BinarizerGlobalHistogram {
		return gozxing.NewGlobalHistgramBinarizer(source)
	}
	return gozxing.NewHybridBinarizer(source)
}

// newReader returns a fresh reader for f, or nil if f has no reader.
func newReader(f Format) gozxing.Reader {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatCode93:
		return oned.NewCode93Reader()
	case FormatITF:
		return oned.NewITFReader()
	default:
		return nil
	}
}

func symbolFromResult(res *gozxing.Result) *Symbol {
	sym := &Symbol{
		Format: formatFromZXing(res.GetBarcodeFormat()),
		Text:   res.GetText(),
	}
	for _, p := range res.GetResultPoints() {
		if p == nil {
			continue
		}
		sym.Points = append(sym.Points, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	return sym
}

func formatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_CODE_93:
		return FormatCode93
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	default:
		return FormatUnknown
	}
}
