package pipeline

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/dhjs0000/QERC/internal/barcode"
)

// missDecoder never decodes anything and counts calls.
type missDecoder struct {
	calls atomic.Int64
}

func (d *missDecoder) Decode(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
	d.calls.Add(1)
	return nil, barcode.ErrNotFound
}

// sizeDecoder "decodes" the crop size as text, so every distinct crop size
// is a distinct hit.
func sizeDecoder() barcode.Decoder {
	return barcode.DecoderFunc(func(img image.Image, _ barcode.Binarizer, _ barcode.Hints) (*barcode.Symbol, error) {
		b := img.Bounds()
		return &barcode.Symbol{
			Format: barcode.FormatQR,
			Text:   fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
			Points: []image.Point{{X: 1, Y: 2}},
		}, nil
	})
}

// panicDecoder panics on every call.
func panicDecoder() barcode.Decoder {
	return barcode.DecoderFunc(func(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
		panic("corrupt bitstream")
	})
}

// scriptedDecoder answers per binarizer and records what it was given.
type scriptedDecoder struct {
	mu      sync.Mutex
	answers map[barcode.Binarizer]*barcode.Symbol
	seen    []barcode.Binarizer
	bounds  []image.Rectangle
	hints   []barcode.Hints
}

func (d *scriptedDecoder) Decode(img image.Image, b barcode.Binarizer, h barcode.Hints) (*barcode.Symbol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, b)
	d.bounds = append(d.bounds, img.Bounds())
	d.hints = append(d.hints, h)
	if sym, ok := d.answers[b]; ok {
		return sym, nil
	}
	return nil, barcode.ErrNotFound
}

// blockingDecoder parks every call until release is closed.
type blockingDecoder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

func newBlockingDecoder() *blockingDecoder {
	return &blockingDecoder{started: make(chan struct{}), release: make(chan struct{})}
}

func (d *blockingDecoder) Decode(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
	d.calls.Add(1)
	d.once.Do(func() { close(d.started) })
	<-d.release
	return nil, barcode.ErrNotFound
}

func grayImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}
