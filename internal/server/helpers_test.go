package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/testutil"
)

// constDecoder reports the same QR symbol on every attempt.
func constDecoder(text string) barcode.Decoder {
	return barcode.DecoderFunc(func(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
		return &barcode.Symbol{Format: barcode.FormatQR, Text: text}, nil
	})
}

func missDecoder() barcode.Decoder {
	return barcode.DecoderFunc(func(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
		return nil, barcode.ErrNotFound
	})
}

// gateDecoder blocks every attempt until release is closed.
type gateDecoder struct {
	release chan struct{}
	once    sync.Once
}

func newGateDecoder() *gateDecoder { return &gateDecoder{release: make(chan struct{})} }

func (d *gateDecoder) Decode(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
	<-d.release
	return nil, barcode.ErrNotFound
}

func (d *gateDecoder) open() { d.once.Do(func() { close(d.release) }) }

// newTestServer builds a server around dec with a single worker.
func newTestServer(t *testing.T, dec barcode.Decoder, mutate func(*Config)) *Server {
	t.Helper()
	search := pipeline.DefaultConfig()
	search.Parallel.MaxWorkers = 1
	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     10,
		Search:         search,
		Decoder:        dec,
		OverlayEnabled: true,
		Version:        "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func blankPNG(t *testing.T) []byte {
	t.Helper()
	return pngBytes(t, testutil.Blank(90, 60))
}

// multipartRequest builds a POST with one file part and optional fields.
func multipartRequest(t *testing.T, target, field, filename string, data []byte,
	fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
