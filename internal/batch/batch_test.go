package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/testutil"
	"github.com/dhjs0000/QERC/internal/utils"
)

// widthDecoder reports a hit with the given text only for crops
// that are exactly w pixels wide.
func widthDecoder(w int, text string) barcode.Decoder {
	return barcode.DecoderFunc(func(img image.Image, _ barcode.Binarizer, _ barcode.Hints) (*barcode.Symbol, error) {
		if img.Bounds().Dx() == w {
			return &barcode.Symbol{Format: barcode.FormatQR, Text: text}, nil
		}
		return nil, barcode.ErrNotFound
	})
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Search.Parallel.MaxWorkers = 1
	cfg.Out = &bytes.Buffer{}
	return cfg
}

func writeFixtures(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, testutil.WritePNG(paths[i], testutil.Blank(120, 90)))
	}
	return paths
}

func TestProcessBatch_NoImageFiles(t *testing.T) {
	result, err := ProcessBatch(context.Background(), []string{t.TempDir()}, testConfig())
	require.ErrorIs(t, err, ErrNoImages)
	assert.Nil(t, result)
}

func TestProcessBatch_InvalidImagePath(t *testing.T) {
	result, err := ProcessBatch(context.Background(), []string{"/nonexistent/file.png"}, testConfig())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcessBatch_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Format = "pdf"
	_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch config")
}

func TestProcessBatch_SessionsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir, "b.png", "a.png")

	result, err := processBatch(context.Background(), []string{dir}, testConfig(), widthDecoder(120, "WHOLE"))
	require.NoError(t, err)

	require.Len(t, result.Images, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), result.Images[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.png"), result.Images[1].Path)
	for _, img := range result.Images {
		require.NoError(t, img.Err)
		require.Len(t, img.Report.Hits, 1, "dedup is per image, not per batch")
		assert.Equal(t, "WHOLE", img.Report.Hits[0].Text)
		assert.NotEmpty(t, result.Aggregator.LocationsOf(img.Path))
	}
	assert.Equal(t, 2, result.Processed())
	assert.Equal(t, 2, result.TotalHits())
	assert.Equal(t, 1, result.Workers)
	assert.Equal(t, []string{result.Images[0].Path, result.Images[1].Path}, result.Aggregator.Images())
}

func TestProcessBatch_ContinueOnError(t *testing.T) {
	dir := t.TempDir()
	good := writeFixtures(t, dir, "good.png")[0]
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))

	cfg := testConfig()
	result, err := processBatch(context.Background(), []string{bad, good}, cfg, widthDecoder(1, "never"))
	require.NoError(t, err)
	require.Len(t, result.Images, 2)
	assert.True(t, utils.IsInputFault(result.Images[0].Err))
	assert.NoError(t, result.Images[1].Err)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, 1, result.Processed())

	cfg.ContinueOnError = false
	result, err = processBatch(context.Background(), []string{bad, good}, cfg, widthDecoder(1, "never"))
	require.Error(t, err)
	assert.Len(t, result.Images, 1, "stops at the first failure")
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixtures(t, dir, "a.png", "b.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := processBatch(ctx, paths, testConfig(), widthDecoder(120, "x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Images)
}

func TestProcessBatch_Overlay(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixtures(t, dir, "scan.png")

	cfg := testConfig()
	cfg.OverlayDir = filepath.Join(dir, "overlays")
	result, err := processBatch(context.Background(), paths, cfg, widthDecoder(120, "x"))
	require.NoError(t, err)

	want := filepath.Join(cfg.OverlayDir, "scan_overlay.png")
	assert.Equal(t, want, result.Images[0].OverlayPath)
	assert.True(t, testutil.FileExists(want))
}

func TestProcessBatch_RealDecoder(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the real decoder")
	}
	dir := t.TempDir()
	qr := filepath.Join(dir, "qr.png")
	require.NoError(t, testutil.WritePNG(qr, testutil.MustRender(testutil.QRTopLeftScene())))

	result, err := ProcessBatch(context.Background(), []string{dir}, testConfig())
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	require.Len(t, result.Images[0].Report.Hits, 1)
	assert.Equal(t, "HELLO", result.Images[0].Report.Hits[0].Text)
}

func TestResult_SaveAndStats(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixtures(t, dir, "a.png")
	result, err := processBatch(context.Background(), paths, testConfig(), widthDecoder(120, "HELLO"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, result.SaveResults(&out, export.FormatCSV, "", false))
	assert.Contains(t, out.String(), "image,type,content,timestamp,x,y,width,height")
	assert.Contains(t, out.String(), "QR_CODE,HELLO")

	out.Reset()
	file := filepath.Join(dir, "out.json")
	require.NoError(t, result.SaveResults(&out, export.FormatJSON, file, false))
	assert.Contains(t, out.String(), "Results written to")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "HELLO"`)

	out.Reset()
	result.PrintStats(&out, false)
	assert.Contains(t, out.String(), "Total images: 1")
	assert.Contains(t, out.String(), "Barcodes: 1")

	out.Reset()
	result.PrintStats(&out, true)
	assert.Empty(t, out.String())
}

func TestFormatBatchResults_Errors(t *testing.T) {
	images := []ImageOutcome{{Path: "bad.png", Err: errors.New("boom")}}
	out, err := formatBatchResults(images, export.FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "Error: boom")

	_, err = formatBatchResults(images, "nope")
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}
