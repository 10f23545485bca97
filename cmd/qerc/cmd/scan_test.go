package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/testutil"
)

func TestScan_JSONWithMissingFile(t *testing.T) {
	useDecoder(t, constDecoder("CLI-1"))
	dir := t.TempDir()
	good := writeBlank(t, dir, "good.png")
	missing := filepath.Join(dir, "missing.png")

	out, _, err := execute(t, "scan", good, missing, "--format", "json", "--workers", "1")
	require.NoError(t, err)

	var results []export.ImageResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	assert.Equal(t, good, results[0].Image)
	require.Len(t, results[0].Barcodes, 1)
	assert.Equal(t, "CLI-1", results[0].Barcodes[0].Content)
	assert.Equal(t, "QR_CODE", results[0].Barcodes[0].Type)

	assert.Equal(t, missing, results[1].Image)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].Barcodes)
}

func TestScan_AllImagesFail(t *testing.T) {
	useDecoder(t, constDecoder("x"))
	_, _, err := execute(t, "scan", filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image could be processed")
}

func TestScan_Validation(t *testing.T) {
	useDecoder(t, constDecoder("x"))
	img := writeBlank(t, t.TempDir(), "a.png")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no args", args: []string{"scan"}, want: "requires at least 1 arg"},
		{name: "bad format", args: []string{"scan", img, "--format", "pdf"}, want: "invalid output format"},
		{name: "negative workers", args: []string{"scan", img, "--workers", "-2"}, want: "invalid search workers"},
		{name: "unknown symbology", args: []string{"scan", img, "--symbologies", "HIEROGLYPH"}, want: "invalid search formats"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScan_OutputFileAndOverlay(t *testing.T) {
	useDecoder(t, constDecoder("FILED"))
	dir := t.TempDir()
	img := writeBlank(t, dir, "shelf.png")
	outFile := filepath.Join(dir, "out.csv")
	overlays := filepath.Join(dir, "overlays")

	out, _, err := execute(t, "scan", img, "-f", "csv", "-o", outFile, "--overlay-dir", overlays, "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Results written to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "image,type,content,timestamp,x,y,width,height")
	assert.Contains(t, string(data), "FILED")

	assert.True(t, testutil.FileExists(filepath.Join(overlays, "shelf_overlay.png")))
}

func TestScan_TextOutput(t *testing.T) {
	useDecoder(t, constDecoder("TXT"))
	img := writeBlank(t, t.TempDir(), "t.png")

	out, _, err := execute(t, "scan", img, "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[QR_CODE] TXT")
}

func TestScan_RealDecoderFindsCornerQR(t *testing.T) {
	if testing.Short() {
		t.Skip("full search with the gozxing decoder")
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "qr.png")
	require.NoError(t, testutil.WritePNG(p, testutil.MustRender(testutil.QRTopLeftScene())))

	out, _, err := execute(t, "scan", p, "--format", "json")
	require.NoError(t, err)

	var res export.ImageResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Barcodes, 1)
	assert.Equal(t, "HELLO", res.Barcodes[0].Content)
	assert.Equal(t, "found 1 barcode", res.Message)
}
