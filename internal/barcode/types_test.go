package barcode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"QR_CODE", FormatQR},
		{"qr", FormatQR},
		{" QRCode ", FormatQR},
		{"code-128", FormatCode128},
		{"CODE_128", FormatCode128},
		{"ean13", FormatEAN13},
		{"Data Matrix", FormatDataMatrix},
		{"dm", FormatDataMatrix},
		{"code39", FormatCode39},
		{"CODE_93", FormatCode93},
		{"itf", FormatITF},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseFormat("aztec")
	require.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), `"aztec"`)
}

func TestFormat_RoundTripsThroughCanonicalName(t *testing.T) {
	for _, f := range DefaultFormats() {
		parsed, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}
	assert.Equal(t, "Format(42)", Format(42).String())
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"qr", "", "code128"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatQR, FormatCode128}, got)

	_, err = ParseFormats([]string{"qr", "pdf417"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormat_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Type Format `json:"type"`
	}{FormatEAN13})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"EAN_13"}`, string(data))

	var back struct {
		Type Format `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"type":"DATA_MATRIX"}`), &back))
	assert.Equal(t, FormatDataMatrix, back.Type)
	assert.Error(t, json.Unmarshal([]byte(`{"type":"nope"}`), &back))
}

func TestBinarizer_String(t *testing.T) {
	assert.Equal(t, "hybrid", BinarizerHybrid.String())
	assert.Equal(t, "global_histogram", BinarizerGlobalHistogram.String())
	assert.Equal(t, "Binarizer(7)", Binarizer(7).String())
}

func TestDefaultHints(t *testing.T) {
	h := DefaultHints()
	assert.True(t, h.TryHarder)
	assert.Equal(t, DefaultFormats(), h.Formats)
	assert.NotContains(t, h.Formats, FormatUnknown)
}
