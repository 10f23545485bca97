package pipeline

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
)

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "miss", OutcomeMiss.String())
	assert.Equal(t, "hit", OutcomeHit.String())
	assert.Equal(t, "fault", OutcomeFault.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestAdapter_TriesHybridThenGlobal(t *testing.T) {
	dec := &scriptedDecoder{answers: map[barcode.Binarizer]*barcode.Symbol{
		barcode.BinarizerGlobalHistogram: {Format: barcode.FormatCode128, Text: "LEFT-001"},
	}}
	hints := barcode.Hints{Formats: []barcode.Format{barcode.FormatCode128}, TryHarder: true}
	adapter := NewAdapter(dec, hints, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	adapter.now = func() time.Time { return fixed }

	region := Region{X: 10, Y: 20, Width: 30, Height: 40}
	hit, outcome := adapter.Attempt(grayImage(100, 100), region)

	require.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, []barcode.Binarizer{barcode.BinarizerHybrid, barcode.BinarizerGlobalHistogram}, dec.seen)
	assert.Equal(t, barcode.FormatCode128, hit.Format)
	assert.Equal(t, "LEFT-001", hit.Text)
	assert.Equal(t, region, hit.Region)
	assert.Equal(t, barcode.BinarizerGlobalHistogram, hit.Binarizer)
	assert.Equal(t, fixed, hit.Timestamp)

	for _, h := range dec.hints {
		assert.Equal(t, hints, h, "hints pass through unchanged")
	}
	for _, b := range dec.bounds {
		assert.Equal(t, image.Rect(0, 0, 30, 40), b, "crop is re-based at the origin")
	}
}

func TestAdapter_HybridHitSkipsGlobal(t *testing.T) {
	dec := &scriptedDecoder{answers: map[barcode.Binarizer]*barcode.Symbol{
		barcode.BinarizerHybrid: {Format: barcode.FormatQR, Text: "HELLO"},
	}}
	hit, outcome := NewAdapter(dec, barcode.DefaultHints(), nil).Attempt(grayImage(50, 50), Region{Width: 50, Height: 50})

	require.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, barcode.BinarizerHybrid, hit.Binarizer)
	assert.Len(t, dec.seen, 1)
}

func TestAdapter_ClampsRegion(t *testing.T) {
	dec := &scriptedDecoder{}
	adapter := NewAdapter(dec, barcode.DefaultHints(), nil)

	// Bottom-left corner of a 900x300 image starts above the top edge.
	_, outcome := adapter.Attempt(grayImage(900, 300), Region{X: 0, Y: -150, Width: 450, Height: 450})
	assert.Equal(t, OutcomeMiss, outcome)
	require.Len(t, dec.bounds, 2)
	assert.Equal(t, image.Rect(0, 0, 450, 300), dec.bounds[0])
}

func TestAdapter_PointsInSourceCoordinates(t *testing.T) {
	adapter := NewAdapter(sizeDecoder(), barcode.DefaultHints(), nil)
	hit, outcome := adapter.Attempt(grayImage(200, 200), Region{X: 50, Y: 60, Width: 20, Height: 20})

	require.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, "20x20", hit.Text)
	assert.Equal(t, []image.Point{{X: 51, Y: 62}}, hit.Points)
}

func TestAdapter_Misses(t *testing.T) {
	dec := &missDecoder{}
	adapter := NewAdapter(dec, barcode.DefaultHints(), nil)

	t.Run("not found", func(t *testing.T) {
		_, outcome := adapter.Attempt(grayImage(10, 10), Region{Width: 10, Height: 10})
		assert.Equal(t, OutcomeMiss, outcome)
	})

	t.Run("region outside the image", func(t *testing.T) {
		before := dec.calls.Load()
		_, outcome := adapter.Attempt(grayImage(10, 10), Region{X: 50, Y: 50, Width: 5, Height: 5})
		assert.Equal(t, OutcomeMiss, outcome)
		assert.Equal(t, before, dec.calls.Load(), "decoder is not called for empty crops")
	})

	t.Run("nil image", func(t *testing.T) {
		_, outcome := adapter.Attempt(nil, Region{Width: 10, Height: 10})
		assert.Equal(t, OutcomeMiss, outcome)
	})
}

func TestAdapter_FaultIsContained(t *testing.T) {
	adapter := NewAdapter(panicDecoder(), barcode.DefaultHints(), nil)

	var (
		hit     Hit
		outcome Outcome
	)
	require.NotPanics(t, func() {
		hit, outcome = adapter.Attempt(grayImage(10, 10), Region{Width: 10, Height: 10})
	})
	assert.Equal(t, OutcomeFault, outcome)
	assert.Empty(t, hit.Text)
}

func TestAdapter_FaultThenHit(t *testing.T) {
	calls := 0
	dec := barcode.DecoderFunc(func(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
		calls++
		if calls == 1 {
			panic("hybrid blew up")
		}
		return &barcode.Symbol{Format: barcode.FormatEAN13, Text: "4006381333931"}, nil
	})

	hit, outcome := NewAdapter(dec, barcode.DefaultHints(), nil).Attempt(grayImage(10, 10), Region{Width: 10, Height: 10})
	require.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, barcode.BinarizerGlobalHistogram, hit.Binarizer)
}

func TestFaultError(t *testing.T) {
	err := &FaultError{Binarizer: barcode.BinarizerHybrid, Value: "boom"}
	assert.Equal(t, "decoder fault with hybrid binarizer: boom", err.Error())
}
