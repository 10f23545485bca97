package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
)

func hitOf(format barcode.Format, text string, region Region) Hit {
	return Hit{Format: format, Text: text, Region: region}
}

func TestResultSet_Dedup(t *testing.T) {
	rs := NewResultSet()
	r1 := Region{X: 0, Y: 0, Width: 10, Height: 10}
	r2 := Region{X: 5, Y: 5, Width: 10, Height: 10}

	assert.True(t, rs.Add(hitOf(barcode.FormatQR, "HELLO", r1)))
	assert.False(t, rs.Add(hitOf(barcode.FormatQR, "HELLO", r2)), "same format and text")
	assert.True(t, rs.Add(hitOf(barcode.FormatDataMatrix, "HELLO", r2)), "same text, other format")

	require.Equal(t, 2, rs.Len())
	assert.True(t, rs.Contains(barcode.FormatQR, "HELLO"))
	assert.False(t, rs.Contains(barcode.FormatCode128, "HELLO"))
	assert.Equal(t, []Region{r1, r2}, rs.Regions(), "first discovery keeps its region")

	hits := rs.Hits()
	hits[0].Text = "mutated"
	assert.Equal(t, "HELLO", rs.Hits()[0].Text, "Hits returns a copy")

	rs.Clear()
	assert.Zero(t, rs.Len())
	assert.True(t, rs.Add(hitOf(barcode.FormatQR, "HELLO", r1)))
}

func TestResultSet_ZeroValue(t *testing.T) {
	var rs ResultSet
	assert.True(t, rs.Add(hitOf(barcode.FormatITF, "12345678", Region{})))
	assert.Equal(t, 1, rs.Len())
}

func TestResultSet_ConcurrentAdd(t *testing.T) {
	rs := NewResultSet()
	const workers = 16

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				rs.Add(hitOf(barcode.FormatCode128, fmt.Sprintf("code-%d", i), Region{X: float64(w)}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, rs.Len())
}

func TestResultSet_DedupProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no two hits share format and text", prop.ForAll(
		func(codes []int, formats []int) bool {
			rs := NewResultSet()
			for i, code := range codes {
				text := fmt.Sprintf("code-%d", code)
				f := barcode.FormatQR
				if len(formats) > 0 {
					f = barcode.Format(1 + formats[i%len(formats)]%7)
				}
				rs.Add(hitOf(f, text, Region{X: float64(i)}))
			}
			seen := map[string]bool{}
			for _, h := range rs.Hits() {
				k := h.Format.String() + "\x00" + h.Text
				if seen[k] {
					return false
				}
				seen[k] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.Property("first occurrence wins", prop.ForAll(
		func(codes []int) bool {
			rs := NewResultSet()
			first := map[string]float64{}
			for i, code := range codes {
				text := fmt.Sprintf("code-%d", code)
				if _, ok := first[text]; !ok {
					first[text] = float64(i)
				}
				rs.Add(hitOf(barcode.FormatQR, text, Region{X: float64(i)}))
			}
			for _, h := range rs.Hits() {
				if h.Region.X != first[h.Text] {
					return false
				}
			}
			return len(rs.Hits()) == len(first)
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}

func TestAggregator_ResetAndLocations(t *testing.T) {
	agg := NewAggregator()
	assert.Empty(t, agg.Active())
	assert.Zero(t, agg.Len())

	agg.Reset("a.png")
	r1 := Region{X: 1, Width: 10, Height: 10}
	r2 := Region{X: 2, Width: 10, Height: 10}
	assert.True(t, agg.add(hitOf(barcode.FormatQR, "one", r1)))
	assert.False(t, agg.add(hitOf(barcode.FormatQR, "one", r2)))
	assert.True(t, agg.add(hitOf(barcode.FormatQR, "two", r2)))

	assert.Equal(t, "a.png", agg.Active())
	assert.Equal(t, []Region{r1, r2}, agg.LocationsOf("a.png"))

	agg.Reset("b.png")
	assert.Zero(t, agg.Len(), "reset clears current hits")
	assert.Equal(t, []Region{r1, r2}, agg.LocationsOf("a.png"), "other images keep their markers")
	assert.Empty(t, agg.LocationsOf("b.png"))

	assert.True(t, agg.add(hitOf(barcode.FormatQR, "one", r1)), "dedup is per image")

	agg.Reset("a.png")
	assert.Empty(t, agg.LocationsOf("a.png"), "reset clears the image's own markers")
	assert.Equal(t, []string{"a.png", "b.png"}, agg.Images())
}
