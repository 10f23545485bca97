package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/testutil"
)

func newSearcher(t *testing.T, dec barcode.Decoder, workers int, progress ProgressCallback) *Searcher {
	t.Helper()
	s, err := NewBuilder().
		WithDecoder(dec).
		WithParallelWorkers(workers).
		WithProgressCallback(progress).
		Build()
	require.NoError(t, err)
	return s
}

func hitTexts(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out
}

func TestBuilder_Validate(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder) *Builder
		want  string
	}{
		{"negative contrast", func(b *Builder) *Builder {
			return b.WithVariants(Variant{Contrast: -1})
		}, "contrast"},
		{"brightness out of range", func(b *Builder) *Builder {
			return b.WithVariants(Variant{Contrast: 1, Brightness: 300})
		}, "brightness"},
		{"unknown format", func(b *Builder) *Builder {
			return b.WithFormats(barcode.FormatUnknown)
		}, "unknown format"},
		{"no variants", func(b *Builder) *Builder {
			cfg := b.Config()
			cfg.Variants = nil
			return b.WithConfig(cfg)
		}, "variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(NewBuilder()).Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuilder_Defaults(t *testing.T) {
	s, err := NewBuilder().WithTryHarder(false).Build()
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, PlanVariants(), cfg.Variants)
	assert.Equal(t, barcode.DefaultFormats(), cfg.Hints.Formats)
	assert.False(t, cfg.Hints.TryHarder)
	assert.Equal(t, 0, cfg.Parallel.MaxWorkers)
}

func TestWorkersFor(t *testing.T) {
	assert.Equal(t, 3, ParallelConfig{MaxWorkers: 3}.workersFor(4))
	auto := ParallelConfig{}.workersFor(4)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, 4)
	assert.Equal(t, 1, ParallelConfig{}.workersFor(1))
}

func TestSearch_InvalidImage(t *testing.T) {
	dec := &missDecoder{}
	s := newSearcher(t, dec, 1, nil)

	_, err := s.Search(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = s.Search(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 10)))
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Zero(t, dec.calls.Load(), "no attempt before validation")
}

func TestSearch_RunsEveryAttempt(t *testing.T) {
	for _, workers := range []int{1, 4} {
		dec := &missDecoder{}
		progress := &recordingProgress{}
		s := newSearcher(t, dec, workers, progress)

		report, err := s.Search(context.Background(), grayImage(900, 300))
		require.NoError(t, err)

		assert.Equal(t, 17, report.Regions)
		assert.Equal(t, 4, report.Variants)
		assert.Equal(t, 68, report.TotalSteps)
		assert.Equal(t, 68, report.Attempts)
		assert.Equal(t, 68, report.Misses)
		assert.Equal(t, int64(2*68), dec.calls.Load(), "both binarizers per attempt")
		assert.False(t, report.Found())
		assert.Equal(t, "no barcode found", report.Message())

		assert.Equal(t, 68, progress.total)
		require.Len(t, progress.completed, 1)
		assert.InDelta(t, 100.0, progress.completed[0].Percent, 1e-9)
	}
}

func TestSearch_CanonicalOrderSequential(t *testing.T) {
	s := newSearcher(t, sizeDecoder(), 1, nil)
	report, err := s.Search(context.Background(), grayImage(900, 300))
	require.NoError(t, err)

	assert.Equal(t, []string{"900x120", "900x100", "120x300", "100x300", "900x300", "450x300"}, hitTexts(report.Hits))
	assert.Equal(t, 68-6, report.Duplicates)

	plan := PlanRegions(900, 300)
	assert.Equal(t, plan[0], report.Hits[0].Region)
	assert.Equal(t, plan[2], report.Hits[1].Region)
	assert.Equal(t, plan[13], report.Hits[5].Region)
	assert.True(t, report.Hits[0].Variant.IsIdentity(), "first variant wins under dedup")
}

func TestSearch_ParallelFindsSameSet(t *testing.T) {
	sequential, err := newSearcher(t, sizeDecoder(), 1, nil).Search(context.Background(), grayImage(900, 300))
	require.NoError(t, err)
	parallel, err := newSearcher(t, sizeDecoder(), 4, nil).Search(context.Background(), grayImage(900, 300))
	require.NoError(t, err)

	assert.ElementsMatch(t, hitTexts(sequential.Hits), hitTexts(parallel.Hits))
}

func TestSearch_Idempotent(t *testing.T) {
	s := newSearcher(t, sizeDecoder(), 1, nil)
	agg := NewAggregator()
	img := grayImage(400, 400)

	first, err := s.SearchInto(context.Background(), agg, "img", img)
	require.NoError(t, err)
	second, err := s.SearchInto(context.Background(), agg, "img", img)
	require.NoError(t, err)

	assert.Equal(t, hitTexts(first.Hits), hitTexts(second.Hits))
	assert.Len(t, agg.LocationsOf("img"), len(second.Hits), "reset drops the first run's markers")
}

func TestSearch_ProgressMonotonic(t *testing.T) {
	for _, workers := range []int{1, 8} {
		progress := &recordingProgress{}
		s := newSearcher(t, sizeDecoder(), workers, progress)
		_, err := s.Search(context.Background(), grayImage(640, 480))
		require.NoError(t, err)

		events := progress.snapshot()
		require.Len(t, events, 48)
		for i, ev := range events {
			assert.Equal(t, i+1, ev.Completed)
			assert.Equal(t, 48, ev.Total)
			if i > 0 {
				assert.GreaterOrEqual(t, ev.Percent, events[i-1].Percent)
				assert.GreaterOrEqual(t, ev.Hits, events[i-1].Hits)
			}
		}
		assert.True(t, events[len(events)-1].Done())
	}
}

func TestSearch_FaultsAreIsolated(t *testing.T) {
	s := newSearcher(t, panicDecoder(), 2, nil)
	report, err := s.Search(context.Background(), grayImage(300, 300))
	require.NoError(t, err)

	assert.Empty(t, report.Hits)
	assert.Equal(t, report.TotalSteps, report.Faults)
	assert.Equal(t, report.TotalSteps, report.Attempts)
}

func TestSearch_Cancelled(t *testing.T) {
	dec := newBlockingDecoder()
	progress := &recordingProgress{}
	s := newSearcher(t, dec, 2, progress)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-dec.started
		cancel()
		close(dec.release)
	}()

	report, err := s.Search(ctx, grayImage(900, 300))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.True(t, report.Cancelled)
	assert.Less(t, report.Attempts, report.TotalSteps)
	assert.Equal(t, report.TotalSteps-report.Attempts, report.Skipped)
	assert.Contains(t, report.Message(), "search cancelled after")
	assert.Empty(t, progress.completed)
	require.Len(t, progress.errs, 1)
	assert.True(t, errors.Is(progress.errs[0], context.Canceled))
}

func TestSearch_AlreadyCancelled(t *testing.T) {
	dec := &missDecoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newSearcher(t, dec, 1, nil).Search(ctx, grayImage(100, 100))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Attempts)
	assert.Zero(t, dec.calls.Load())
}

func TestSearch_RealDecoder(t *testing.T) {
	if testing.Short() {
		t.Skip("decodes full plans with the real decoder")
	}

	s, err := NewBuilder().Build()
	require.NoError(t, err)

	t.Run("QR in the top-left corner", func(t *testing.T) {
		report, err := s.Search(context.Background(), testutil.MustRender(testutil.QRTopLeftScene()))
		require.NoError(t, err)
		require.Len(t, report.Hits, 1)

		hit := report.Hits[0]
		assert.Equal(t, barcode.FormatQR, hit.Format)
		assert.Equal(t, "HELLO", hit.Text)
		assert.True(t, hit.Region.Overlaps(image.Rect(0, 0, 200, 200)))
	})

	t.Run("two Code 128 symbols", func(t *testing.T) {
		report, err := s.Search(context.Background(), testutil.MustRender(testutil.TwoCode128Scene()))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"LEFT-001", "RIGHT-002"}, hitTexts(report.Hits))
		for _, h := range report.Hits {
			assert.Equal(t, barcode.FormatCode128, h.Format)
		}
	})

	t.Run("Data Matrix", func(t *testing.T) {
		report, err := s.Search(context.Background(), testutil.MustRender(testutil.DataMatrixScene()))
		require.NoError(t, err)
		require.Len(t, report.Hits, 1)
		assert.Equal(t, barcode.FormatDataMatrix, report.Hits[0].Format)
		assert.Equal(t, "DM-42", report.Hits[0].Text)
	})

	t.Run("low contrast QR", func(t *testing.T) {
		img := testutil.LowContrast(testutil.MustRender(testutil.QRTopLeftScene()), -0.6)
		report, err := s.Search(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, []string{"HELLO"}, hitTexts(report.Hits))
	})

	t.Run("blank image", func(t *testing.T) {
		report, err := s.Search(context.Background(), testutil.Blank(640, 480))
		require.NoError(t, err)
		assert.Empty(t, report.Hits)
		assert.Equal(t, "no barcode found", report.Message())
	})
}
