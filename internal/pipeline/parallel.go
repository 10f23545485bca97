package pipeline

import (
	"context"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for the attempt worker pool.
type ParallelConfig struct {
	// MaxWorkers is the pool size. 0 means min(runtime.NumCPU(), variants).
	MaxWorkers int
}

// DefaultParallelConfig returns the automatic pool sizing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: 0}
}

// Workers returns the pool size used for a plan with the given variant count.
func (c ParallelConfig) Workers(variants int) int { return c.workersFor(variants) }

// workersFor resolves the pool size for a plan with the given variant count.
func (c ParallelConfig) workersFor(variants int) int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	n := runtime.NumCPU()
	if variants > 0 && variants < n {
		n = variants
	}
	if n < 1 {
		n = 1
	}
	return n
}

// attemptJob is one (variant, region) pair bound to its variant snapshot.
type attemptJob struct {
	variantIndex int
	regionIndex  int
	variant      Variant
	snapshot     image.Image
}

// startWorkers launches n workers that call handle for every job until jobs
// is closed. Jobs received after ctx is done are passed to skip instead, so
// the queue always drains.
func startWorkers(
	ctx context.Context,
	n int,
	jobs <-chan attemptJob,
	handle func(attemptJob),
	skip func(attemptJob),
) *sync.WaitGroup {
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					skip(job)
					continue
				}
				handle(job)
			}
		}()
	}
	return &wg
}

// enqueueAttempts materializes each variant snapshot once and queues its
// regions in plan order. It stops early when ctx is done and returns the
// number of jobs queued.
func enqueueAttempts(
	ctx context.Context,
	img image.Image,
	variants []Variant,
	regionCount int,
	jobs chan<- attemptJob,
) int {
	queued := 0
	for vi, v := range variants {
		if ctx.Err() != nil {
			return queued
		}
		snapshot := ApplyVariant(img, v)
		for ri := range regionCount {
			select {
			case jobs <- attemptJob{variantIndex: vi, regionIndex: ri, variant: v, snapshot: snapshot}:
				queued++
			case <-ctx.Done():
				return queued
			}
		}
	}
	return queued
}
