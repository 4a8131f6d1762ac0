package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for multi-image processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel image workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type indexedJob struct {
	index int
}

type indexedResult[T any] struct {
	index int
	value T
}

// runIndexed evaluates fn for 0..n-1 on a worker pool and returns the values
// in index order. Indices not reached before ctx is done keep the zero value.
func runIndexed[T any](ctx context.Context, n, workers int, fn func(context.Context, int) T) []T {
	out := make([]T, n)
	if n == 0 {
		return out
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	if workers == 1 {
		for i := range n {
			if ctx.Err() != nil {
				break
			}
			out[i] = fn(ctx, i)
		}
		return out
	}

	jobs := make(chan indexedJob, n)
	results := make(chan indexedResult[T], n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- indexedResult[T]{index: job.index, value: fn(ctx, job.index)}
			}
		}()
	}

	for i := range n {
		jobs <- indexedJob{index: i}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		out[r.index] = r.value
	}
	return out
}

// imageOutcome pairs a result with its error for ordered aggregation.
type imageOutcome struct {
	result *Result
	err    error
}

// ProcessImages identifies products in several independent images. Results
// are returned in input order; the error reports the first failed image.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	config := p.cfg.Parallel

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	var (
		mu        sync.Mutex
		processed int
	)
	outcomes := runIndexed(ctx, len(images), config.MaxWorkers, func(ctx context.Context, i int) imageOutcome {
		res, err := p.Identify(ctx, images[i])
		if config.ProgressCallback != nil {
			mu.Lock()
			processed++
			if err != nil {
				config.ProgressCallback.OnError(i, err)
			}
			config.ProgressCallback.OnProgress(processed, len(images))
			mu.Unlock()
		}
		return imageOutcome{result: res, err: err}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Result, len(images))
	var firstError error
	for i, o := range outcomes {
		if o.err != nil {
			if firstError == nil {
				firstError = fmt.Errorf("image %d: %w", i, o.err)
			}
			continue
		}
		ordered[i] = o.result
	}
	return ordered, firstError
}
