// Package batch runs independent units of work on a bounded worker pool.
//
// Every unit reports a types.Result. A unit that fails, or panics, is
// recorded as failed and never stops its siblings. Cancelling the context
// stops new units from starting; units already running finish normally.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-compositor/pkg/types"
)

// ErrInvalidWorkers is returned when the worker count is below one
var ErrInvalidWorkers = errors.New("thread count must be at least 1")

// Task processes the i-th unit of work
type Task func(ctx context.Context, i int) types.Result

// Runner is a bounded worker pool
type Runner struct {
	workers  int
	logger   *zap.Logger
	onResult func(types.Result)
}

// Option customizes a Runner
type Option func(*Runner)

// WithLogger sets the logger used for panics and cancellations
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResultHook registers fn to be called, serialized, as each unit finishes
func WithResultHook(fn func(types.Result)) Option {
	return func(r *Runner) { r.onResult = fn }
}

// New creates a Runner with the given worker count
func New(workers int, opts ...Option) (*Runner, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}
	r := &Runner{workers: workers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Workers returns the pool size
func (r *Runner) Workers() int {
	return r.workers
}

// Run executes n units and returns their results in submission order.
// Units never started because ctx was cancelled are reported as skipped.
func (r *Runner) Run(ctx context.Context, n int, task Task) []types.Result {
	results := make([]types.Result, n)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			for j := i; j < n; j++ {
				results[j] = types.Result{Status: types.StatusSkipped, Err: ctx.Err()}
			}
			r.logger.Warn("batch cancelled", zap.Int("not_started", n-i))
			break
		}

		g.Go(func() error {
			res := r.runOne(ctx, i, task)
			mu.Lock()
			results[i] = res
			if r.onResult != nil {
				r.onResult(res)
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, i int, task Task) (res types.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task panicked", zap.Int("task", i), zap.Any("panic", p))
			res = types.Result{Status: types.StatusFailed, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return task(ctx, i)
}
