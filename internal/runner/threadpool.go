package runner

import (
	"context"
	"fmt"

	"github.com/torosent/inferfire/internal/model"
)

// newThreadPool builds the shared-model pool variant: one Model constructed
// up front, called concurrently by every worker. The model's Predict must be
// safe for concurrent use.
func newThreadPool(opts Options) (*poolRunner, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("thread-pool runner requires a model factory")
	}
	shared, err := opts.Factory.Create()
	if err != nil {
		return nil, fmt.Errorf("create shared model: %w", err)
	}
	r := newPoolRunner(opts)
	r.predict = func(ctx context.Context, _ int, _ QueryID, in model.Input) (model.Output, error) {
		return shared.Predict(ctx, in)
	}
	return r, nil
}

// newThreadLocalPool builds the worker-local pool variant: each worker's
// init hook constructs its own Model exactly once, stored in a slice indexed
// by worker identity and looked up at call time. Total Create calls over the
// runner's lifetime equal MaxConcurrency, supporting models that are unsafe
// to share.
func newThreadLocalPool(opts Options) (*poolRunner, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("thread-pool-local runner requires a model factory")
	}
	r := newPoolRunner(opts)
	models := make([]model.Model, opts.MaxConcurrency)
	r.initWorker = func(_ context.Context, workerID int) error {
		m, err := opts.Factory.Create()
		if err != nil {
			return fmt.Errorf("create worker model: %w", err)
		}
		models[workerID] = m
		return nil
	}
	r.predict = func(ctx context.Context, workerID int, _ QueryID, in model.Input) (model.Output, error) {
		return models[workerID].Predict(ctx, in)
	}
	return r, nil
}
