package runner

import (
	"context"

	"github.com/torosent/inferfire/internal/model"
)

// newProcessPool builds the process-isolated pool variant. Each worker
// goroutine owns one child process spawned by its init hook; the child
// reconstructs its Model independently from the Spec, once, at startup.
// Inputs and outputs cross the process boundary as JSON frames, so failures
// split into model errors (reported by the worker) and transfer errors.
func newProcessPool(opts Options) (*poolRunner, error) {
	r := newPoolRunner(opts)
	spawn := processSpawner(opts)
	clients := make([]WorkerClient, opts.MaxConcurrency)
	r.initWorker = func(ctx context.Context, workerID int) error {
		c, err := spawn(ctx, workerID)
		if err != nil {
			return err
		}
		clients[workerID] = c
		return nil
	}
	r.closeWorker = func(workerID int) {
		if clients[workerID] != nil {
			_ = clients[workerID].Close()
		}
	}
	r.predict = func(ctx context.Context, workerID int, id QueryID, in model.Input) (model.Output, error) {
		out, err := clients[workerID].Predict(ctx, int64(id), in)
		if err != nil {
			return nil, classifyWorkerErr(err)
		}
		return out, nil
	}
	return r, nil
}
