package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/torosent/inferfire/internal/model"
)

// predictFunc executes one query on behalf of the identified worker.
type predictFunc func(ctx context.Context, workerID int, id QueryID, in model.Input) (model.Output, error)

type task struct {
	id    QueryID
	input model.Input
	ctx   context.Context // batch context; carries deadlines and trace state
}

// poolRunner is the shared bookkeeping for the asynchronous pool-backed
// variants: a fixed set of worker goroutines fed by a task channel, plus a
// pending table tracking in-flight query ids. Worker-local state (a model,
// a child process) is owned by the variant through the initWorker and
// closeWorker hooks, indexed by worker identity.
type poolRunner struct {
	size        int
	predict     predictFunc
	initWorker  func(ctx context.Context, workerID int) error
	closeWorker func(workerID int)
	onError     func(QueryID, error)

	mu       sync.Mutex
	pending  map[QueryID]struct{}
	callback QueryCallback
	acquired bool
	released bool

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan task
	wg     sync.WaitGroup
}

func newPoolRunner(opts Options) *poolRunner {
	return &poolRunner{
		size:        opts.MaxConcurrency,
		initWorker:  func(context.Context, int) error { return nil },
		closeWorker: func(int) {},
		onError:     opts.OnError,
		pending:     make(map[QueryID]struct{}),
	}
}

// Acquire spawns the worker pool. Each worker's init hook runs exactly once
// before it consumes tasks; any init failure tears down the workers already
// started and fails the acquisition.
func (r *poolRunner) Acquire(ctx context.Context) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return lifecycleErr("acquire", ErrReleased)
	}
	if r.acquired {
		r.mu.Unlock()
		return lifecycleErr("acquire", errors.New("runner already acquired"))
	}
	r.mu.Unlock()

	poolCtx, cancel := context.WithCancel(ctx)
	for i := 0; i < r.size; i++ {
		if err := r.initWorker(poolCtx, i); err != nil {
			cancel()
			for j := 0; j < i; j++ {
				r.closeWorker(j)
			}
			return fmt.Errorf("init worker %d: %w", i, err)
		}
	}

	r.mu.Lock()
	r.ctx = poolCtx
	r.cancel = cancel
	r.tasks = make(chan task)
	r.acquired = true
	r.mu.Unlock()

	r.wg.Add(r.size)
	for i := 0; i < r.size; i++ {
		go r.worker(poolCtx, i)
	}
	return nil
}

// IssueQuery submits a batch. Fails if the previous batch has not fully
// drained. Registration is synchronous so the pending-table precondition is
// race-free; the actual dispatch happens on a separate goroutine, so the
// call does not block behind pool capacity.
func (r *poolRunner) IssueQuery(ctx context.Context, queries QueryInput, callback QueryCallback) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrReleased)
	}
	if !r.acquired {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrNotAcquired)
	}
	if len(r.pending) > 0 {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrBatchPending)
	}
	r.callback = callback
	ids := sortedIDs(queries)
	for _, id := range ids {
		r.pending[id] = struct{}{}
	}
	poolCtx := r.ctx
	r.mu.Unlock()

	go func() {
		for _, id := range ids {
			select {
			case r.tasks <- task{id: id, input: queries[id], ctx: ctx}:
			case <-poolCtx.Done():
				return
			}
		}
	}()
	return nil
}

// FlushQueries is a no-op for pool-backed runners; completion is delivered
// per query as workers finish.
func (r *poolRunner) FlushQueries() error { return nil }

// Release cancels the pool, waits for workers to stop, and closes
// worker-local state. Undelivered results are discarded. Safe to call on
// every exit path, including mid-batch; never fails.
func (r *poolRunner) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	acquired := r.acquired
	cancel := r.cancel
	// Discard in-flight bookkeeping so late completions are dropped.
	r.pending = make(map[QueryID]struct{})
	r.callback = nil
	r.mu.Unlock()

	if !acquired {
		return
	}
	cancel()
	r.wg.Wait()
	for i := 0; i < r.size; i++ {
		r.closeWorker(i)
	}
}

func (r *poolRunner) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.tasks:
			out, err := r.predict(t.ctx, workerID, t.id, t.input)
			r.complete(ctx, t.id, out, err)
		}
	}
}

// complete is the per-query completion hook: drop the id from the pending
// table first (so the runner turns idle the moment its last query finishes),
// then deliver exactly once, result to the callback or failure to the error
// observer.
func (r *poolRunner) complete(ctx context.Context, id QueryID, out model.Output, err error) {
	r.mu.Lock()
	if _, ok := r.pending[id]; !ok {
		// Released mid-flight; result already discarded.
		r.mu.Unlock()
		return
	}
	delete(r.pending, id)
	callback := r.callback
	r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		var terr *TransferError
		if errors.As(err, &terr) {
			r.onError(id, err)
		} else {
			r.onError(id, &PredictionError{ID: id, Err: err})
		}
		return
	}
	callback(QueryResult{id: out})
}

// classifyWorkerErr separates model failures reported from the far side of a
// worker boundary from transport/serialization failures.
func classifyWorkerErr(err error) error {
	var rerr *model.RemoteError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &TransferError{Stage: "transport", Err: err}
}
