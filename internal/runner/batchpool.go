package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/torosent/inferfire/internal/model"
)

// batchPoolRunner dispatches an entire batch as one grouped submission over
// the process-worker free list. IssueQuery records the batch and returns;
// FlushQueries blocks for the grouped result and delivers the whole batch to
// the callback in a single invocation. Any failure anywhere in the batch
// aborts delivery at flush.
type batchPoolRunner struct {
	size  int
	spawn SpawnFunc

	mu          sync.Mutex
	pool        *clientPool
	callback    QueryCallback
	done        chan struct{} // non-nil while a batch is pending; closed by gather
	result      QueryResult
	batchErr    error
	batchCancel context.CancelFunc // cancels the pending batch's context
	acquired    bool
	released    bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newBatchPool(opts Options) (*batchPoolRunner, error) {
	return &batchPoolRunner{
		size:  opts.MaxConcurrency,
		spawn: processSpawner(opts),
	}, nil
}

func (r *batchPoolRunner) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return lifecycleErr("acquire", ErrReleased)
	}
	if r.acquired {
		return lifecycleErr("acquire", errors.New("runner already acquired"))
	}
	poolCtx, cancel := context.WithCancel(ctx)
	clients := make([]WorkerClient, r.size)
	for i := 0; i < r.size; i++ {
		c, err := r.spawn(poolCtx, i)
		if err != nil {
			cancel()
			for _, started := range clients[:i] {
				_ = started.Close()
			}
			return err
		}
		clients[i] = c
	}
	r.pool = newClientPool(clients)
	r.ctx = poolCtx
	r.cancel = cancel
	r.acquired = true
	return nil
}

// IssueQuery records the grouped task and callback without blocking. Only
// one batch may be outstanding. The batch context flows into every worker
// Predict; Release cancels it through batchCancel.
func (r *batchPoolRunner) IssueQuery(ctx context.Context, queries QueryInput, callback QueryCallback) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrReleased)
	}
	if !r.acquired {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrNotAcquired)
	}
	if r.done != nil {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrBatchPending)
	}
	done := make(chan struct{})
	batchCtx, batchCancel := context.WithCancel(ctx)
	r.done = done
	r.callback = callback
	r.result = nil
	r.batchErr = nil
	r.batchCancel = batchCancel
	r.mu.Unlock()

	go r.gather(batchCtx, queries, done)
	return nil
}

// gather fans the batch out over the free list and assembles the full result
// map. The first failure is kept; remaining queries still run so worker
// state stays consistent, but their results are discarded with the batch.
func (r *batchPoolRunner) gather(ctx context.Context, queries QueryInput, done chan struct{}) {
	defer close(done)

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	result := make(QueryResult, len(queries))
	var firstErr error

	for _, id := range sortedIDs(queries) {
		client, err := r.pool.get(ctx)
		if err != nil {
			resultMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			resultMu.Unlock()
			break
		}
		wg.Add(1)
		go func(id QueryID, in model.Input) {
			defer wg.Done()
			out, err := client.Predict(ctx, int64(id), in)
			r.pool.put(client)
			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				if firstErr == nil {
					var rerr *model.RemoteError
					if errors.As(err, &rerr) {
						firstErr = &PredictionError{ID: id, Err: rerr}
					} else {
						firstErr = &TransferError{Stage: "transport", Err: err}
					}
				}
				return
			}
			result[id] = out
		}(id, queries[id])
	}
	wg.Wait()

	r.mu.Lock()
	r.result = result
	r.batchErr = firstErr
	r.mu.Unlock()
}

// FlushQueries blocks until the grouped task completes, invokes the callback
// exactly once with the whole batch, and resets to idle. A failed batch
// returns its error without invoking the callback.
func (r *batchPoolRunner) FlushQueries() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return lifecycleErr("flush_queries", ErrReleased)
	}
	if !r.acquired {
		r.mu.Unlock()
		return lifecycleErr("flush_queries", ErrNotAcquired)
	}
	done := r.done
	ctx := r.ctx
	r.mu.Unlock()
	if done == nil {
		return lifecycleErr("flush_queries", ErrNoPendingBatch)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	if r.released {
		// Released while waiting; Release already discarded the batch.
		r.mu.Unlock()
		return lifecycleErr("flush_queries", ErrReleased)
	}
	callback := r.callback
	result := r.result
	err := r.batchErr
	batchCancel := r.batchCancel
	r.done = nil
	r.callback = nil
	r.result = nil
	r.batchErr = nil
	r.batchCancel = nil
	r.mu.Unlock()
	batchCancel()

	if err != nil {
		return err
	}
	callback(result)
	return nil
}

func (r *batchPoolRunner) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	acquired := r.acquired
	cancel := r.cancel
	pool := r.pool
	done := r.done
	batchCancel := r.batchCancel
	r.done = nil
	r.callback = nil
	r.result = nil
	r.batchCancel = nil
	r.mu.Unlock()

	if !acquired {
		return
	}
	cancel()
	if batchCancel != nil {
		batchCancel()
	}
	if done != nil {
		<-done
	}
	pool.close()
}
