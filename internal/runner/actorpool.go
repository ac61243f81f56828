package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/torosent/inferfire/internal/model"
)

// actorPoolRunner dispatches queries to remote actor instances through a
// load-balancing free list. Each actor owns its own Model, built once from
// the Spec at actor startup. Actors are either pre-started addresses from
// configuration or local child processes spawned at Acquire.
//
// Unlike the other pool-backed variants, IssueQuery blocks until the whole
// batch has drained, then invokes the callback once per query. Collecting
// the batch before delivery keeps per-query completion bookkeeping out of
// the RPC layer, and callers that follow the issue/flush/drain sequence
// cannot observe the difference.
type actorPoolRunner struct {
	size    int
	spawn   SpawnFunc
	onError func(QueryID, error)

	mu       sync.Mutex
	pool     *clientPool
	acquired bool
	released bool
	inFlight bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newActorPool(opts Options) (*actorPoolRunner, error) {
	return &actorPoolRunner{
		size:    opts.MaxConcurrency,
		spawn:   actorSpawner(opts),
		onError: opts.OnError,
	}, nil
}

func (r *actorPoolRunner) Acquire(ctx context.Context) error {
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

// IssueQuery fans the batch out across the actor pool, collects every
// result, then delivers per-query callbacks in ascending id order. Failed
// queries go to the error observer and do not abort their siblings. The
// batch context rides every actor RPC, so deadlines and trace context reach
// the remote side.
func (r *actorPoolRunner) IssueQuery(ctx context.Context, queries QueryInput, callback QueryCallback) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrReleased)
	}
	if !r.acquired {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrNotAcquired)
	}
	if r.inFlight {
		r.mu.Unlock()
		return lifecycleErr("issue_query", ErrBatchPending)
	}
	r.inFlight = true
	poolCtx := r.ctx
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	ids := sortedIDs(queries)
	outputs := make(map[QueryID]model.Output, len(ids))
	failures := make(map[QueryID]error)
	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	for _, id := range ids {
		client, err := r.pool.get(ctx)
		if err != nil {
			resultMu.Lock()
			failures[id] = err
			resultMu.Unlock()
			continue
		}
		wg.Add(1)
		go func(id QueryID, in model.Input) {
			defer wg.Done()
			out, err := client.Predict(ctx, int64(id), in)
			r.pool.put(client)
			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				failures[id] = classifyWorkerErr(err)
				return
			}
			outputs[id] = out
		}(id, queries[id])
	}
	wg.Wait()

	if poolCtx.Err() != nil {
		// Released mid-batch; discard undelivered results.
		return nil
	}
	for _, id := range ids {
		if err, ok := failures[id]; ok {
			var terr *TransferError
			if errors.As(err, &terr) {
				r.onError(id, err)
			} else {
				r.onError(id, &PredictionError{ID: id, Err: err})
			}
			continue
		}
		callback(QueryResult{id: outputs[id]})
	}
	return nil
}

func (r *actorPoolRunner) FlushQueries() error { return nil }

func (r *actorPoolRunner) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	acquired := r.acquired
	cancel := r.cancel
	pool := r.pool
	r.mu.Unlock()

	if !acquired {
		return
	}
	cancel()
	pool.close()
}
