package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/torosent/inferfire/internal/model"
)

// inlineRunner executes queries synchronously on the calling goroutine, in
// ascending QueryID order. No concurrency, deterministic delivery.
type inlineRunner struct {
	factory  model.Factory
	onError  func(QueryID, error)
	model    model.Model
	released bool
}

func newInline(opts Options) (*inlineRunner, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("inline runner requires a model factory")
	}
	return &inlineRunner{factory: opts.Factory, onError: opts.OnError}, nil
}

func (r *inlineRunner) Acquire(ctx context.Context) error {
	if r.released {
		return lifecycleErr("acquire", ErrReleased)
	}
	m, err := r.factory.Create()
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	r.model = m
	return nil
}

func (r *inlineRunner) IssueQuery(ctx context.Context, queries QueryInput, callback QueryCallback) error {
	if r.released {
		return lifecycleErr("issue_query", ErrReleased)
	}
	if r.model == nil {
		return lifecycleErr("issue_query", ErrNotAcquired)
	}
	for _, id := range sortedIDs(queries) {
		out, err := r.model.Predict(ctx, queries[id])
		if err != nil {
			r.onError(id, &PredictionError{ID: id, Err: err})
			continue
		}
		callback(QueryResult{id: out})
	}
	return nil
}

func (r *inlineRunner) FlushQueries() error { return nil }

func (r *inlineRunner) Release() {
	r.released = true
	r.model = nil
}

// sortedIDs defines batch iteration order: ascending QueryID. Go randomizes
// map iteration, so ordering guarantees need an explicit sort.
func sortedIDs(queries QueryInput) []QueryID {
	ids := make([]QueryID, 0, len(queries))
	for id := range queries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
