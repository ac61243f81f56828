package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/runner"
)

func newBatchRunner(t *testing.T, spec model.Spec) runner.Runner {
	t.Helper()
	r, err := runner.New(runner.Options{
		Kind:           runner.KindBatchProcessPool,
		MaxConcurrency: 2,
		Spec:           spec,
		SpawnWorker:    pipeSpawner(spec),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

// TestBatchPoolDeliversWholeBatchOnce: flush invokes the callback exactly
// once with the complete result mapping, then returns the runner to idle.
func TestBatchPoolDeliversWholeBatchOnce(t *testing.T) {
	r := newBatchRunner(t, model.Spec{Name: "echo"})

	batch := echoBatch(1, 6)
	var calls int
	var got runner.QueryResult
	if err := r.IssueQuery(context.Background(), batch, func(res runner.QueryResult) {
		calls++
		got = res
	}); err != nil {
		t.Fatalf("IssueQuery: %v", err)
	}
	if err := r.FlushQueries(); err != nil {
		t.Fatalf("FlushQueries: %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if len(got) != len(batch) {
		t.Fatalf("delivered %d entries, want %d", len(got), len(batch))
	}
	for id, in := range batch {
		if string(got[id]) != string(in) {
			t.Fatalf("query %d: got %q, want %q", id, got[id], in)
		}
	}

	// Idle again: a second batch goes through cleanly.
	if err := r.IssueQuery(context.Background(), echoBatch(100, 3), func(runner.QueryResult) { calls++ }); err != nil {
		t.Fatalf("second IssueQuery: %v", err)
	}
	if err := r.FlushQueries(); err != nil {
		t.Fatalf("second FlushQueries: %v", err)
	}
	if calls != 2 {
		t.Fatalf("callback invoked %d times after two batches, want 2", calls)
	}
}

// TestBatchPoolFlushWithoutBatch: flushing with nothing pending is a
// lifecycle violation.
func TestBatchPoolFlushWithoutBatch(t *testing.T) {
	r := newBatchRunner(t, model.Spec{Name: "echo"})
	err := r.FlushQueries()
	if !errors.Is(err, runner.ErrNoPendingBatch) {
		t.Fatalf("flush while idle: got %v, want ErrNoPendingBatch", err)
	}
}

// TestBatchPoolIssueWhilePending: only one grouped batch may be outstanding.
func TestBatchPoolIssueWhilePending(t *testing.T) {
	r := newBatchRunner(t, model.Spec{Name: "sleep", Params: map[string]string{"latency": "100ms"}})
	if err := r.IssueQuery(context.Background(), echoBatch(1, 4), func(runner.QueryResult) {}); err != nil {
		t.Fatalf("IssueQuery: %v", err)
	}
	if err := r.IssueQuery(context.Background(), echoBatch(50, 1), func(runner.QueryResult) {}); !errors.Is(err, runner.ErrBatchPending) {
		t.Fatalf("second issue: got %v, want ErrBatchPending", err)
	}
	if err := r.FlushQueries(); err != nil {
		t.Fatalf("FlushQueries: %v", err)
	}
}

// TestBatchPoolAbortsOnFailure: a prediction error anywhere in the batch
// aborts delivery of the whole batch at flush.
func TestBatchPoolAbortsOnFailure(t *testing.T) {
	r := newBatchRunner(t, model.Spec{Name: "test-flaky"})
	batch := runner.QueryInput{
		1: model.Input("ok-1"),
		2: model.Input("boom"),
		3: model.Input("ok-3"),
	}
	var calls int
	if err := r.IssueQuery(context.Background(), batch, func(runner.QueryResult) { calls++ }); err != nil {
		t.Fatalf("IssueQuery: %v", err)
	}
	err := r.FlushQueries()
	if err == nil {
		t.Fatal("expected flush to surface the batch failure")
	}
	var perr *runner.PredictionError
	if !errors.As(err, &perr) {
		t.Fatalf("flush error %T (%v), want *PredictionError", err, err)
	}
	if perr.ID != 2 {
		t.Fatalf("PredictionError.ID = %d, want 2", perr.ID)
	}
	if calls != 0 {
		t.Fatalf("callback invoked %d times for an aborted batch", calls)
	}

	// The failed flush resets state; the runner is usable again.
	if err := r.FlushQueries(); !errors.Is(err, runner.ErrNoPendingBatch) {
		t.Fatalf("flush after abort: got %v, want ErrNoPendingBatch", err)
	}
}
