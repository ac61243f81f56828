package runner_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/runner"
)

func init() {
	// Echoes, except for the input "boom" which always fails. Registered so
	// cross-boundary variants can reconstruct it from a Spec.
	model.Register("test-flaky", func(map[string]string) (model.Model, error) {
		return flakyModel{}, nil
	})
}

type flakyModel struct{}

func (flakyModel) Predict(_ context.Context, in model.Input) (model.Output, error) {
	if string(in) == "boom" {
		return nil, fmt.Errorf("no prediction for %q", in)
	}
	out := make(model.Output, len(in))
	copy(out, in)
	return out, nil
}

// countingFactory counts Create calls and hands out independent echo models.
type countingFactory struct {
	creates int32
}

func (f *countingFactory) Create() (model.Model, error) {
	atomic.AddInt32(&f.creates, 1)
	return model.Build(model.Spec{Name: "echo"})
}

func (f *countingFactory) count() int32 { return atomic.LoadInt32(&f.creates) }

func echoFactory() model.Factory {
	return model.FactoryFunc(func() (model.Model, error) {
		return model.Build(model.Spec{Name: "echo"})
	})
}

func flakyFactory() model.Factory {
	return model.FactoryFunc(func() (model.Model, error) {
		return flakyModel{}, nil
	})
}

// resultSink accumulates callback deliveries and observed errors, and lets
// tests wait for a batch to fully drain. Duplicate deliveries for an id are
// recorded as test failures.
type resultSink struct {
	t    *testing.T
	mu   sync.Mutex
	got  map[runner.QueryID]string
	errs map[runner.QueryID]error
	wg   sync.WaitGroup
}

func newResultSink(t *testing.T, expect int) *resultSink {
	s := &resultSink{
		t:    t,
		got:  make(map[runner.QueryID]string),
		errs: make(map[runner.QueryID]error),
	}
	s.wg.Add(expect)
	return s
}

func (s *resultSink) callback(res runner.QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range res {
		if _, dup := s.got[id]; dup {
			s.t.Errorf("duplicate delivery for query %d", id)
			continue
		}
		s.got[id] = string(out)
		s.wg.Done()
	}
}

func (s *resultSink) onError(id runner.QueryID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.errs[id]; dup {
		s.t.Errorf("duplicate error for query %d", id)
		return
	}
	s.errs[id] = err
	s.wg.Done()
}

func (s *resultSink) wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.t.Fatal("timed out waiting for batch to drain")
	}
}

func (s *resultSink) results() map[runner.QueryID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[runner.QueryID]string, len(s.got))
	for id, v := range s.got {
		out[id] = v
	}
	return out
}

func (s *resultSink) errors() map[runner.QueryID]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[runner.QueryID]error, len(s.errs))
	for id, v := range s.errs {
		out[id] = v
	}
	return out
}

// ctxRecordingClient echoes inputs and records the context of every Predict
// call, so tests can assert what crosses the worker boundary.
type ctxRecordingClient struct {
	mu   sync.Mutex
	ctxs []context.Context
}

func (c *ctxRecordingClient) Predict(ctx context.Context, _ int64, in model.Input) (model.Output, error) {
	c.mu.Lock()
	c.ctxs = append(c.ctxs, ctx)
	c.mu.Unlock()
	out := make(model.Output, len(in))
	copy(out, in)
	return out, nil
}

func (c *ctxRecordingClient) Close() error { return nil }

func (c *ctxRecordingClient) contexts() []context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]context.Context(nil), c.ctxs...)
}

// echoBatch builds a batch of n distinct queries with ids starting at base.
func echoBatch(base, n int) runner.QueryInput {
	batch := make(runner.QueryInput, n)
	for i := 0; i < n; i++ {
		id := runner.QueryID(base + i)
		batch[id] = model.Input(fmt.Sprintf("payload-%d", id))
	}
	return batch
}
