// Package harness drives a configured runner: it generates batches of
// queries, paces their issuance, waits for each batch to drain, and records
// per-query latency. It also enforces the delivery contract from the
// outside: every issued query id must come back exactly once, either as a
// result or as an observed failure.
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/torosent/inferfire/internal/metrics"
	"github.com/torosent/inferfire/internal/runner"
	"github.com/torosent/inferfire/internal/tracing"
)

// Options configure a run.
type Options struct {
	Runner        runner.Options // runner construction; OnError is owned by the harness
	Batches       int            // number of batches to issue
	BatchSize     int            // queries per batch
	Body          []byte         // payload for every query; nil means generated payloads
	RatePerSecond int            // batch issuance pacing (0 means unpaced)

	Collector *metrics.Collector
	Tracer    *tracing.Provider // optional
	Logger    zerolog.Logger

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Batches <= 0 {
		o.Batches = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Result captures one run's outcome.
type Result struct {
	RunID string
	Stats metrics.Stats
}

// Harness issues batches against one runner.
type Harness struct {
	opt   Options
	runID string

	mu      sync.Mutex
	issued  map[runner.QueryID]time.Time
	pending *sync.WaitGroup
}

func New(opt Options) *Harness {
	opt.normalize()
	return &Harness{
		opt:    opt,
		runID:  ulid.Make().String(),
		issued: make(map[runner.QueryID]time.Time),
	}
}

// RunID identifies this run in reports and logs.
func (h *Harness) RunID() string { return h.runID }

// Run acquires the runner, issues every batch, and releases the runner on
// all exit paths. Query failures are recorded and do not stop the run;
// lifecycle and acquisition failures do.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	ropts := h.opt.Runner
	ropts.Logger = h.opt.Logger
	ropts.OnError = h.observeError
	r, err := runner.New(ropts)
	if err != nil {
		return Result{}, err
	}
	if err := r.Acquire(ctx); err != nil {
		return Result{}, fmt.Errorf("acquire runner: %w", err)
	}
	defer r.Release()

	limiter := h.opt.LimiterFactory(h.opt.RatePerSecond)
	start := time.Now()
	h.opt.Logger.Info().
		Str("run_id", h.runID).
		Str("strategy", string(ropts.Kind)).
		Int("batches", h.opt.Batches).
		Int("batch_size", h.opt.BatchSize).
		Msg("run starting")

	for b := 0; b < h.opt.Batches; b++ {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		if err := h.runBatch(ctx, r, b); err != nil {
			return Result{}, err
		}
	}

	stats := h.opt.Collector.Stats(time.Since(start))
	h.opt.Logger.Info().
		Str("run_id", h.runID).
		Int64("total", stats.Total).
		Int64("failures", stats.Failures).
		Msg("run complete")
	return Result{RunID: h.runID, Stats: stats}, nil
}

func (h *Harness) runBatch(ctx context.Context, r runner.Runner, b int) error {
	batch := make(runner.QueryInput, h.opt.BatchSize)
	base := int64(b*h.opt.BatchSize + 1)
	for i := 0; i < h.opt.BatchSize; i++ {
		id := runner.QueryID(base + int64(i))
		batch[id] = h.payload(id)
	}

	wg := &sync.WaitGroup{}
	wg.Add(len(batch))
	now := time.Now()
	h.mu.Lock()
	h.pending = wg
	for id := range batch {
		h.issued[id] = now
	}
	h.mu.Unlock()

	// The span always records locally; its context rides the batch into
	// worker Predict calls only when propagation is on.
	batchCtx, span := tracing.StartBatchSpan(ctx, h.opt.Tracer.Tracer(), string(h.opt.Runner.Kind), b, len(batch))
	if !h.opt.Tracer.ShouldPropagate() {
		batchCtx = ctx
	}

	if err := r.IssueQuery(batchCtx, batch, h.onResult); err != nil {
		h.discardBatch()
		tracing.EndSpan(span, err)
		return fmt.Errorf("batch %d: %w", b, err)
	}
	var batchErr error
	if err := r.FlushQueries(); err != nil {
		// Batch-style variants abort the whole batch on any failure; count
		// every undelivered query against the run and keep going.
		batchErr = err
		h.failRemaining(err)
		h.opt.Logger.Warn().Int("batch", b).Err(err).Msg("batch aborted")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		tracing.EndSpan(span, batchErr)
		return nil
	case <-ctx.Done():
		tracing.EndSpan(span, ctx.Err())
		return ctx.Err()
	}
}

// onResult is the per-query delivery callback. An id it does not know is a
// contract violation (duplicate or stray delivery) and is logged, never
// counted.
func (h *Harness) onResult(res runner.QueryResult) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range res {
		issuedAt, ok := h.issued[id]
		if !ok {
			h.opt.Logger.Error().Int64("query_id", int64(id)).Msg("duplicate or unknown delivery")
			continue
		}
		delete(h.issued, id)
		h.opt.Collector.RecordQuery(now.Sub(issuedAt), nil)
		h.pending.Done()
	}
}

// observeError receives terminal per-query failures from the runner.
func (h *Harness) observeError(id runner.QueryID, err error) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	issuedAt, ok := h.issued[id]
	if !ok {
		h.opt.Logger.Error().Int64("query_id", int64(id)).Err(err).Msg("duplicate or unknown failure")
		return
	}
	delete(h.issued, id)
	h.opt.Collector.RecordQuery(now.Sub(issuedAt), err)
	h.pending.Done()
}

// failRemaining marks every still-outstanding query of the current batch as
// failed with err.
func (h *Harness) failRemaining(err error) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, issuedAt := range h.issued {
		h.opt.Collector.RecordQuery(now.Sub(issuedAt), err)
		delete(h.issued, id)
		h.pending.Done()
	}
}

// discardBatch drops the current batch's bookkeeping after a failed issue.
func (h *Harness) discardBatch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.issued {
		delete(h.issued, id)
		h.pending.Done()
	}
}

func (h *Harness) payload(id runner.QueryID) []byte {
	if h.opt.Body != nil {
		return h.opt.Body
	}
	return []byte(fmt.Sprintf("%s-%08d", h.runID, id))
}
