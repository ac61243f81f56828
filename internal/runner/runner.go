package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/torosent/inferfire/internal/actor"
	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/procworker"
)

// QueryID identifies one query within a batch. Caller-assigned, unique per
// batch.
type QueryID int64

// QueryInput is one batch: a mapping of query id to model input.
type QueryInput map[QueryID]model.Input

// QueryResult carries completed predictions back to the caller.
type QueryResult map[QueryID]model.Output

// QueryCallback receives completed results. Pool-backed runners invoke it
// once per query with a single-entry map; the batch runner invokes it once
// with the whole batch.
type QueryCallback func(QueryResult)

// Runner converts batches of queries into predictions via some execution
// strategy. The lifecycle contract is identical across variants:
//
//	r, _ := runner.New(opts)
//	if err := r.Acquire(ctx); err != nil { ... }
//	defer r.Release()
//	r.IssueQuery(ctx, batch, callback)
//	r.FlushQueries()
//
// The context passed to IssueQuery scopes that batch: it reaches every
// worker Predict call, so deadlines and trace context cross process and
// actor boundaries with the queries.
//
// Every query id issued is delivered exactly once: to the callback on
// success, to the error observer on prediction failure. Release forcibly
// tears down workers and discards undelivered results; it never fails.
type Runner interface {
	Acquire(ctx context.Context) error
	IssueQuery(ctx context.Context, queries QueryInput, callback QueryCallback) error
	FlushQueries() error
	Release()
}

// Kind selects a runner strategy.
type Kind string

const (
	KindInline               Kind = "inline"
	KindThreadPool           Kind = "thread-pool"
	KindThreadLocalPool      Kind = "thread-pool-local"
	KindProcessPool          Kind = "process-pool"
	KindBatchProcessPool     Kind = "batch-process-pool"
	KindDistributedActorPool Kind = "distributed-actor-pool"
)

// Kinds lists every supported runner strategy.
func Kinds() []Kind {
	return []Kind{
		KindInline,
		KindThreadPool,
		KindThreadLocalPool,
		KindProcessPool,
		KindBatchProcessPool,
		KindDistributedActorPool,
	}
}

// ParseKind validates a strategy name from configuration.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown runner strategy %q (supported: %v)", s, Kinds())
}

// WorkerClient is the host-side handle to one out-of-process worker unit (a
// child process or a remote actor). Predict sends one query across the
// boundary and blocks for its result.
type WorkerClient interface {
	Predict(ctx context.Context, id int64, in model.Input) (model.Output, error)
	Close() error
}

// SpawnFunc creates the worker unit with the given identity. Invoked exactly
// once per worker at Acquire.
type SpawnFunc func(ctx context.Context, workerID int) (WorkerClient, error)

// Options configure runner construction.
type Options struct {
	Kind           Kind
	MaxConcurrency int // upper bound on simultaneously active worker units

	// Factory builds models for in-process variants (inline, thread-pool,
	// thread-pool-local). Required for those kinds.
	Factory model.Factory

	// Spec is the serializable model description used by cross-boundary
	// variants (process-pool, batch-process-pool, distributed-actor-pool),
	// reconstructed independently inside each worker unit.
	Spec model.Spec

	// WorkerCommand is the argv used to spawn worker/actor child processes.
	// Defaults to re-executing this binary in its hidden child mode.
	WorkerCommand []string

	// SpawnWorker overrides child process creation for the process-backed
	// variants. Tests inject pipe-backed workers here.
	SpawnWorker SpawnFunc

	// ActorAddrs lists pre-started actor addresses for the distributed
	// variant. When empty, MaxConcurrency local actors are spawned.
	ActorAddrs []string

	// SpawnActor overrides actor creation when ActorAddrs is empty.
	SpawnActor SpawnFunc

	// OnError observes per-query prediction failures in callback-draining
	// variants. Failure is terminal for that query id; sibling queries are
	// unaffected. Defaults to a log warning.
	OnError func(QueryID, error)

	Logger zerolog.Logger
}

func (o *Options) normalize() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 1
	}
	if o.OnError == nil {
		log := o.Logger
		o.OnError = func(id QueryID, err error) {
			log.Warn().Int64("query_id", int64(id)).Err(err).Msg("query failed")
		}
	}
}

// New constructs the runner variant selected by opts.Kind. The returned
// runner is idle; call Acquire before issuing queries.
func New(opts Options) (Runner, error) {
	opts.normalize()
	switch opts.Kind {
	case KindInline:
		return newInline(opts)
	case KindThreadPool:
		return newThreadPool(opts)
	case KindThreadLocalPool:
		return newThreadLocalPool(opts)
	case KindProcessPool:
		return newProcessPool(opts)
	case KindBatchProcessPool:
		return newBatchPool(opts)
	case KindDistributedActorPool:
		return newActorPool(opts)
	default:
		return nil, fmt.Errorf("unknown runner strategy %q (supported: %v)", opts.Kind, Kinds())
	}
}

// processSpawner returns the configured or default spawner for process
// worker children.
func processSpawner(opts Options) SpawnFunc {
	if opts.SpawnWorker != nil {
		return opts.SpawnWorker
	}
	spawn := procworker.NewSpawner(opts.Spec, opts.WorkerCommand)
	return func(ctx context.Context, workerID int) (WorkerClient, error) {
		return spawn(ctx, workerID)
	}
}

// actorSpawner returns the configured or default spawner for actor worker
// units: dial pre-started addresses when configured, otherwise launch local
// actor processes.
func actorSpawner(opts Options) SpawnFunc {
	if len(opts.ActorAddrs) > 0 {
		addrs := opts.ActorAddrs
		return func(ctx context.Context, workerID int) (WorkerClient, error) {
			return actor.Dial(ctx, addrs[workerID%len(addrs)])
		}
	}
	if opts.SpawnActor != nil {
		return opts.SpawnActor
	}
	spawn := actor.NewSpawner(opts.Spec, opts.WorkerCommand)
	return func(ctx context.Context, workerID int) (WorkerClient, error) {
		return spawn(ctx, workerID)
	}
}
