// Package runner provides the pluggable execution strategies that turn
// batches of inference queries into predictions.
//
// Six strategies implement the same [Runner] contract:
//   - [KindInline]: synchronous baseline, no concurrency, deterministic
//     ascending-id delivery
//   - [KindThreadPool]: goroutine pool sharing one Model instance
//   - [KindThreadLocalPool]: goroutine pool with one Model per worker
//   - [KindProcessPool]: one persistent child process per worker, queries
//     cross the boundary as JSON frames
//   - [KindBatchProcessPool]: bulk dispatch over the process workers with an
//     explicit FlushQueries
//   - [KindDistributedActorPool]: load-balanced gRPC actors, each owning its
//     own Model
//
// # Lifecycle
//
// Acquire spawns workers and constructs models (exactly one Model per worker
// unit, or one shared instance for inline/thread-pool). IssueQuery submits a
// batch; pool-backed runners reject a new batch while the previous one is
// draining. Results arrive through the caller's callback, exactly once per
// query id, in completion order (only the inline and batch variants order
// delivery). Release is guaranteed teardown: it kills workers, discards
// in-flight results, and never fails.
//
// # Failure semantics
//
// A failed prediction is terminal for its query id and is reported to the
// configured error observer as a [PredictionError]; sibling queries proceed.
// The batch variant instead aborts delivery of the whole batch at flush.
// Payloads that cannot cross a process or actor boundary surface as
// [TransferError]. Contract violations (issuing while pending, flushing with
// nothing pending, using a released runner) are [LifecycleError] values
// reported synchronously.
package runner
