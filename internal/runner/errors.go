package runner

import (
	"errors"
	"fmt"
)

// Lifecycle contract violations. Reported synchronously, never retried.
var (
	ErrNotAcquired    = errors.New("runner not acquired")
	ErrReleased       = errors.New("runner already released")
	ErrBatchPending   = errors.New("previous batch still pending")
	ErrNoPendingBatch = errors.New("no batch pending")
)

// LifecycleError wraps a contract violation with the operation that hit it.
type LifecycleError struct {
	Op  string
	Err error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

func lifecycleErr(op string, err error) error {
	return &LifecycleError{Op: op, Err: err}
}

// PredictionError reports a model failure for one query. Terminal for that
// query id; sibling queries in the same batch are unaffected in
// callback-draining variants.
type PredictionError struct {
	ID  QueryID
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("query %d: prediction failed: %v", e.ID, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// TransferError reports a payload that could not cross a process or actor
// boundary.
type TransferError struct {
	Stage string // "encode", "decode", "transport"
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer (%s): %v", e.Stage, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
