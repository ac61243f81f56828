// Package procworker implements the stdio protocol between a pool host and
// its worker child processes. Frames are newline-delimited JSON: the host
// opens with a hello frame carrying the model Spec, the worker answers with
// a ready frame once its model is built, then request/response frames flow
// one at a time until the host closes the worker's stdin.
package procworker

import "github.com/torosent/inferfire/internal/model"

// helloFrame is the first frame on the wire, host to worker.
type helloFrame struct {
	Spec model.Spec `json:"spec"`
}

// readyFrame acknowledges model construction, worker to host.
type readyFrame struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// requestFrame carries one query across the process boundary. Input is
// base64 in the JSON encoding.
type requestFrame struct {
	ID    int64  `json:"id"`
	Input []byte `json:"input"`
}

// responseFrame carries one result back. Exactly one of Result and Error is
// meaningful; Error marks a model failure inside the worker, as opposed to a
// broken pipe or decode failure which surfaces as a client error.
type responseFrame struct {
	ID     int64  `json:"id"`
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
