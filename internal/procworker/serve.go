package procworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/torosent/inferfire/internal/model"
)

// Serve runs the worker side of the protocol: build the model described by
// the hello frame (once, for the process lifetime), acknowledge, then answer
// queries until the input stream closes. Model failures are reported in-band
// per query and do not stop the loop.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)

	var hello helloFrame
	if err := dec.Decode(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	m, err := model.Build(hello.Spec)
	if err != nil {
		_ = enc.Encode(readyFrame{Error: err.Error()})
		return fmt.Errorf("build model: %w", err)
	}
	if err := enc.Encode(readyFrame{OK: true}); err != nil {
		return fmt.Errorf("write ready: %w", err)
	}

	for {
		var req requestFrame
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		resp := responseFrame{ID: req.ID}
		out, err := m.Predict(ctx, model.Input(req.Input))
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = out
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}
