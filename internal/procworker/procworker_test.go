package procworker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/procworker"
)

func init() {
	model.Register("proc-flaky", func(map[string]string) (model.Model, error) {
		return flaky{}, nil
	})
}

type flaky struct{}

func (flaky) Predict(_ context.Context, in model.Input) (model.Output, error) {
	if string(in) == "boom" {
		return nil, fmt.Errorf("refusing %q", in)
	}
	return model.Output(in), nil
}

// startWorker wires a client to a serve loop over in-memory pipes.
func startWorker(t *testing.T, spec model.Spec) (*procworker.Client, error) {
	t.Helper()
	hostR, workerW := io.Pipe()
	workerR, hostW := io.Pipe()
	go func() {
		_ = procworker.Serve(context.Background(), workerR, workerW)
	}()
	shutdown := func() error {
		_ = hostW.Close()
		_ = hostR.Close()
		return nil
	}
	c, err := procworker.NewClient(context.Background(), spec, hostR, hostW, shutdown)
	if err != nil {
		_ = shutdown()
		return nil, err
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, nil
}

func TestHandshakeAndPredict(t *testing.T) {
	c, err := startWorker(t, model.Spec{Name: "echo"})
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	for id := int64(1); id <= 3; id++ {
		in := model.Input(fmt.Sprintf("q-%d", id))
		out, err := c.Predict(context.Background(), id, in)
		if err != nil {
			t.Fatalf("Predict %d: %v", id, err)
		}
		if string(out) != string(in) {
			t.Fatalf("query %d: got %q, want %q", id, out, in)
		}
	}
}

func TestBinaryPayloadRoundTrip(t *testing.T) {
	c, err := startWorker(t, model.Spec{Name: "echo"})
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	in := model.Input{0x00, 0x01, 0xfe, 0xff, '\n', '"'}
	out, err := c.Predict(context.Background(), 9, in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, out[i], in[i])
		}
	}
}

func TestRemoteModelFailure(t *testing.T) {
	c, err := startWorker(t, model.Spec{Name: "proc-flaky"})
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	_, err = c.Predict(context.Background(), 1, model.Input("boom"))
	var rerr *model.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("got %T (%v), want *model.RemoteError", err, err)
	}
	// The worker survives a model failure.
	out, err := c.Predict(context.Background(), 2, model.Input("fine"))
	if err != nil {
		t.Fatalf("Predict after failure: %v", err)
	}
	if string(out) != "fine" {
		t.Fatalf("got %q, want %q", out, "fine")
	}
}

func TestWorkerInitFailureReportedInBand(t *testing.T) {
	_, err := startWorker(t, model.Spec{Name: "definitely-not-registered"})
	if err == nil {
		t.Fatal("expected handshake failure for unknown model")
	}
}

func TestPredictUnblocksOnContextCancel(t *testing.T) {
	c, err := startWorker(t, model.Spec{Name: "sleep", Params: map[string]string{"latency": "5s"}})
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Predict(ctx, 1, model.Input("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
