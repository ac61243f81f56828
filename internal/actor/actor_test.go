package actor_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/torosent/inferfire/internal/actor"
	"github.com/torosent/inferfire/internal/model"
)

func init() {
	model.Register("actor-flaky", func(map[string]string) (model.Model, error) {
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

func startActor(t *testing.T, spec model.Spec) *actor.Client {
	t.Helper()
	srv, err := actor.NewServer(spec, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
	client, err := actor.Dial(context.Background(), "passthrough:///bufnet", grpc.WithContextDialer(dialer))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPredictRoundTrip(t *testing.T) {
	client := startActor(t, model.Spec{Name: "echo"})
	in := model.Input("hello actor")
	out, err := client.Predict(context.Background(), 42, in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("got %q, want %q", out, in)
	}
}

func TestPredictBinaryPayload(t *testing.T) {
	client := startActor(t, model.Spec{Name: "sha256"})
	in := model.Input{0x00, 0x10, 0xff}
	out, err := client.Predict(context.Background(), 1, in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	local, _ := model.Build(model.Spec{Name: "sha256"})
	want, _ := local.Predict(context.Background(), in)
	if string(out) != string(want) {
		t.Fatalf("digest across the wire %q, want %q", out, want)
	}
}

func TestModelFailureTravelsInBand(t *testing.T) {
	client := startActor(t, model.Spec{Name: "actor-flaky"})
	_, err := client.Predict(context.Background(), 7, model.Input("boom"))
	var rerr *model.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("got %T (%v), want *model.RemoteError", err, err)
	}
	// The actor keeps serving after a model failure.
	out, err := client.Predict(context.Background(), 8, model.Input("ok"))
	if err != nil {
		t.Fatalf("Predict after failure: %v", err)
	}
	if string(out) != "ok" {
		t.Fatalf("got %q, want %q", out, "ok")
	}
}

func TestNewServerRejectsUnknownModel(t *testing.T) {
	if _, err := actor.NewServer(model.Spec{Name: "missing"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown model")
	}
}
