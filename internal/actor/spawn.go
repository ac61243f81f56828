package actor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/torosent/inferfire/internal/model"
)

// ActorArg is the hidden argv mode that turns the harness binary into an
// actor server.
const ActorArg = "actor"

// Child-process environment. The spec travels as JSON so the actor can
// rebuild its model independently; the listen address defaults to an
// ephemeral local port announced back on stdout.
const (
	SpecEnv   = "INFERFIRE_ACTOR_SPEC"
	ListenEnv = "INFERFIRE_ACTOR_LISTEN"
)

const readyPrefix = "ACTOR_READY "

// Run is the actor child-process entry point: build the model from the
// environment, listen, announce the bound address on out, and serve until
// ctx is cancelled.
func Run(ctx context.Context, out io.Writer, log zerolog.Logger) error {
	rawSpec := os.Getenv(SpecEnv)
	if rawSpec == "" {
		return fmt.Errorf("%s not set", SpecEnv)
	}
	var spec model.Spec
	if err := json.Unmarshal([]byte(rawSpec), &spec); err != nil {
		return fmt.Errorf("parse %s: %w", SpecEnv, err)
	}
	addr := os.Getenv(ListenEnv)
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	srv, err := NewServer(spec, log)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	fmt.Fprintf(out, "%s%s\n", readyPrefix, lis.Addr().String())
	log.Info().Str("addr", lis.Addr().String()).Str("model", spec.Name).Msg("actor serving")

	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	return srv.Serve(lis)
}

// NewSpawner returns a spawn function launching one local actor process per
// call: start the child, wait for its address announcement, dial it, and
// hand back a client whose Close also kills the child.
func NewSpawner(spec model.Spec, command []string) func(ctx context.Context, workerID int) (*Client, error) {
	return func(ctx context.Context, workerID int) (*Client, error) {
		rawSpec, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("encode actor spec: %w", err)
		}
		argv := command
		if len(argv) == 0 {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("resolve actor binary: %w", err)
			}
			argv = []string{exe, ActorArg}
		}
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Env = append(os.Environ(),
			SpecEnv+"="+string(rawSpec),
			ListenEnv+"=127.0.0.1:0",
		)
		cmd.Stderr = os.Stderr
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("actor %d stdout: %w", workerID, err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start actor %d: %w", workerID, err)
		}
		kill := func() error {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil
		}

		addr, err := awaitAnnounce(ctx, stdout)
		if err != nil {
			_ = kill()
			return nil, fmt.Errorf("actor %d: %w", workerID, err)
		}
		client, err := Dial(ctx, addr)
		if err != nil {
			_ = kill()
			return nil, err
		}
		client.shutdown = kill
		return client, nil
	}
}

// awaitAnnounce scans the child's stdout for its address announcement.
func awaitAnnounce(ctx context.Context, r io.Reader) (string, error) {
	type scanResult struct {
		addr string
		err  error
	}
	ch := make(chan scanResult, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, readyPrefix) {
				ch <- scanResult{addr: strings.TrimPrefix(line, readyPrefix)}
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = fmt.Errorf("actor exited before announcing its address")
		}
		ch <- scanResult{err: err}
	}()
	select {
	case res := <-ch:
		return res.addr, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
