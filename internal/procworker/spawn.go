package procworker

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/torosent/inferfire/internal/model"
)

// WorkerArg is the hidden argv mode that puts the harness binary into the
// worker serve loop.
const WorkerArg = "worker"

// NewSpawner returns a spawn function that launches one worker child process
// per call and completes the handshake. command defaults to re-executing the
// current binary in worker mode; the child's stderr passes through so worker
// logs stay visible.
func NewSpawner(spec model.Spec, command []string) func(ctx context.Context, workerID int) (*Client, error) {
	return func(ctx context.Context, workerID int) (*Client, error) {
		argv := command
		if len(argv) == 0 {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("resolve worker binary: %w", err)
			}
			argv = []string{exe, WorkerArg}
		}
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("worker %d stdin: %w", workerID, err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("worker %d stdout: %w", workerID, err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start worker %d: %w", workerID, err)
		}

		shutdown := func() error {
			// Closing stdin lets the serve loop exit on EOF; the kill
			// covers a worker stuck mid-prediction.
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil
		}
		client, err := NewClient(ctx, spec, stdout, stdin, shutdown)
		if err != nil {
			_ = shutdown()
			return nil, fmt.Errorf("worker %d handshake: %w", workerID, err)
		}
		return client, nil
	}
}
