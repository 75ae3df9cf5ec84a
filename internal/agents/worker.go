package agents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sync"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// ExternalWorker runs an implementation CLI as a subprocess. Unlike the
// planner and verifier it streams the process output live instead of
// capturing it, since a working session can run for minutes and the operator
// wants to watch it.
type ExternalWorker struct {
	// Command is the executable plus leading arguments.
	Command []string
	// Stdout and Stderr receive the streamed process output. Nil means the
	// orchestrator's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

type workerProc struct {
	cmd  *osexec.Cmd
	done sync.WaitGroup
}

// Spawn starts one attempt at the given tier in dir. It returns as soon as
// the process is running; completion is observed through Watch.
func (w *ExternalWorker) Spawn(ctx context.Context, tier models.Tier, promptFile, dir string) (*WorkerRun, error) {
	if len(w.Command) == 0 {
		return nil, fmt.Errorf("worker: no command configured")
	}
	prompt, err := os.ReadFile(promptFile)
	if err != nil {
		return nil, fmt.Errorf("read worker prompt: %w", err)
	}

	args := append([]string{}, w.Command[1:]...)
	args = append(args, "--model", string(tier), "-p", string(prompt))
	cmd := osexec.CommandContext(ctx, w.Command[0], args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	proc := &workerProc{cmd: cmd}
	proc.done.Add(2)
	go stream(stdout, w.out(), &proc.done)
	go stream(stderr, w.errOut(), &proc.done)

	return &WorkerRun{Tier: tier, opaque: proc}, nil
}

// Watch blocks until the attempt finishes. A nonzero exit is an outcome, not
// an error.
func (w *ExternalWorker) Watch(run *WorkerRun) (WorkerOutcome, error) {
	proc, ok := run.opaque.(*workerProc)
	if !ok {
		return WorkerOutcome{}, fmt.Errorf("worker: run was not spawned by this backend")
	}
	proc.done.Wait()

	err := proc.cmd.Wait()
	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			return WorkerOutcome{
				ExitCode: exitErr.ExitCode(),
				Note:     fmt.Sprintf("worker exited %d", exitErr.ExitCode()),
			}, nil
		}
		return WorkerOutcome{}, fmt.Errorf("wait for worker: %w", err)
	}
	return WorkerOutcome{ExitCode: 0}, nil
}

func (w *ExternalWorker) out() io.Writer {
	if w.Stdout != nil {
		return w.Stdout
	}
	return os.Stdout
}

func (w *ExternalWorker) errOut() io.Writer {
	if w.Stderr != nil {
		return w.Stderr
	}
	return os.Stderr
}

// stream copies one pipe to a writer line by line so interleaved worker
// output stays readable.
func stream(r io.Reader, dst io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(dst, scanner.Text())
	}
}

var _ Worker = (*ExternalWorker)(nil)
