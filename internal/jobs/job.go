package jobs

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// State is the job lifecycle position.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is one supervised render invocation chain. It exclusively owns its
// temp directory; nothing outside this package may touch it before the job
// reaches a terminal state and cleanup runs.
type Job struct {
	ID       string
	Category Category
	TempDir  string

	registry *Registry
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// RunOptions parameterizes one external invocation within a job.
type RunOptions struct {
	// Stage labels progress events and error context.
	Stage string
	// TotalSeconds is the expected output duration used to derive a
	// percent from ffmpeg's progress stream; zero means indeterminate.
	TotalSeconds float64
	// OnProgress receives clamped progress events.
	OnProgress ProgressFunc
}

// RunCommand spawns one external process and blocks until it exits,
// streaming parsed progress to the caller. A final event at 100% is
// guaranteed on success. Process failures carry the exit error and a
// stderr tail verbatim; a kill triggered by Cancel or context
// cancellation surfaces as a cancellation, not a tool failure.
func (j *Job) RunCommand(ctx context.Context, argv []string, opts RunOptions) error {
	if len(argv) == 0 {
		return services.Wrap(services.ErrInvalidRequest, opts.Stage, "run command", "empty argument vector", nil)
	}

	j.mu.Lock()
	switch j.state {
	case StateCreated:
		j.state = StateRunning
	case StateRunning:
	case StateCancelled:
		j.mu.Unlock()
		return fmt.Errorf("%s: %w", opts.Stage, context.Canceled)
	default:
		state := j.state
		j.mu.Unlock()
		return services.Wrap(services.ErrInvalidRequest, opts.Stage, "run command", fmt.Sprintf("job already %s", state), nil)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// Run the tool in its own process group and kill the whole group: a
	// forked child inheriting stdout would otherwise hold the progress
	// pipe open past a cancel and stall Wait indefinitely. WaitDelay
	// force-closes the pipes if anything survives the group kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killGroup(cmd.Process) }
	cmd.WaitDelay = 3 * time.Second
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		j.mu.Unlock()
		return services.Wrap(services.ErrExternalTool, opts.Stage, "open stdout pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		j.mu.Unlock()
		return services.Wrap(services.ErrExternalTool, opts.Stage, "spawn "+argv[0], "", err)
	}
	j.cmd = cmd
	j.mu.Unlock()

	j.logger.Debug("process started",
		logging.String("stage", opts.Stage),
		logging.String("binary", argv[0]),
		logging.Int("argc", len(argv)))

	parser := progressParser{totalSeconds: opts.TotalSeconds}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if opts.OnProgress == nil {
			continue
		}
		if percent, ok := parser.parseLine(scanner.Text()); ok {
			opts.OnProgress(Event{Stage: opts.Stage, Percent: percent})
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// Progress is advisory; the exit status below stays the
		// authority on success or failure.
		j.logger.Warn("progress stream read failed",
			logging.String("stage", opts.Stage),
			logging.Error(scanErr))
	}

	waitErr := cmd.Wait()

	j.mu.Lock()
	j.cmd = nil
	cancelled := j.state == StateCancelled
	j.mu.Unlock()

	if waitErr != nil {
		if cancelled || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", opts.Stage, context.Canceled)
		}
		return services.Wrap(services.ErrExternalTool, opts.Stage, argv[0], stderr.Tail(), waitErr)
	}
	if cancelled {
		return fmt.Errorf("%s: %w", opts.Stage, context.Canceled)
	}

	if opts.OnProgress != nil {
		opts.OnProgress(Event{Stage: opts.Stage, Percent: 100})
	}
	return nil
}

// Finish moves the job to its terminal state, clears the registry slot,
// and removes the owned temp directory. Cleanup failures are logged but
// never mask the original error; the terminal state is returned so
// callers can record it.
func (j *Job) Finish(err error) State {
	j.mu.Lock()
	switch {
	case j.state == StateCancelled:
		// Cancel already decided the terminal state.
	case err == nil:
		j.state = StateCompleted
	case services.IsCancelled(err):
		j.state = StateCancelled
	default:
		j.state = StateFailed
	}
	state := j.state
	j.mu.Unlock()

	j.registry.release(j)
	j.cleanupTemp()
	return state
}

// kill delivers a hard kill to the in-flight process, if any, and marks
// the job cancelled. It does not wait for acknowledgement.
func (j *Job) kill() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateRunning || j.state == StateCreated {
		j.state = StateCancelled
	}
	if j.cmd != nil {
		_ = killGroup(j.cmd.Process)
	}
}

// killGroup delivers SIGKILL to the process group, falling back to the
// direct child if the group is already gone.
func killGroup(process *os.Process) error {
	if process == nil {
		return nil
	}
	if err := syscall.Kill(-process.Pid, syscall.SIGKILL); err != nil {
		return process.Kill()
	}
	return nil
}

func (j *Job) cleanupTemp() {
	if j.TempDir == "" {
		return
	}
	if err := os.RemoveAll(j.TempDir); err != nil {
		j.logger.Warn("failed to remove job temp directory",
			logging.String("temp_dir", j.TempDir),
			logging.Error(err))
		return
	}
	j.logger.Debug("job temp directory removed", logging.String("temp_dir", j.TempDir))
}

// tailBuffer keeps the last capacity bytes written, for stderr context on
// failures without unbounded memory on chatty tools.
type tailBuffer struct {
	mu       sync.Mutex
	capacity int
	data     []byte
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{capacity: capacity}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if overflow := len(b.data) - b.capacity; overflow > 0 {
		b.data = b.data[overflow:]
	}
	return len(p), nil
}

func (b *tailBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
