package jobs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// Category separates the independent single-job slots.
type Category string

const (
	CategoryExport  Category = "export"
	CategoryEnhance Category = "enhance"
)

// LockFileName is the staging-directory lock file. While a registry holds
// it, the file contains the owning process's PID.
const LockFileName = ".clipforge.lock"

// Registry owns the per-category current-job slots. It is deliberately not
// a queue: starting a job while the category is occupied is a caller
// error, never silently serialized.
type Registry struct {
	stagingDir string
	logger     *slog.Logger
	lock       *flock.Flock

	mu      sync.Mutex
	current map[Category]*Job
}

// NewRegistry prepares the staging directory and takes an exclusive file
// lock on it so two processes never share job temp space.
func NewRegistry(stagingDir string, logger *slog.Logger) (*Registry, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	lockPath := filepath.Join(stagingDir, LockFileName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire staging lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrBusy, "registry", "acquire staging lock", "another clipforge process owns the staging directory", nil)
	}
	// Record the owning PID so other processes can signal a cancel.
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("record lock owner: %w", err)
	}

	registry := &Registry{
		stagingDir: stagingDir,
		logger:     logging.WithComponent(logger, "jobs"),
		lock:       lock,
		current:    make(map[Category]*Job),
	}
	registry.sweepOrphans()
	return registry, nil
}

// Close releases the staging lock.
func (r *Registry) Close() error {
	if r == nil || r.lock == nil {
		return nil
	}
	return r.lock.Unlock()
}

// Begin registers a new running job in the category slot, creating an
// owned temp directory when requested. It fails fast with ErrBusy when the
// slot is occupied, without touching the running job.
func (r *Registry) Begin(category Category, withTempDir bool) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.current[category]; existing != nil {
		return nil, services.Wrap(services.ErrBusy, string(category), "start job", fmt.Sprintf("job %s is still running", existing.ID), nil)
	}

	job := &Job{
		ID:       uuid.NewString(),
		Category: category,
		registry: r,
		state:    StateCreated,
	}
	if withTempDir {
		dir, err := os.MkdirTemp(r.stagingDir, "job-"+string(category)+"-*")
		if err != nil {
			return nil, fmt.Errorf("create job temp directory: %w", err)
		}
		job.TempDir = dir
	}
	job.logger = r.logger.With(logging.String(logging.FieldJobID, job.ID))

	r.current[category] = job
	return job, nil
}

// Active returns the category's current job, if any.
func (r *Registry) Active(category Category) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.current[category]
	return job, ok && job != nil
}

// Cancel hard-kills the category's current process, clears the slot, and
// reports whether a job was actually in flight. With nothing running it is
// a no-op that performs no cleanup.
func (r *Registry) Cancel(category Category) bool {
	r.mu.Lock()
	job := r.current[category]
	delete(r.current, category)
	r.mu.Unlock()

	if job == nil {
		return false
	}
	job.kill()
	r.logger.Info("job cancelled", logging.String(logging.FieldJobID, job.ID), logging.String("category", string(category)))
	return true
}

// release clears the slot if it still points at job.
func (r *Registry) release(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current[job.Category] == job {
		delete(r.current, job.Category)
	}
}
