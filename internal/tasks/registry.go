package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/shared"
)

// JobState tracks where a background job is in its lifecycle.
type JobState string

const (
	JobIdle    JobState = "idle"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
	JobStopped JobState = "stopped"
)

// maxJobOutput bounds the captured progress lines per job.
const maxJobOutput = 200

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Output     []string   `json:"output"`
	Error      string     `json:"error,omitempty"`
}

// JobFunc is the body of a background job. It reports progress through
// the channel and must honor context cancellation.
type JobFunc func(ctx context.Context, progress chan<- ProgressUpdate) error

type job struct {
	status JobStatus
	cancel context.CancelFunc
}

// Registry runs named background jobs, one active run per name, and
// keeps their state and captured output for the status endpoints.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *log.Logger
}

// NewRegistry creates an empty job registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Start launches a job under the given name. A second start while the
// job is running fails with [shared.ErrJobRunning]. The job detaches
// from the caller's context; only Stop or process exit cancels it.
func (r *Registry) Start(id string, fn JobFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[id]; ok && existing.status.State == JobRunning {
		return fmt.Errorf("%w: %s", shared.ErrJobRunning, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	entry := &job{
		cancel: cancel,
		status: JobStatus{
			ID:        id,
			State:     JobRunning,
			StartedAt: &now,
			Output:    []string{},
		},
	}
	r.jobs[id] = entry

	progress := make(chan ProgressUpdate, 64)
	done := make(chan error, 1)

	go func() {
		done <- fn(ctx, progress)
		close(progress)
	}()

	go func() {
		for update := range progress {
			r.appendOutput(entry, update.Message)
		}

		err := <-done
		r.finish(entry, err)
	}()

	return nil
}

// Stop cancels a running job and marks it stopped.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobUnknown, id)
	}
	if entry.status.State != JobRunning {
		return fmt.Errorf("%w: %s is not running", shared.ErrJobUnknown, id)
	}

	entry.cancel()
	now := time.Now()
	entry.status.State = JobStopped
	entry.status.FinishedAt = &now
	r.logger.Info("job stopped", "job", id)

	return nil
}

// Status returns a snapshot of one job.
func (r *Registry) Status(id string) (JobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if !ok {
		return JobStatus{ID: id, State: JobIdle, Output: []string{}}, nil
	}
	return snapshot(entry.status), nil
}

// Statuses returns snapshots of every registered job.
func (r *Registry) Statuses() map[string]JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]JobStatus, len(r.jobs))
	for id, entry := range r.jobs {
		out[id] = snapshot(entry.status)
	}
	return out
}

// appendOutput and finish mutate the run that produced the update, not
// whatever currently holds the name. After a stop and restart the map
// slot belongs to the new run, and the old run's late return must not
// touch it.

func (r *Registry) appendOutput(entry *job, line string) {
	if line == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jobs[entry.status.ID] != entry {
		return
	}

	entry.status.Output = append(entry.status.Output, line)
	if len(entry.status.Output) > maxJobOutput {
		entry.status.Output = entry.status.Output[len(entry.status.Output)-maxJobOutput:]
	}
}

func (r *Registry) finish(entry *job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jobs[entry.status.ID] != entry {
		return
	}

	// A stop already settled the state; keep it.
	if entry.status.State != JobRunning {
		return
	}

	now := time.Now()
	entry.status.FinishedAt = &now

	if err != nil {
		entry.status.State = JobFailed
		entry.status.Error = err.Error()
		r.logger.Error("job failed", "job", entry.status.ID, "error", err)
		return
	}

	entry.status.State = JobDone
	r.logger.Info("job finished", "job", entry.status.ID)
}

func snapshot(status JobStatus) JobStatus {
	out := status
	out.Output = append([]string(nil), status.Output...)
	return out
}
