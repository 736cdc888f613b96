package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/shared"
)

// Job names accepted by the run/stop/status surface.
const (
	JobFetch    = "fetch"
	JobFeatures = "features"
	JobScoring  = "scoring"
	JobSync     = "sync"
	JobAll      = "all"
)

// Jobs lists every runnable job name.
var Jobs = []string{JobFetch, JobFeatures, JobScoring, JobSync, JobAll}

// Controller exposes the pipeline as named background jobs. The alert
// engine may be nil when no market session is available; the sync job
// then only republishes predictions.
type Controller struct {
	engine   *PipelineEngine
	alerts   *AlertEngine
	registry *Registry
}

// NewController creates a controller with its own job registry.
func NewController(engine *PipelineEngine, alerts *AlertEngine, logger *log.Logger) *Controller {
	return &Controller{
		engine:   engine,
		alerts:   alerts,
		registry: NewRegistry(logger),
	}
}

// Run starts the named job in the background.
func (c *Controller) Run(job string) error {
	fn, err := c.jobFunc(job)
	if err != nil {
		return err
	}
	return c.registry.Start(job, fn)
}

// Stop cancels the named job.
func (c *Controller) Stop(job string) error {
	if !validJob(job) {
		return fmt.Errorf("%w: %s", shared.ErrJobUnknown, job)
	}
	return c.registry.Stop(job)
}

// Status returns a snapshot for every job name, idle entries included.
func (c *Controller) Status() map[string]JobStatus {
	statuses := c.registry.Statuses()

	out := make(map[string]JobStatus, len(Jobs))
	for _, job := range Jobs {
		if status, ok := statuses[job]; ok {
			out[job] = status
			continue
		}
		out[job] = JobStatus{ID: job, State: JobIdle, Output: []string{}}
	}
	return out
}

// StatusFor returns the snapshot of one job.
func (c *Controller) StatusFor(job string) (JobStatus, error) {
	if !validJob(job) {
		return JobStatus{}, fmt.Errorf("%w: %s", shared.ErrJobUnknown, job)
	}
	return c.registry.Status(job)
}

func (c *Controller) jobFunc(job string) (JobFunc, error) {
	switch job {
	case JobFetch:
		return func(ctx context.Context, progress chan<- ProgressUpdate) error {
			if _, err := c.engine.SyncInstruments(ctx, progress); err != nil {
				return err
			}
			_, err := c.engine.FetchHistory(ctx, progress)
			return err
		}, nil
	case JobFeatures:
		return func(ctx context.Context, progress chan<- ProgressUpdate) error {
			return c.engine.ComputeFeatures(ctx, progress)
		}, nil
	case JobScoring:
		return func(ctx context.Context, progress chan<- ProgressUpdate) error {
			_, _, err := c.engine.ScorePredictions(ctx, progress)
			return err
		}, nil
	case JobSync:
		return func(ctx context.Context, progress chan<- ProgressUpdate) error {
			return c.sweep(ctx, progress)
		}, nil
	case JobAll:
		return func(ctx context.Context, progress chan<- ProgressUpdate) error {
			if _, err := c.engine.Run(ctx, progress); err != nil {
				return err
			}
			return c.sweep(ctx, progress)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrJobUnknown, job)
	}
}

func (c *Controller) sweep(ctx context.Context, progress chan<- ProgressUpdate) error {
	if c.alerts == nil {
		return nil
	}
	_, err := c.alerts.Sweep(ctx, progress)
	return err
}

func validJob(job string) bool {
	for _, name := range Jobs {
		if name == job {
			return true
		}
	}
	return false
}
