package server

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
)

// PipelineHandler exposes pipeline job control: start, stop, and a
// status snapshot of every job.
type PipelineHandler struct {
	pipeline *tasks.Controller
	logger   *log.Logger
}

// NewPipelineHandler creates the pipeline control handler.
func NewPipelineHandler(pipeline *tasks.Controller, logger *log.Logger) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *PipelineHandler) Routes() []string {
	return []string{"GET /run/{job}", "GET /stop/{job}", "GET /status"}
}

func (h *PipelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, fmt.Errorf("%w: pipeline not configured", shared.ErrServiceUnavailable))
		return
	}

	switch r.Pattern {
	case "GET /run/{job}":
		h.run(w, r)
	case "GET /stop/{job}":
		h.stop(w, r)
	case "GET /status":
		h.status(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *PipelineHandler) run(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")
	if err := h.pipeline.Run(job); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("pipeline job started", "job", job)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "state": string(tasks.JobRunning)})
}

func (h *PipelineHandler) stop(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")
	if err := h.pipeline.Stop(job); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"job": job, "state": string(tasks.JobStopped)})
}

func (h *PipelineHandler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Status())
}
