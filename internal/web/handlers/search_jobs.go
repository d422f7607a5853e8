package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// StartJob starts a search in the background and returns its job ID.
// It takes the same form as Search.
func (h *SearchHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	req, ok := parseSearchRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobs.CreateJob(uuid.NewString(), req, cancel)

	go h.runJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.ID,
		"status":    string(JobStatusPending),
		"post_type": string(req.postType),
		"mode":      req.mode,
	})
}

// lookupJob writes 400 or 404 and returns nil when the jobId param names no job.
func (h *SearchHandler) lookupJob(w http.ResponseWriter, r *http.Request) *SearchJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobs.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// JobStatus returns the state of a search job, including the result once it completed.
func (h *SearchHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// JobEvents streams search progress as server-sent events
func (h *SearchHandler) JobEvents(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobs.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*SearchJob).Snapshot()
		},
	)
}

// CancelJob stops a running search job. Finished jobs are forgotten instead.
func (h *SearchHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}

	if isJobTerminal(job.GetStatus()) {
		h.jobs.DeleteJob(job.ID)
		respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *SearchHandler) runJob(ctx context.Context, job *SearchJob) {
	defer job.cancel()
	req := job.request

	posts, err := h.store.ListPostsByType(ctx, req.postType)
	if err != nil {
		job.releaseQuery()
		h.logger.Error("listing posts failed", "job_id", job.ID, "post_type", req.postType, "error", err)
		h.failJob(job, http.StatusInternalServerError, "failed to list posts")
		return
	}

	job.setRunning(len(posts))
	job.SendEvent(JobEvent{Type: "started", Data: map[string]int{"total": len(posts)}})

	matches, err := h.scanner.ScanWithProgress(ctx, req.query, posts, func(done, total int) {
		job.setProgress(done, total)
		job.SendEvent(JobEvent{Type: "progress", Data: map[string]int{"processed": done, "total": total}})
	})
	job.releaseQuery()
	if err != nil {
		if ctx.Err() != nil {
			job.Cancel()
			return
		}
		status, message := imageErrorStatus(h.logger, err)
		h.failJob(job, status, message)
		return
	}

	resp := h.response(req, len(posts), matches)
	if job.finish(JobStatusCompleted, resp, 0, "") {
		h.logger.Info("search job complete",
			"job_id", job.ID,
			"post_type", req.postType,
			"scanned", len(posts),
			"matches", len(resp.Matches))
		job.SendEvent(JobEvent{Type: "completed", Data: resp})
	}
}

func (h *SearchHandler) failJob(job *SearchJob, status int, message string) {
	if job.finish(JobStatusFailed, nil, status, message) {
		job.SendEvent(JobEvent{Type: "job_error", Message: message})
	}
}
