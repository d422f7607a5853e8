package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/safefind/safefind/internal/constants"
)

// JobStatus represents the status of an async search job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// SearchJob is a search running in the background.
type SearchJob struct {
	EventBroadcaster

	ID          string
	Status      JobStatus
	Processed   int
	Total       int
	Error       string
	ErrorStatus int
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *searchResponse
	request     searchRequest
}

// searchJobView is the JSON form of a SearchJob.
type searchJobView struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	PostType    string          `json:"post_type"`
	Mode        string          `json:"mode"`
	Processed   int             `json:"processed"`
	Total       int             `json:"total"`
	Error       string          `json:"error,omitempty"`
	ErrorStatus int             `json:"error_status,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *searchResponse `json:"result,omitempty"`
}

// Snapshot returns a consistent copy of the job for serialization.
func (j *SearchJob) Snapshot() searchJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return searchJobView{
		ID:          j.ID,
		Status:      j.Status,
		PostType:    string(j.request.postType),
		Mode:        j.request.mode,
		Processed:   j.Processed,
		Total:       j.Total,
		Error:       j.Error,
		ErrorStatus: j.ErrorStatus,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *SearchJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *SearchJob) setRunning(total int) {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.Total = total
	j.mu.Unlock()
}

func (j *SearchJob) setProgress(done, total int) {
	j.mu.Lock()
	j.Processed = done
	j.Total = total
	j.mu.Unlock()
}

// releaseQuery drops the uploaded query image once the scan no longer needs it.
func (j *SearchJob) releaseQuery() {
	j.mu.Lock()
	j.request.query = nil
	j.mu.Unlock()
}

// finish moves the job into a terminal state unless it already is in one.
// Reports whether the state changed.
func (j *SearchJob) finish(status JobStatus, result *searchResponse, errStatus int, errMsg string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	now := time.Now()
	j.Status = status
	j.Result = result
	j.ErrorStatus = errStatus
	j.Error = errMsg
	j.CompletedAt = &now
	return true
}

// Cancel stops the search.
func (j *SearchJob) Cancel() {
	if j.finish(JobStatusCancelled, nil, 0, "") {
		j.EventBroadcaster.Cancel()
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async search jobs.
type JobManager struct {
	jobs map[string]*SearchJob
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*SearchJob),
		now:  time.Now,
	}
}

// CreateJob registers a pending job. Jobs that finished longer than
// constants.JobRetention ago are dropped.
func (m *JobManager) CreateJob(id string, req searchRequest, cancel context.CancelFunc) *SearchJob {
	job := &SearchJob{
		ID:        id,
		Status:    JobStatusPending,
		StartedAt: m.now(),
		request:   req,
	}
	job.cancel = cancel

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.jobs[id] = job
	return job
}

func (m *JobManager) pruneLocked() {
	cutoff := m.now().Add(-constants.JobRetention)
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *SearchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
