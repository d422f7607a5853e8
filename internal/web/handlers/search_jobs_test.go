package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/database/mock"
	"github.com/safefind/safefind/internal/facematch/facetest"
	"github.com/safefind/safefind/internal/scanner"
)

// blockingScanner blocks every scan until its context is cancelled
type blockingScanner struct {
	started chan struct{}
}

func (b *blockingScanner) Scan(ctx context.Context, query []byte, posts []database.Post) ([]scanner.Candidate, error) {
	return b.ScanWithProgress(ctx, query, posts, nil)
}

func (b *blockingScanner) ScanWithProgress(ctx context.Context, _ []byte, _ []database.Post, _ scanner.ProgressFunc) ([]scanner.Candidate, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

type jobView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	Error       string `json:"error"`
	ErrorStatus int    `json:"error_status"`
	Result      *struct {
		Mode    string `json:"mode"`
		Scanned int    `json:"scanned"`
		Matches []struct {
			PostID string `json:"post_id"`
		} `json:"matches"`
	} `json:"result"`
}

func startJob(t *testing.T, h *SearchHandler, fields map[string]string, query []byte) string {
	t.Helper()
	req := multipartRequest(t, "POST", "/api/v1/search/jobs", fields, map[string][]byte{"image_file": query})
	recorder := httptest.NewRecorder()
	h.StartJob(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)
	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["job_id"] == "" {
		t.Fatal("expected a job_id")
	}
	return resp["job_id"]
}

func waitForJob(t *testing.T, h *SearchHandler, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := h.jobs.GetJob(id); job != nil && isJobTerminal(job.GetStatus()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
}

func assertQueryReleased(t *testing.T, h *SearchHandler, id string) {
	t.Helper()
	job := h.jobs.GetJob(id)
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	if job.request.query != nil {
		t.Errorf("job %s still holds %d bytes of query image", id, len(job.request.query))
	}
}

func getJob(t *testing.T, h *SearchHandler, id string) (*httptest.ResponseRecorder, jobView) {
	t.Helper()
	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/search/jobs/"+id, nil), map[string]string{"jobId": id})
	recorder := httptest.NewRecorder()
	h.JobStatus(recorder, req)

	var view jobView
	if recorder.Code == http.StatusOK {
		parseJSONResponse(t, recorder, &view)
	}
	return recorder, view
}

func TestSearchHandler_JobCompletes(t *testing.T) {
	f := setupSearchTest(t)
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	personA := facetest.Face(red, green, blue, yellow)
	f.addPost("a-exact", database.PostTypeMissing, personA, base)
	f.addPost("b", database.PostTypeMissing, facetest.Face(green, blue, red, blue), base.Add(time.Hour))
	f.addPost("a-other", database.PostTypeMissing, facetest.Face(rgb(230, 20, 20), green, blue, rgb(245, 250, 20)), base.Add(2*time.Hour))

	id := startJob(t, f.handler, map[string]string{"mode": "all"}, personA)
	waitForJob(t, f.handler, id)

	recorder, view := getJob(t, f.handler, id)
	assertStatusCode(t, recorder, http.StatusOK)

	if view.Status != string(JobStatusCompleted) {
		t.Fatalf("expected completed, got %s (%s)", view.Status, view.Error)
	}
	if view.Processed != 3 || view.Total != 3 {
		t.Errorf("expected 3/3 processed, got %d/%d", view.Processed, view.Total)
	}
	if view.Result == nil {
		t.Fatal("expected a result")
	}
	if view.Result.Mode != "all" || view.Result.Scanned != 3 {
		t.Errorf("unexpected result header: %+v", view.Result)
	}
	var got []string
	for _, m := range view.Result.Matches {
		got = append(got, m.PostID)
	}
	if strings.Join(got, ",") != "a-exact,a-other" {
		t.Errorf("expected a-exact,a-other, got %v", got)
	}
	assertQueryReleased(t, f.handler, id)
}

func TestSearchHandler_JobFailsOnQueryWithoutFace(t *testing.T) {
	f := setupSearchTest(t)

	id := startJob(t, f.handler, nil, facetest.Blank())
	waitForJob(t, f.handler, id)

	_, view := getJob(t, f.handler, id)
	if view.Status != string(JobStatusFailed) {
		t.Fatalf("expected failed, got %s", view.Status)
	}
	if view.ErrorStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected error status 422, got %d", view.ErrorStatus)
	}
	if view.Error != "no face detected in image query" {
		t.Errorf("unexpected error %q", view.Error)
	}
}

func TestSearchHandler_JobStoreFailure(t *testing.T) {
	f := setupSearchTest(t)
	f.store.ListError = errMock

	id := startJob(t, f.handler, nil, facetest.Face(red, green, blue, yellow))
	waitForJob(t, f.handler, id)

	_, view := getJob(t, f.handler, id)
	if view.Status != string(JobStatusFailed) || view.ErrorStatus != http.StatusInternalServerError {
		t.Errorf("expected failed with 500, got %s/%d", view.Status, view.ErrorStatus)
	}
	assertQueryReleased(t, f.handler, id)
}

func TestSearchHandler_CancelJob(t *testing.T) {
	sc := &blockingScanner{started: make(chan struct{})}
	h := NewSearchHandler(mock.NewMockPostStore(), sc, 0.40, testLogger())

	id := startJob(t, h, nil, facetest.Face(red, green, blue, yellow))
	select {
	case <-sc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not start")
	}

	cancelReq := func() *httptest.ResponseRecorder {
		req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/search/jobs/"+id, nil), map[string]string{"jobId": id})
		recorder := httptest.NewRecorder()
		h.CancelJob(recorder, req)
		return recorder
	}

	recorder := cancelReq()
	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]bool
	parseJSONResponse(t, recorder, &resp)
	if !resp["cancelled"] {
		t.Errorf("expected cancelled=true, got %v", resp)
	}

	waitForJob(t, h, id)
	if _, view := getJob(t, h, id); view.Status != string(JobStatusCancelled) {
		t.Errorf("expected cancelled, got %s", view.Status)
	}

	// a finished job is forgotten on the second delete
	recorder = cancelReq()
	parseJSONResponse(t, recorder, &resp)
	if !resp["deleted"] {
		t.Errorf("expected deleted=true, got %v", resp)
	}
	if recorder, _ := getJob(t, h, id); recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", recorder.Code)
	}
}

func TestSearchHandler_JobEventsForFinishedJob(t *testing.T) {
	f := setupSearchTest(t)

	id := startJob(t, f.handler, nil, facetest.Face(red, green, blue, yellow))
	waitForJob(t, f.handler, id)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/search/jobs/"+id+"/events", nil), map[string]string{"jobId": id})
	recorder := httptest.NewRecorder()
	f.handler.JobEvents(recorder, req)

	assertContentType(t, recorder, "text/event-stream")
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\n") {
		t.Errorf("expected an initial status event, got %q", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("expected the completed snapshot, got %q", body)
	}
}

func TestSearchHandler_UnknownJob(t *testing.T) {
	f := setupSearchTest(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", f.handler.JobStatus},
		{"events", f.handler.JobEvents},
		{"cancel", f.handler.CancelJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/search/jobs/nope", nil), map[string]string{"jobId": "nope"})
			recorder := httptest.NewRecorder()
			tt.handler(recorder, req)
			assertStatusCode(t, recorder, http.StatusNotFound)
			assertJSONError(t, recorder, "job not found")
		})
	}
}

func TestJobManager_PrunesOldJobs(t *testing.T) {
	m := NewJobManager()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old := m.CreateJob("old", searchRequest{}, func() {})
	old.finish(JobStatusCompleted, nil, 0, "")
	finished := now.Add(-2 * time.Hour)
	old.CompletedAt = &finished
	running := m.CreateJob("running", searchRequest{}, func() {})

	m.CreateJob("new", searchRequest{}, func() {})

	if m.GetJob("old") != nil {
		t.Error("expected the old finished job to be pruned")
	}
	if m.GetJob("running") != running {
		t.Error("expected the running job to be kept")
	}
}
