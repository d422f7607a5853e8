package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safefind/safefind/internal/blob"
	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
	"github.com/safefind/safefind/internal/facematch/facetest"
	"github.com/safefind/safefind/internal/imaging"
)

var (
	red    = color.RGBA{255, 0, 0, 255}
	green  = color.RGBA{0, 255, 0, 255}
	blue   = color.RGBA{0, 0, 255, 255}
	yellow = color.RGBA{255, 255, 0, 255}

	personA      = facetest.Face(red, green, blue, yellow)
	personAOther = facetest.Face(color.RGBA{225, 30, 20, 255}, green, blue, color.RGBA{240, 255, 30, 255})
	personB      = facetest.Face(green, blue, red, blue)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(id, ref string) database.Post {
	return database.Post{
		ID:       id,
		Type:     database.PostTypeMissing,
		ImageURL: ref,
		Status:   database.StatusActive,
		Payload:  &database.MissingPayload{Name: id},
	}
}

func newTestScanner(fetcher blob.Fetcher, opts ...Option) *Scanner {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(facetest.NewMatcher(0.40), fetcher, config.ScanConfig{Workers: 4, FetchTimeoutSeconds: 5}, opts...)
}

func ids(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.PostID
	}
	return out
}

func TestScan_EmptyList(t *testing.T) {
	s := newTestScanner(blob.NewMemoryStore())

	got, err := s.Scan(context.Background(), personA, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestScan_RanksSamePersonFirst(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("p1.png", personA)
	store.Put("p2.png", personB)
	store.Put("p3.png", personAOther)

	posts := []database.Post{post("p2", "p2.png"), post("p3", "p3.png"), post("p1", "p1.png")}
	got, err := newTestScanner(store).Scan(context.Background(), personA, posts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", ids(got))
	}
	if got[0].PostID != "p1" || got[1].PostID != "p3" {
		t.Errorf("expected [p1 p3], got %v", ids(got))
	}
	if got[0].Distance > got[1].Distance {
		t.Errorf("candidates not sorted: %v > %v", got[0].Distance, got[1].Distance)
	}
	for _, c := range got {
		if c.Distance >= 0.40 {
			t.Errorf("candidate %s has distance %v at or above threshold", c.PostID, c.Distance)
		}
		if c.Post.ID != c.PostID {
			t.Errorf("candidate %s carries post %s", c.PostID, c.Post.ID)
		}
	}
}

func TestScan_SkipsBadCandidates(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("good.png", personAOther)
	store.Put("blank.png", facetest.Blank())
	store.Put("corrupt.png", []byte("\x89PNG\r\n\x1a\nbroken"))

	posts := []database.Post{
		post("missing-blob", "gone.png"),
		post("no-face", "blank.png"),
		post("corrupt", "corrupt.png"),
		post("no-image", ""),
		post("good", "good.png"),
	}
	got, err := newTestScanner(store).Scan(context.Background(), personA, posts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0].PostID != "good" {
		t.Errorf("expected only the good post, got %v", ids(got))
	}
}

func TestScan_TiesKeepInputOrder(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("same.png", personAOther)

	var posts []database.Post
	for _, id := range []string{"newest", "middle", "oldest", "older-still"} {
		posts = append(posts, post(id, "same.png"))
	}

	got, err := newTestScanner(store).Scan(context.Background(), personA, posts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"newest", "middle", "oldest", "older-still"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	for i := range want {
		if got[i].PostID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i].PostID)
		}
	}
}

func TestScan_QueryWithoutFace(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("p1.png", personA)

	_, err := newTestScanner(store).Scan(context.Background(), facetest.Blank(), []database.Post{post("p1", "p1.png")})

	var noFace *facematch.NoFaceError
	if !errors.As(err, &noFace) {
		t.Fatalf("expected NoFaceError, got %v", err)
	}
	if noFace.Side != facematch.SideQuery {
		t.Errorf("expected side %q, got %q", facematch.SideQuery, noFace.Side)
	}
	if !errors.Is(err, facematch.ErrNoFaceDetected) {
		t.Error("expected error to match ErrNoFaceDetected")
	}
}

type slowFetcher struct {
	blob.Fetcher
	slow string
}

func (f slowFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == f.slow {
		<-ctx.Done()
		return nil, errors.Join(blob.ErrResourceUnavailable, ctx.Err())
	}
	return f.Fetcher.Fetch(ctx, ref)
}

func TestScan_FetchTimeoutDropsPost(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("fast.png", personAOther)

	s := newTestScanner(slowFetcher{Fetcher: store, slow: "slow.png"})
	s.fetchTimeout = 20 * time.Millisecond

	got, err := s.Scan(context.Background(), personA, []database.Post{post("slow", "slow.png"), post("fast", "fast.png")})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0].PostID != "fast" {
		t.Errorf("expected only the fast post, got %v", ids(got))
	}
}

type cancellingFetcher struct {
	cancel context.CancelFunc
}

func (f cancellingFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScan_CallerCancellationFailsScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestScanner(cancellingFetcher{cancel: cancel})
	_, err := s.Scan(ctx, personA, []database.Post{post("p1", "p1.png"), post("p2", "p2.png")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScan_ReportsProgress(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("p.png", personAOther)

	var calls, last atomic.Int64
	s := newTestScanner(store, WithProgress(func(done, total int) {
		calls.Add(1)
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		if done == total {
			last.Store(int64(done))
		}
	}))

	posts := []database.Post{post("a", "p.png"), post("b", "p.png"), post("c", "missing.png")}
	if _, err := s.Scan(context.Background(), personA, posts); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 progress calls, got %d", calls.Load())
	}
	if last.Load() != 3 {
		t.Error("expected a final progress call with done == total")
	}
}

func TestScanWithProgress_PerCallCallback(t *testing.T) {
	store := blob.NewMemoryStore()
	store.Put("p.png", personAOther)

	var global, perCall atomic.Int64
	s := newTestScanner(store, WithProgress(func(done, total int) { global.Add(1) }))

	posts := []database.Post{post("a", "p.png"), post("b", "p.png")}
	if _, err := s.ScanWithProgress(context.Background(), personA, posts, func(done, total int) {
		perCall.Add(1)
	}); err != nil {
		t.Fatalf("ScanWithProgress: %v", err)
	}
	if global.Load() != 2 || perCall.Load() != 2 {
		t.Errorf("expected 2 calls on each callback, got global=%d per-call=%d", global.Load(), perCall.Load())
	}

	if _, err := s.Scan(context.Background(), personA, posts); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if perCall.Load() != 2 {
		t.Errorf("per-call callback leaked into a later scan: %d calls", perCall.Load())
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(facetest.NewMatcher(0.40), blob.NewMemoryStore(), config.ScanConfig{})
	if s.workers <= 0 {
		t.Errorf("expected positive default worker count, got %d", s.workers)
	}
	if s.fetchTimeout != defaultFetchTimeout {
		t.Errorf("expected default fetch timeout, got %v", s.fetchTimeout)
	}
}

// peak tracks how many calls are in flight and the highest count seen.
type peak struct {
	cur, max atomic.Int64
}

func (p *peak) enter() int64 {
	n := p.cur.Add(1)
	for {
		m := p.max.Load()
		if n <= m || p.max.CompareAndSwap(m, n) {
			return n
		}
	}
}

func (p *peak) leave() {
	p.cur.Add(-1)
}

// barrierFetcher holds every fetch until want fetches are in flight at once,
// then lets all of them through. It gives up waiting after a second so a
// serial scanner fails the test instead of hanging.
type barrierFetcher struct {
	blob.Fetcher
	want     int64
	inFlight peak
	once     sync.Once
	release  chan struct{}
}

func (f *barrierFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	defer f.inFlight.leave()
	if f.inFlight.enter() >= f.want {
		f.once.Do(func() { close(f.release) })
	}
	select {
	case <-f.release:
	case <-time.After(time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.Fetcher.Fetch(ctx, ref)
}

// countingDetector records how many detections run concurrently.
type countingDetector struct {
	facetest.UniformDetector
	inFlight peak
}

func (d *countingDetector) Detect(ctx context.Context, img image.Image) ([]facematch.Detection, error) {
	d.inFlight.enter()
	defer d.inFlight.leave()
	time.Sleep(2 * time.Millisecond)
	return d.UniformDetector.Detect(ctx, img)
}

func newMatcher(detector facematch.Detector, model embedding.Model, opts ...facematch.Option) *facematch.Matcher {
	cfg := config.MatchConfig{Threshold: 0.40, CropSize: 16}
	extractor := embedding.NewExtractor(func(context.Context) (embedding.Model, error) {
		return model, nil
	})
	return facematch.NewMatcher(facematch.NewLocator(detector, cfg), extractor, 0.40, opts...)
}

func TestScan_BoundsFetchAndInferenceConcurrency(t *testing.T) {
	const workers = 3

	store := blob.NewMemoryStore()
	store.Put("p.png", personAOther)
	fetcher := &barrierFetcher{Fetcher: store, want: workers, release: make(chan struct{})}
	detector := &countingDetector{}

	matcher := newMatcher(detector, facetest.QuadrantModel{}, facematch.WithInferenceParallelism(1))
	s := New(matcher, fetcher, config.ScanConfig{Workers: workers, FetchTimeoutSeconds: 5}, WithLogger(quietLogger()))

	var posts []database.Post
	for i := range 12 {
		posts = append(posts, post(fmt.Sprintf("p%d", i), "p.png"))
	}
	got, err := s.Scan(context.Background(), personA, posts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != len(posts) {
		t.Errorf("expected %d candidates, got %d", len(posts), len(got))
	}

	if n := fetcher.inFlight.max.Load(); n != workers {
		t.Errorf("expected %d fetches in flight at peak, got %d", workers, n)
	}
	if n := detector.inFlight.max.Load(); n != 1 {
		t.Errorf("expected inference to be serialized, got %d concurrent detections", n)
	}
}

// flakyModel succeeds for the first call and fails every call after it.
type flakyModel struct {
	facetest.QuadrantModel
	calls atomic.Int64
}

func (m *flakyModel) Infer(ctx context.Context, crop *imaging.FaceCrop) ([]float32, error) {
	if m.calls.Add(1) > 1 {
		return nil, errors.New("inference backend crashed")
	}
	return m.QuadrantModel.Infer(ctx, crop)
}

func TestScan_SkipLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		model     embedding.Model
		ref       string
		wantLevel string
	}{
		{"missing image", facetest.QuadrantModel{}, "gone.png", "level=WARN"},
		{"embedding failure", &flakyModel{}, "p.png", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := blob.NewMemoryStore()
			store.Put("p.png", personAOther)

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			s := New(newMatcher(facetest.UniformDetector{}, tt.model), store,
				config.ScanConfig{Workers: 1, FetchTimeoutSeconds: 5}, WithLogger(logger))

			got, err := s.Scan(context.Background(), personA, []database.Post{post("p1", tt.ref)})
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no candidates, got %v", ids(got))
			}

			out := buf.String()
			if !strings.Contains(out, "skipping candidate") {
				t.Fatalf("expected a skip log line, got %q", out)
			}
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("expected %s, got %q", tt.wantLevel, out)
			}
		})
	}
}
