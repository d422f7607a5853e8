// Package scanner ranks stored posts by how closely their photo matches a query photo.
package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safefind/safefind/internal/blob"
	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/constants"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
)

const defaultFetchTimeout = 5 * time.Second

// Embedder is the part of facematch.Matcher the scanner needs.
type Embedder interface {
	Embed(ctx context.Context, raw []byte) (embedding.Embedding, error)
	IsMatch(d float64) bool
}

// Candidate is a post whose photo matched the query.
type Candidate struct {
	PostID   string        `json:"post_id"`
	Distance float64       `json:"distance"`
	Post     database.Post `json:"post"`
}

// ProgressFunc is called after every post is processed. It may be called from
// several goroutines at once.
type ProgressFunc func(done, total int)

// Scanner compares a query photo against the photos of many posts.
type Scanner struct {
	matcher      Embedder
	fetcher      blob.Fetcher
	workers      int
	fetchTimeout time.Duration
	logger       *slog.Logger
	progress     ProgressFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used to report skipped posts.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.progress = fn }
}

// New creates a scanner. Worker count and fetch timeout come from cfg.
func New(matcher Embedder, fetcher blob.Fetcher, cfg config.ScanConfig, opts ...Option) *Scanner {
	s := &Scanner{
		matcher:      matcher,
		fetcher:      fetcher,
		workers:      cfg.Workers,
		fetchTimeout: cfg.FetchTimeout(),
		logger:       slog.Default(),
	}
	if s.workers <= 0 {
		s.workers = constants.WorkerPoolSize
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = defaultFetchTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan embeds query and returns the posts whose photo is closer than the match
// threshold, nearest first. Posts with equal distance keep their input order.
//
// A post whose image cannot be fetched, holds no face or fails to embed is
// skipped. Only problems with the query itself fail the scan.
func (s *Scanner) Scan(ctx context.Context, query []byte, posts []database.Post) ([]Candidate, error) {
	return s.ScanWithProgress(ctx, query, posts, nil)
}

// ScanWithProgress is Scan with an extra progress callback for this call only.
// The callback registered with WithProgress is still invoked.
func (s *Scanner) ScanWithProgress(ctx context.Context, query []byte, posts []database.Post, progress ProgressFunc) ([]Candidate, error) {
	q, err := s.matcher.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, facematch.ErrNoFaceDetected) {
			return nil, &facematch.NoFaceError{Side: facematch.SideQuery}
		}
		return nil, fmt.Errorf("query image: %w", err)
	}

	hits := make([]*Candidate, len(posts))
	var done atomic.Int64
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, post := range posts {
		g.Go(func() error {
			defer s.report(&done, len(posts), progress)
			if err := ctx.Err(); err != nil {
				return err
			}

			d, err := s.distance(gctx, q, post)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				skipped.Add(1)
				level := slog.LevelWarn
				if errors.Is(err, embedding.ErrEmbeddingFailure) {
					level = slog.LevelError
				}
				s.logger.Log(gctx, level, "skipping candidate",
					"post_id", post.ID,
					"image_ref", post.ImageURL,
					"error", err)
				return nil
			}
			if s.matcher.IsMatch(d) {
				hits[i] = &Candidate{PostID: post.ID, Distance: d, Post: post}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(posts))
	for _, c := range hits {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	s.logger.Debug("scan complete",
		"posts", len(posts),
		"matches", len(candidates),
		"skipped", skipped.Load())
	return candidates, nil
}

func (s *Scanner) distance(ctx context.Context, query embedding.Embedding, post database.Post) (float64, error) {
	if post.ImageURL == "" {
		return 0, fmt.Errorf("%w: post has no image", blob.ErrResourceUnavailable)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	data, err := s.fetcher.Fetch(fetchCtx, post.ImageURL)
	cancel()
	if err != nil {
		return 0, err
	}

	emb, err := s.matcher.Embed(ctx, data)
	if err != nil {
		return 0, err
	}
	return embedding.Distance(query, emb)
}

func (s *Scanner) report(done *atomic.Int64, total int, extra ProgressFunc) {
	n := int(done.Add(1))
	if s.progress != nil {
		s.progress(n, total)
	}
	if extra != nil {
		extra(n, total)
	}
}
