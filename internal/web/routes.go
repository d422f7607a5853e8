package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/safefind/safefind/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	postsHandler := handlers.NewPostsHandler(s.deps.Posts, s.deps.Blobs, s.deps.Normalizer, s.config.Uploads, s.logger)
	searchHandler := handlers.NewSearchHandler(s.deps.Posts, s.deps.Scanner, s.config.Match.Threshold, s.logger)
	compareHandler := handlers.NewCompareHandler(s.deps.Matcher, s.logger)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postsHandler.List)
			r.Get("/{id}", postsHandler.Get)
			r.Post("/{type}", postsHandler.Create)
			r.Patch("/{id}", postsHandler.Update)
			r.Delete("/{id}", postsHandler.Delete)
		})

		r.Post("/search", searchHandler.Search)
		r.Route("/search/jobs", func(r chi.Router) {
			r.Post("/", searchHandler.StartJob)
			r.Get("/{jobId}", searchHandler.JobStatus)
			r.Get("/{jobId}/events", searchHandler.JobEvents)
			r.Delete("/{jobId}", searchHandler.CancelJob)
		})
		r.Post("/compare", compareHandler.Compare)
	})
}
