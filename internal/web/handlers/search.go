package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/safefind/safefind/internal/constants"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/scanner"
)

// Scanner ranks posts against a query photo.
type Scanner interface {
	Scan(ctx context.Context, query []byte, posts []database.Post) ([]scanner.Candidate, error)
	ScanWithProgress(ctx context.Context, query []byte, posts []database.Post, progress scanner.ProgressFunc) ([]scanner.Candidate, error)
}

// SearchHandler handles photo search across stored posts
type SearchHandler struct {
	store     database.PostReader
	scanner   Scanner
	threshold float64
	logger    *slog.Logger
	jobs      *JobManager
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(store database.PostReader, scanner Scanner, threshold float64, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		store:     store,
		scanner:   scanner,
		threshold: threshold,
		logger:    logger,
		jobs:      NewJobManager(),
	}
}

type searchResponse struct {
	Mode      string              `json:"mode"`
	PostType  database.PostType   `json:"post_type"`
	Threshold float64             `json:"threshold"`
	Scanned   int                 `json:"scanned"`
	Matches   []scanner.Candidate `json:"matches"`
}

type searchRequest struct {
	query    []byte
	postType database.PostType
	mode     string
	limit    int
}

// parseSearchRequest reads the search form. On failure it writes the error
// response and returns false.
func parseSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	if err := parseForm(r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return searchRequest{}, false
	}

	query, ok, err := readFormFile(r, "image_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return searchRequest{}, false
	}
	if !ok {
		respondError(w, http.StatusBadRequest, errFieldRequired("image_file"))
		return searchRequest{}, false
	}

	req := searchRequest{query: query, postType: database.PostTypeMissing}
	if t, _ := formString(r, "type"); t != "" {
		if req.postType, err = database.ParsePostType(t); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return searchRequest{}, false
		}
	}

	req.mode, _ = formString(r, "mode")
	switch req.mode {
	case "":
		req.mode = constants.SearchModeBest
	case constants.SearchModeBest, constants.SearchModeAll:
	default:
		respondError(w, http.StatusBadRequest, "mode must be best or all")
		return searchRequest{}, false
	}

	req.limit = constants.DefaultSearchLimit
	if s, _ := formString(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return searchRequest{}, false
		}
		req.limit = min(n, constants.MaxSearchLimit)
	}
	if req.mode == constants.SearchModeBest {
		req.limit = 1
	}
	return req, true
}

// response trims the ranked candidates to the request limit.
func (h *SearchHandler) response(req searchRequest, scanned int, matches []scanner.Candidate) *searchResponse {
	if len(matches) > req.limit {
		matches = matches[:req.limit]
	}
	return &searchResponse{
		Mode:      req.mode,
		PostType:  req.postType,
		Threshold: h.threshold,
		Scanned:   scanned,
		Matches:   matches,
	}
}

// Search compares the uploaded photo against every active post of the requested
// type (missing by default). Mode "best" returns at most the nearest match,
// mode "all" returns the ranked list up to limit.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := parseSearchRequest(w, r)
	if !ok {
		return
	}

	posts, err := h.store.ListPostsByType(r.Context(), req.postType)
	if err != nil {
		h.logger.Error("listing posts failed", "post_type", req.postType, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	matches, err := h.scanner.Scan(r.Context(), req.query, posts)
	if err != nil {
		respondImageError(w, h.logger, err)
		return
	}

	resp := h.response(req, len(posts), matches)
	h.logger.Info("search complete",
		"post_type", req.postType,
		"mode", req.mode,
		"scanned", len(posts),
		"matches", len(resp.Matches))
	respondJSON(w, http.StatusOK, resp)
}
