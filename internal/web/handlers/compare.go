package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/safefind/safefind/internal/facematch"
)

// Comparer measures the face distance between two photos.
type Comparer interface {
	Compare(ctx context.Context, a, b []byte) (float64, error)
	Verdict(d float64) facematch.Result
}

// CompareHandler handles pairwise photo comparison
type CompareHandler struct {
	matcher Comparer
	logger  *slog.Logger
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(matcher Comparer, logger *slog.Logger) *CompareHandler {
	return &CompareHandler{matcher: matcher, logger: logger}
}

// Compare returns the distance between the faces in image_a and image_b.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	images := make([][]byte, 2)
	for i, field := range []string{"image_a", "image_b"} {
		data, ok, err := readFormFile(r, field)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !ok {
			respondError(w, http.StatusBadRequest, errFieldRequired(field))
			return
		}
		images[i] = data
	}

	d, err := h.matcher.Compare(r.Context(), images[0], images[1])
	if err != nil {
		respondImageError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.matcher.Verdict(d))
}
