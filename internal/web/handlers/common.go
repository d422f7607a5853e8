package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/safefind/safefind/internal/constants"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
	"github.com/safefind/safefind/internal/imaging"
)

// errInvalidForm is a shared error message for unparsable request bodies.
const errInvalidForm = "failed to parse multipart form"

// errFieldRequired builds the message for a missing form field.
func errFieldRequired(field string) string {
	return field + " is required"
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// imageErrorStatus maps failures from the image pipeline to an HTTP status and
// the message shown to the client.
func imageErrorStatus(logger *slog.Logger, err error) (int, string) {
	var noFace *facematch.NoFaceError
	switch {
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, imaging.ErrCorruptImage),
		errors.Is(err, imaging.ErrTooSmall),
		errors.Is(err, imaging.ErrTooBlurry):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &noFace):
		return http.StatusUnprocessableEntity, noFace.Error()
	case errors.Is(err, facematch.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, embedding.ErrEmbeddingFailure):
		logger.Error("embedding failed", "error", err)
		return http.StatusBadGateway, "image processing failed"
	default:
		logger.Error("image processing failed", "error", err)
		return http.StatusInternalServerError, "image processing failed"
	}
}

// respondImageError writes the response for a failure from the image pipeline.
func respondImageError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, message := imageErrorStatus(logger, err)
	respondError(w, status, message)
}

// parseForm parses a multipart body, falling back to a url-encoded one.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(constants.MaxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// readFormFile reads an uploaded file. ok is false when the field is absent.
func readFormFile(r *http.Request, field string) (data []byte, ok bool, err error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	data, err = readLimited(file, constants.MaxImageBytes)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func readLimited(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}

// formString returns a trimmed form value and whether the field was sent at all.
func formString(r *http.Request, field string) (string, bool) {
	values, ok := r.Form[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// formInt parses a non-negative integer form value.
func formInt(r *http.Request, field string) (int, bool, error) {
	s, ok := formString(r, field)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, true, fmt.Errorf("%s must be a non-negative integer", field)
	}
	return n, true, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
