package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safefind/safefind/internal/blob"
	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/imaging"
)

// PostsHandler handles missing- and found-person post endpoints
type PostsHandler struct {
	store      database.PostWriter
	blobs      blob.Store
	normalizer *imaging.Normalizer
	uploads    config.UploadsConfig
	logger     *slog.Logger
}

// NewPostsHandler creates a new posts handler
func NewPostsHandler(store database.PostWriter, blobs blob.Store, normalizer *imaging.Normalizer, uploads config.UploadsConfig, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{
		store:      store,
		blobs:      blobs,
		normalizer: normalizer,
		uploads:    uploads,
		logger:     logger,
	}
}

// payloadFields names the form fields of each post type: name, age, place.
var payloadFields = map[database.PostType][3]string{
	database.PostTypeMissing: {"missing_name", "missing_age", "last_seen"},
	database.PostTypeFound:   {"found_name", "estimated_age", "found_location"},
}

// List returns active posts, newest first, optionally filtered by type and name.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		posts []database.Post
		err   error
	)
	if t := r.URL.Query().Get("type"); t != "" {
		postType, perr := database.ParsePostType(t)
		if perr != nil {
			respondError(w, http.StatusBadRequest, perr.Error())
			return
		}
		posts, err = h.store.ListPostsByType(r.Context(), postType)
	} else {
		posts, err = h.store.ListPosts(r.Context())
	}
	if err != nil {
		h.logger.Error("listing posts failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	posts = database.FilterByName(posts, r.URL.Query().Get("name"))
	if posts == nil {
		posts = []database.Post{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// Get returns a single active post.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		h.logger.Error("getting post failed", "post_id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get post")
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"post": post})
}

// Create stores a new post of the type named in the URL.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	postType, err := database.ParsePostType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := parseForm(r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	raw, ok, err := readFormFile(r, "image_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, errFieldRequired("image_file"))
		return
	}

	fields := payloadFields[postType]
	for _, f := range fields {
		if v, _ := formString(r, f); v == "" {
			respondError(w, http.StatusBadRequest, errFieldRequired(f))
			return
		}
	}
	name, _ := formString(r, fields[0])
	age, _, err := formInt(r, fields[1])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	place, _ := formString(r, fields[2])
	notes, _ := formString(r, "notes")

	var payload database.Payload
	switch postType {
	case database.PostTypeMissing:
		payload = &database.MissingPayload{Name: name, Age: age, LastSeen: place, Notes: notes}
	case database.PostTypeFound:
		payload = &database.FoundPayload{Name: name, EstimatedAge: age, Location: place, Notes: notes}
	}

	authorID, _ := formString(r, "author_id")
	authorName, _ := formString(r, "author_name")

	imageURL, err := h.storeImage(r.Context(), w, postType, authorID, raw)
	if err != nil {
		return
	}

	post := &database.Post{
		AuthorID:   authorID,
		AuthorName: authorName,
		Type:       postType,
		ImageURL:   imageURL,
		Payload:    payload,
	}
	if err := h.store.CreatePost(r.Context(), post); err != nil {
		h.removeImage(r.Context(), imageURL)
		h.logger.Error("creating post failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	h.logger.Info("post created", "post_id", post.ID, "post_type", post.Type)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "post created",
		"post_id":   post.ID,
		"image_url": post.ImageURL,
	})
}

// Update changes payload fields of a post and optionally replaces its image.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		h.logger.Error("getting post failed", "post_id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get post")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if err := parseForm(r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	var update database.PostUpdate
	fields := payloadFields[existing.Type]
	if v, ok := formString(r, fields[0]); ok {
		update.Name = &v
	}
	if n, ok, err := formInt(r, fields[1]); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	} else if ok {
		update.Age = &n
	}
	if v, ok := formString(r, fields[2]); ok {
		update.Place = &v
	}
	if v, ok := formString(r, "notes"); ok {
		update.Notes = &v
	}

	raw, hasImage, err := readFormFile(r, "image_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if hasImage {
		imageURL, err := h.storeImage(r.Context(), w, existing.Type, existing.AuthorID, raw)
		if err != nil {
			return
		}
		update.ImageURL = &imageURL
	}

	if update.IsEmpty() {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	updated, err := h.store.UpdatePost(r.Context(), id, update)
	if err != nil {
		if update.ImageURL != nil {
			h.removeImage(r.Context(), *update.ImageURL)
		}
		if errors.Is(err, database.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "post not found")
			return
		}
		h.logger.Error("updating post failed", "post_id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update post")
		return
	}
	if update.ImageURL != nil && existing.ImageURL != "" {
		h.removeImage(r.Context(), existing.ImageURL)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "post updated",
		"post":    updated,
	})
}

// Delete marks a post deleted and removes its image.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prior, err := h.store.DeletePost(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "post not found")
			return
		}
		h.logger.Error("deleting post failed", "post_id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete post")
		return
	}
	if prior.ImageURL != "" {
		h.removeImage(r.Context(), prior.ImageURL)
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// storeImage normalizes and uploads raw. On failure it writes the response itself.
func (h *PostsHandler) storeImage(ctx context.Context, w http.ResponseWriter, postType database.PostType, author string, raw []byte) (string, error) {
	normalized, _, err := h.normalizer.Normalize(raw)
	if err != nil {
		respondImageError(w, h.logger, err)
		return "", err
	}
	url, err := blob.UploadImage(ctx, h.blobs, h.uploads.Template(string(postType)), author, normalized)
	if err != nil {
		h.logger.Error("image upload failed", "post_type", postType, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return "", err
	}
	return url, nil
}

// removeImage deletes a stored image. Objects that are already gone are ignored.
func (h *PostsHandler) removeImage(ctx context.Context, ref string) {
	err := h.blobs.Delete(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, blob.ErrNotFound):
		h.logger.Info("image already removed", "image_ref", ref)
	default:
		h.logger.Warn("image cleanup failed", "image_ref", ref, "error", err)
	}
}
