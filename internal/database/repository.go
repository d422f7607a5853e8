package database

import (
	"context"
)

// PostReader provides read-only access to active posts
type PostReader interface {
	// ListPosts returns all active posts, newest first
	ListPosts(ctx context.Context) ([]Post, error)
	// ListPostsByType returns active posts of one type, newest first
	ListPostsByType(ctx context.Context, postType PostType) ([]Post, error)
	// GetPost retrieves a post by ID, returns nil if not found or deleted
	GetPost(ctx context.Context, id string) (*Post, error)
}

// PostWriter provides write access to posts
type PostWriter interface {
	PostReader

	// CreatePost stores a new post. The post must pass Validate.
	// Status defaults to active and CreatedAt to the current time.
	CreatePost(ctx context.Context, post *Post) error

	// UpdatePost applies changes to an active post and returns the result.
	// Returns ErrPostNotFound when the post does not exist or is deleted.
	UpdatePost(ctx context.Context, id string, update PostUpdate) (*Post, error)

	// DeletePost marks a post as deleted and returns it as it was before,
	// so callers can clean up the stored image.
	// Returns ErrPostNotFound when the post does not exist or is already deleted.
	DeletePost(ctx context.Context, id string) (*Post, error)
}
