package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/safefind/safefind/internal/database"
)

const postColumns = `id, author_id, author_name, post_type, image_url, status, payload, created_at`

// PostRepository provides PostgreSQL-backed post storage
type PostRepository struct {
	pool *Pool
}

// NewPostRepository creates a new PostgreSQL post repository
func NewPostRepository(pool *Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*database.Post, error) {
	var (
		post     database.Post
		postType string
		status   string
		payload  []byte
	)
	if err := row.Scan(&post.ID, &post.AuthorID, &post.AuthorName, &postType,
		&post.ImageURL, &status, &payload, &post.CreatedAt); err != nil {
		return nil, err
	}

	post.Type = database.PostType(postType)
	post.Status = database.PostStatus(status)
	pl, err := database.DecodePayload(post.Type, payload)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", post.ID, err)
	}
	post.Payload = pl
	return &post, nil
}

func (r *PostRepository) queryPosts(ctx context.Context, query string, args ...any) ([]database.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []database.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// ListPosts returns all active posts, newest first
func (r *PostRepository) ListPosts(ctx context.Context) ([]database.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = 'active'
		ORDER BY created_at DESC, seq DESC
	`)
}

// ListPostsByType returns active posts of one type, newest first
func (r *PostRepository) ListPostsByType(ctx context.Context, postType database.PostType) ([]database.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = 'active' AND post_type = $1
		ORDER BY created_at DESC, seq DESC
	`, string(postType))
}

// GetPost retrieves an active post by ID, returns nil if not found
func (r *PostRepository) GetPost(ctx context.Context, id string) (*database.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	post, err := scanPost(r.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id = $1 AND status = 'active'
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	return post, nil
}

// CreatePost stores a new post
func (r *PostRepository) CreatePost(ctx context.Context, post *database.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = database.StatusActive
	}

	payload, err := json.Marshal(post.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO posts (id, author_id, author_name, post_type, image_url, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING created_at
	`, post.ID, post.AuthorID, post.AuthorName, string(post.Type), post.ImageURL,
		string(post.Status), payload, nullTime(post)).Scan(&post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// nullTime passes a zero CreatedAt as NULL so the database clock is used.
func nullTime(post *database.Post) sql.NullTime {
	return sql.NullTime{Time: post.CreatedAt, Valid: !post.CreatedAt.IsZero()}
}

// lockActivePost loads an active post inside tx and locks its row.
func lockActivePost(ctx context.Context, tx *sql.Tx, id string) (*database.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", database.ErrPostNotFound, id)
	}
	post, err := scanPost(tx.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id = $1 AND status = 'active'
		FOR UPDATE
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", database.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	return post, nil
}

// UpdatePost applies changes to an active post
func (r *PostRepository) UpdatePost(ctx context.Context, id string, update database.PostUpdate) (*database.Post, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	post, err := lockActivePost(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(post)
	payload, err := json.Marshal(post.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET payload = $2, image_url = $3, updated_at = NOW()
		WHERE id = $1
	`, id, payload, post.ImageURL); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post update: %w", err)
	}
	return post, nil
}

// DeletePost marks an active post as deleted
func (r *PostRepository) DeletePost(ctx context.Context, id string) (*database.Post, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	post, err := lockActivePost(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET status = 'deleted', updated_at = NOW()
		WHERE id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post delete: %w", err)
	}
	return post, nil
}
