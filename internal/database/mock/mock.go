// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safefind/safefind/internal/database"
)

// MockPostStore is an in-memory implementation of database.PostWriter
type MockPostStore struct {
	mu    sync.RWMutex
	posts []database.Post // insertion order
	now   func() time.Time

	// Error injection
	ListError   error
	GetError    error
	CreateError error
	UpdateError error
	DeleteError error
}

// NewMockPostStore creates a new mock post store
func NewMockPostStore() *MockPostStore {
	return &MockPostStore{now: time.Now}
}

// AddPost adds a post as-is, without validation or defaults
func (m *MockPostStore) AddPost(post database.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, post)
}

// newestFirst returns active posts matching keep, newest first.
// Posts with equal timestamps keep reverse insertion order.
func (m *MockPostStore) newestFirst(keep func(database.Post) bool) []database.Post {
	var out []database.Post
	for i := len(m.posts) - 1; i >= 0; i-- {
		p := m.posts[i]
		if p.Status == database.StatusActive && keep(p) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b database.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// ListPosts returns active posts, newest first
func (m *MockPostStore) ListPosts(ctx context.Context) ([]database.Post, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newestFirst(func(database.Post) bool { return true }), nil
}

// ListPostsByType returns active posts of one type, newest first
func (m *MockPostStore) ListPostsByType(ctx context.Context, postType database.PostType) ([]database.Post, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newestFirst(func(p database.Post) bool { return p.Type == postType }), nil
}

func (m *MockPostStore) find(id string) int {
	for i, p := range m.posts {
		if p.ID == id && p.Status == database.StatusActive {
			return i
		}
	}
	return -1
}

// GetPost retrieves an active post by ID
func (m *MockPostStore) GetPost(ctx context.Context, id string) (*database.Post, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.find(id); i >= 0 {
		p := m.posts[i]
		return &p, nil
	}
	return nil, nil
}

// CreatePost stores a new post
func (m *MockPostStore) CreatePost(ctx context.Context, post *database.Post) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if err := post.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = database.StatusActive
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = m.now()
	}
	m.posts = append(m.posts, *post)
	return nil
}

// UpdatePost applies changes to an active post
func (m *MockPostStore) UpdatePost(ctx context.Context, id string, update database.PostUpdate) (*database.Post, error) {
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", database.ErrPostNotFound, id)
	}
	update.Apply(&m.posts[i])
	p := m.posts[i]
	return &p, nil
}

// DeletePost marks an active post as deleted
func (m *MockPostStore) DeletePost(ctx context.Context, id string) (*database.Post, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", database.ErrPostNotFound, id)
	}
	before := m.posts[i]
	m.posts[i].Status = database.StatusDeleted
	return &before, nil
}

// Posts returns a copy of every stored post, including deleted ones
func (m *MockPostStore) Posts() []database.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.posts)
}
