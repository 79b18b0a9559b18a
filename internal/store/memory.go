package store

import (
	"context"
	"sync"
	"time"

	"github.com/fpang/photo-to-post/internal/post"
)

// MemoryStore is an in-memory PostStore used by tests and dry runs. A
// single write lock guards all mutation, matching the low-contention
// discipline the pipeline assumes: scheduling passes and publish runs
// never interleave on the store's mutation path.
type MemoryStore struct {
	mu       sync.Mutex
	posts    map[string]*post.Post
	attempts map[string]*post.PublishAttempt
}

var _ PostStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[string]*post.Post),
		attempts: make(map[string]*post.PublishAttempt),
	}
}

func copyPost(p *post.Post) *post.Post {
	cp := *p
	cp.Photos = append([]post.PhotoRef(nil), p.Photos...)
	cp.Caption.Hashtags = append([]string(nil), p.Caption.Hashtags...)
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		cp.ScheduledAt = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

func copyAttempt(a *post.PublishAttempt) *post.PublishAttempt {
	cp := *a
	cp.Photos = append([]post.PhotoProgress(nil), a.Photos...)
	if a.PublishIssuedAt != nil {
		t := *a.PublishIssuedAt
		cp.PublishIssuedAt = &t
	}
	return &cp
}

func (s *MemoryStore) CreatePost(ctx context.Context, p *post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.posts[p.ID] = copyPost(p)
	return nil
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return copyPost(p), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status post.Status) ([]*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*post.Post
	for _, p := range s.posts {
		if p.Status == status {
			out = append(out, copyPost(p))
		}
	}
	return out, nil
}

func (s *MemoryStore) SavePost(ctx context.Context, p *post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = copyPost(p)
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, p *post.Post, to post.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := p.Transition(to); err != nil {
		return err
	}
	s.posts[p.ID] = copyPost(p)
	return nil
}

func (s *MemoryStore) ListArchive(ctx context.Context, year int, month time.Month) ([]*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*post.Post
	for _, p := range s.posts {
		if p.Status != post.StatusPublished || p.PublishedAt == nil {
			continue
		}
		if p.PublishedAt.Year() == year && p.PublishedAt.Month() == month {
			out = append(out, copyPost(p))
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAttempt(ctx context.Context, postID string) (*post.PublishAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[postID]
	if !ok {
		return nil, nil
	}
	return copyAttempt(a), nil
}

func (s *MemoryStore) PutAttempt(ctx context.Context, a *post.PublishAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.PostID] = copyAttempt(a)
	return nil
}

func (s *MemoryStore) DeleteAttempt(ctx context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, postID)
	return nil
}
