package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fpang/photo-to-post/internal/post"
)

func newPost(id string, status post.Status) *post.Post {
	return &post.Post{
		ID:      id,
		Country: "Mexico",
		City:    "Oaxaca",
		Status:  status,
		Photos:  []post.PhotoRef{{Filename: "a.jpg"}},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newPost("p1", post.StatusDraft)
	if err := s.CreatePost(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Country != "Mexico" || got.Status != post.StatusDraft {
		t.Fatalf("unexpected post: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be seeded on create")
	}

	missing, err := s.GetPost(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing post should be nil, nil; got %v, %v", missing, err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreatePost(ctx, newPost("p1", post.StatusDraft)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := s.GetPost(ctx, "p1")
	first.Photos[0].Filename = "mutated.jpg"
	first.Country = "Peru"

	second, _ := s.GetPost(ctx, "p1")
	if second.Photos[0].Filename != "a.jpg" || second.Country != "Mexico" {
		t.Errorf("stored record leaked through a returned copy: %+v", second)
	}
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := newPost("p1", post.StatusDraft)
	if err := s.CreatePost(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.UpdateStatus(ctx, p, post.StatusPublished)
	var invErr *post.InvalidTransitionError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	stored, _ := s.GetPost(ctx, "p1")
	if stored.Status != post.StatusDraft {
		t.Errorf("rejected transition must not persist, got %s", stored.Status)
	}

	if err := s.UpdateStatus(ctx, p, post.StatusApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ = s.GetPost(ctx, "p1")
	if stored.Status != post.StatusApproved {
		t.Errorf("expected approved, got %s", stored.Status)
	}
}

func TestListByStatusPartitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, p := range []*post.Post{
		newPost("d1", post.StatusDraft),
		newPost("d2", post.StatusDraft),
		newPost("s1", post.StatusScheduled),
	} {
		if err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	drafts, err := s.ListByStatus(ctx, post.StatusDraft)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 2 {
		t.Errorf("expected 2 drafts, got %d", len(drafts))
	}
	published, _ := s.ListByStatus(ctx, post.StatusPublished)
	if len(published) != 0 {
		t.Errorf("expected empty published partition, got %d", len(published))
	}
}

func TestListArchiveFiltersByPublishMonth(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	mk := func(id string, published time.Time) *post.Post {
		p := newPost(id, post.StatusPublished)
		p.PublishedAt = &published
		return p
	}
	if err := s.CreatePost(ctx, mk("mar", time.Date(2026, time.March, 5, 18, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreatePost(ctx, mk("apr", time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreatePost(ctx, newPost("draft", post.StatusDraft)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.ListArchive(ctx, 2026, time.March)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mar" {
		t.Errorf("expected only the March post, got %+v", got)
	}
}

func TestAttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	none, err := s.GetAttempt(ctx, "p1")
	if err != nil || none != nil {
		t.Fatalf("missing attempt should be nil, nil; got %v, %v", none, err)
	}

	p := newPost("p1", post.StatusScheduled)
	a := post.NewAttempt(p, time.Now())
	a.PollAttempts = 4
	if err := s.PutAttempt(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutations after Put must not bleed into the stored record.
	a.PollAttempts = 99

	got, err := s.GetAttempt(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PollAttempts != 4 {
		t.Errorf("expected persisted poll count 4, got %d", got.PollAttempts)
	}

	if err := s.DeleteAttempt(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gone, _ := s.GetAttempt(ctx, "p1")
	if gone != nil {
		t.Error("attempt should be gone after delete")
	}
}
