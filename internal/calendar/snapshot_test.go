package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/fpang/photo-to-post/internal/post"
	"github.com/fpang/photo-to-post/internal/store"
)

func seedPost(ctx context.Context, t *testing.T, st store.PostStore, id, country string, status post.Status, at time.Time) {
	t.Helper()
	p := &post.Post{
		ID:        id,
		Country:   country,
		Status:    post.StatusScheduled,
		Photos:    []post.PhotoRef{{Filename: id + ".jpg"}},
		CreatedAt: at.Add(-72 * time.Hour),
	}
	switch status {
	case post.StatusScheduled:
		p.ScheduledAt = &at
	case post.StatusPublished:
		p.Status = post.StatusPublished
		p.PublishedAt = &at
	}
	if err := st.CreatePost(ctx, p); err != nil {
		t.Fatalf("seed post %s: %v", id, err)
	}
}

func TestBuildAggregatesScheduledAndPublished(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	seedPost(ctx, t, st, "pub-1", "Mexico", post.StatusPublished, base)
	seedPost(ctx, t, st, "pub-2", "Guatemala", post.StatusPublished, base.AddDate(0, 0, 2))
	seedPost(ctx, t, st, "sched-1", "Mexico", post.StatusScheduled, base.AddDate(0, 0, 4))
	seedPost(ctx, t, st, "sched-2", "Mexico", post.StatusScheduled, base.AddDate(0, 0, 6))

	snap, err := Build(ctx, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snap.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(snap.Entries))
	}
	for i := 1; i < len(snap.Entries); i++ {
		if snap.Entries[i].At.Before(snap.Entries[i-1].At) {
			t.Fatal("entries must be chronological")
		}
	}

	if snap.Counts["Mexico"] != 3 || snap.Counts["Guatemala"] != 1 {
		t.Errorf("unexpected counts: %v", snap.Counts)
	}
	if snap.RowFill("Mexico") != 0 {
		t.Errorf("Mexico at 3 posts should fill the row, got %d", snap.RowFill("Mexico"))
	}
	if snap.RowFill("Guatemala") != 1 {
		t.Errorf("Guatemala row fill: expected 1, got %d", snap.RowFill("Guatemala"))
	}

	country, run := snap.TrailingRun()
	if country != "Mexico" || run != 2 {
		t.Errorf("expected trailing Mexico run of 2, got %s/%d", country, run)
	}
}

func TestOccupiedSlotsAndWeeklyWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	slot := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	seedPost(ctx, t, st, "sched-1", "Peru", post.StatusScheduled, slot)
	seedPost(ctx, t, st, "pub-1", "Peru", post.StatusPublished, slot.AddDate(0, 0, -10))

	snap, err := Build(ctx, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snap.IsOccupied(slot) {
		t.Error("scheduled slot should be occupied")
	}
	// Lookup normalizes locations before comparing.
	if !snap.IsOccupied(slot.In(time.FixedZone("CST", -6*3600))) {
		t.Error("occupancy must be location independent")
	}
	// Published posts do not occupy future slots.
	if snap.IsOccupied(slot.AddDate(0, 0, -10)) {
		t.Error("published time must not count as an occupied slot")
	}

	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if n := snap.ScheduledInWindow(weekStart); n != 1 {
		t.Errorf("expected 1 slot in window, got %d", n)
	}
	if n := snap.ScheduledInWindow(weekStart.AddDate(0, 0, 7)); n != 0 {
		t.Errorf("expected 0 slots in next window, got %d", n)
	}
}

func TestEmptyStoreSnapshot(t *testing.T) {
	snap, err := Build(context.Background(), store.NewMemoryStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("expected empty snapshot, got %d entries", len(snap.Entries))
	}
	if country, run := snap.TrailingRun(); country != "" || run != 0 {
		t.Errorf("empty snapshot trailing run: got %s/%d", country, run)
	}
}
