// Package calendar derives "what has already been scheduled or published"
// from the post store. The result is a plain value computed fresh per
// scheduling run and passed explicitly into the engine — there is no
// shared mutable calendar state.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fpang/photo-to-post/internal/post"
	"github.com/fpang/photo-to-post/internal/store"
)

// Entry is one already-placed post on the calendar, at its scheduled time
// for scheduled posts or its actual publish time for published ones.
type Entry struct {
	PostID     string
	Country    string
	City       string
	At         time.Time
	Status     post.Status
	PhotoCount int
}

// Snapshot aggregates placement history for constraint checks. Read-only:
// the engine consults it, never mutates it.
type Snapshot struct {
	// Entries holds scheduled and published posts in chronological order.
	Entries []Entry

	// Occupied marks slot timestamps already taken by scheduled posts.
	Occupied map[time.Time]bool

	// Counts is the per-country total of scheduled plus published posts.
	Counts map[string]int

	// LastAt is the per-country time of the most recent entry.
	LastAt map[string]time.Time
}

// Build computes a snapshot from the store's scheduled and published posts.
func Build(ctx context.Context, st store.PostStore) (*Snapshot, error) {
	snap := &Snapshot{
		Occupied: make(map[time.Time]bool),
		Counts:   make(map[string]int),
		LastAt:   make(map[string]time.Time),
	}

	scheduled, err := st.ListByStatus(ctx, post.StatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("list scheduled posts: %w", err)
	}
	for _, p := range scheduled {
		if p.ScheduledAt == nil {
			continue
		}
		snap.Entries = append(snap.Entries, Entry{
			PostID:     p.ID,
			Country:    p.Country,
			City:       p.City,
			At:         *p.ScheduledAt,
			Status:     p.Status,
			PhotoCount: len(p.Photos),
		})
		snap.Occupied[p.ScheduledAt.UTC()] = true
	}

	published, err := st.ListByStatus(ctx, post.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	for _, p := range published {
		if p.PublishedAt == nil {
			continue
		}
		snap.Entries = append(snap.Entries, Entry{
			PostID:     p.ID,
			Country:    p.Country,
			City:       p.City,
			At:         *p.PublishedAt,
			Status:     p.Status,
			PhotoCount: len(p.Photos),
		})
	}

	sort.Slice(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].At.Before(snap.Entries[j].At)
	})

	for _, e := range snap.Entries {
		snap.Counts[e.Country]++
		if e.At.After(snap.LastAt[e.Country]) {
			snap.LastAt[e.Country] = e.At
		}
	}
	return snap, nil
}

// IsOccupied reports whether a slot timestamp is already taken.
func (s *Snapshot) IsOccupied(t time.Time) bool {
	return s.Occupied[t.UTC()]
}

// RowFill returns a country's position within a 3-wide grid row: the count
// of its scheduled plus published posts modulo 3.
func (s *Snapshot) RowFill(country string) int {
	return s.Counts[country] % 3
}

// TrailingRun returns the country of the most recent calendar entries and
// how many consecutive entries at the tail share it. Zero length when the
// calendar is empty.
func (s *Snapshot) TrailingRun() (string, int) {
	if len(s.Entries) == 0 {
		return "", 0
	}
	country := s.Entries[len(s.Entries)-1].Country
	n := 0
	for i := len(s.Entries) - 1; i >= 0 && s.Entries[i].Country == country; i-- {
		n++
	}
	return country, n
}

// ScheduledInWindow counts occupied slots within [start, start+7d), used
// to charge existing posts against the weekly capacity.
func (s *Snapshot) ScheduledInWindow(start time.Time) int {
	end := start.AddDate(0, 0, 7)
	n := 0
	for t := range s.Occupied {
		if !t.Before(start) && t.Before(end) {
			n++
		}
	}
	return n
}
