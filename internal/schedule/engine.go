// Package schedule assigns publish slots to approved posts. Two policies:
// diversity mode caps consecutive same-country posts, grid mode groups
// posts in runs of 3 per country so profile grid rows stay coherent.
//
// The engine always makes progress: when the diversity constraint cannot
// be satisfied by the remaining backlog it degrades to violating it and
// reports the degradation as a warning, never as an error.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/calendar"
	"github.com/fpang/photo-to-post/internal/post"
	"github.com/fpang/photo-to-post/internal/store"
)

// rowSize is the profile grid width grid mode groups against.
const rowSize = 3

// Config holds the scheduling parameters for one assignment pass.
type Config struct {
	PostsPerWeek   int
	PreferredTimes []TimeOfDay

	// GridMode groups posts in runs of rowSize per country.
	// MaxConsecutiveSameCountry is ignored when set.
	GridMode bool

	MaxConsecutiveSameCountry int
}

// Validate rejects parameter combinations that would make slot search
// loop forever.
func (c Config) Validate() error {
	if c.PostsPerWeek <= 0 {
		return &post.ConfigError{Field: "posts_per_week", Reason: "must be positive"}
	}
	if len(c.PreferredTimes) == 0 {
		return &post.ConfigError{Field: "preferred_times", Reason: "at least one time of day is required"}
	}
	if !c.GridMode && c.MaxConsecutiveSameCountry < 1 {
		return &post.ConfigError{Field: "max_consecutive_same_country", Reason: "must be at least 1 in diversity mode"}
	}
	return nil
}

// Assignment pairs a post with its chosen slot.
type Assignment struct {
	Post *post.Post
	At   time.Time
}

// placed is a calendar point used when checking the run immediately
// preceding a candidate slot: historical entries and fresh assignments
// merged on one timeline.
type placed struct {
	country string
	at      time.Time
}

// Plan computes a total assignment of one future slot per approved post.
// Pure: it reads the snapshot and returns assignments plus degradation
// warnings; persisting the result is the caller's job.
func Plan(posts []*post.Post, snap *calendar.Snapshot, cfg Config, now time.Time) ([]Assignment, []string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if len(posts) == 0 {
		return nil, nil, nil
	}

	// Stable input order: creation time, then ID.
	ordered := append([]*post.Post(nil), posts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	if cfg.GridMode {
		ordered = gridOrder(ordered, snap)
		assignments := make([]Assignment, 0, len(ordered))
		iter := newSlotIterator(now, cfg.PreferredTimes, cfg.PostsPerWeek, snap)
		for _, p := range ordered {
			assignments = append(assignments, Assignment{Post: p, At: iter.next()})
		}
		return assignments, nil, nil
	}

	return diversityPlan(ordered, snap, cfg, now)
}

// diversityPlan walks slots forward, deferring any post whose country
// already ran cfg.MaxConsecutiveSameCountry times immediately before the
// slot. When every remaining post shares the blocked country it places one
// anyway and records a warning — constraint violation is the failure of
// last resort, not an error.
func diversityPlan(ordered []*post.Post, snap *calendar.Snapshot, cfg Config, now time.Time) ([]Assignment, []string, error) {
	timeline := make([]placed, 0, len(snap.Entries)+len(ordered))
	for _, e := range snap.Entries {
		timeline = append(timeline, placed{country: e.Country, at: e.At})
	}

	iter := newSlotIterator(now, cfg.PreferredTimes, cfg.PostsPerWeek, snap)
	remaining := append([]*post.Post(nil), ordered...)
	assignments := make([]Assignment, 0, len(ordered))
	var warnings []string

	for len(remaining) > 0 {
		slot := iter.next()
		blocked := blockedCountry(timeline, slot, cfg.MaxConsecutiveSameCountry)

		pick := -1
		for i, p := range remaining {
			if p.Country != blocked {
				pick = i
				break
			}
		}
		if pick < 0 {
			// Every unplaced post shares the blocked country.
			pick = 0
			warnings = append(warnings, fmt.Sprintf(
				"slot %s: only %s posts remain, exceeding max %d consecutive",
				slot.Format("2006-01-02 15:04"), blocked, cfg.MaxConsecutiveSameCountry))
		}

		p := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		assignments = append(assignments, Assignment{Post: p, At: slot})
		timeline = insertPlaced(timeline, placed{country: p.Country, at: slot})
	}

	return assignments, warnings, nil
}

// blockedCountry returns the country that may not take the slot because it
// already occupies maxRun consecutive timeline positions immediately before
// it, or "" when no country is blocked.
func blockedCountry(timeline []placed, slot time.Time, maxRun int) string {
	run := 0
	country := ""
	for i := len(timeline) - 1; i >= 0; i-- {
		if !timeline[i].at.Before(slot) {
			continue
		}
		if country == "" {
			country = timeline[i].country
		}
		if timeline[i].country != country {
			break
		}
		run++
	}
	if country != "" && run >= maxRun {
		return country
	}
	return ""
}

// insertPlaced keeps the timeline chronologically sorted.
func insertPlaced(timeline []placed, p placed) []placed {
	i := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].at.After(p.at)
	})
	timeline = append(timeline, placed{})
	copy(timeline[i+1:], timeline[i:])
	timeline[i] = p
	return timeline
}

// gridOrder arranges posts so partially filled grid rows complete first,
// then whole rows of rowSize per country, with short trailing groups last.
// Among countries with partial rows the fuller row completes first, ties
// broken by the country whose last placement is oldest.
func gridOrder(ordered []*post.Post, snap *calendar.Snapshot) []*post.Post {
	byCountry := make(map[string][]*post.Post)
	var countryOrder []string
	for _, p := range ordered {
		if _, seen := byCountry[p.Country]; !seen {
			countryOrder = append(countryOrder, p.Country)
		}
		byCountry[p.Country] = append(byCountry[p.Country], p)
	}

	out := make([]*post.Post, 0, len(ordered))
	take := func(country string, n int) {
		q := byCountry[country]
		if n > len(q) {
			n = len(q)
		}
		out = append(out, q[:n]...)
		byCountry[country] = q[n:]
	}

	// Complete partial rows to a multiple of rowSize before anything else.
	var partials []string
	for _, c := range countryOrder {
		if fill := snap.RowFill(c); fill > 0 {
			partials = append(partials, c)
		}
	}
	sort.SliceStable(partials, func(i, j int) bool {
		fi, fj := snap.RowFill(partials[i]), snap.RowFill(partials[j])
		if fi != fj {
			return fi > fj
		}
		return snap.LastAt[partials[i]].Before(snap.LastAt[partials[j]])
	})
	for _, c := range partials {
		take(c, rowSize-snap.RowFill(c))
	}

	// Full rows of rowSize per country, cycling in first-appearance order.
	for {
		progress := false
		for _, c := range countryOrder {
			if len(byCountry[c]) >= rowSize {
				take(c, rowSize)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	// Countries with fewer than rowSize posts left form short trailing
	// groups instead of blocking indefinitely.
	for _, c := range countryOrder {
		take(c, len(byCountry[c]))
	}
	return out
}

// Engine runs assignment passes against the store.
type Engine struct {
	store store.PostStore
}

// NewEngine creates a scheduling engine over the given store.
func NewEngine(st store.PostStore) *Engine {
	return &Engine{store: st}
}

// Run schedules every approved post: builds a fresh calendar snapshot,
// plans the assignment, and persists each post as scheduled with its slot.
// An empty approved backlog is a no-op. The whole pass runs before any
// concurrent publish can interleave on the store's mutation path.
func (e *Engine) Run(ctx context.Context, cfg Config, now time.Time) ([]Assignment, error) {
	approved, err := e.store.ListByStatus(ctx, post.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved posts: %w", err)
	}
	if len(approved) == 0 {
		log.Info().Msg("No approved posts to schedule")
		return nil, nil
	}

	snap, err := calendar.Build(ctx, e.store)
	if err != nil {
		return nil, fmt.Errorf("build calendar snapshot: %w", err)
	}

	assignments, warnings, err := Plan(approved, snap, cfg, now)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn().Str("constraint", "max_consecutive_same_country").Msg(w)
	}

	for _, a := range assignments {
		at := a.At
		a.Post.ScheduledAt = &at
		if err := e.store.UpdateStatus(ctx, a.Post, post.StatusScheduled); err != nil {
			return assignments, fmt.Errorf("schedule post %s: %w", a.Post.ID, err)
		}
		log.Info().
			Str("postId", a.Post.ID).
			Str("location", a.Post.LocationDisplay()).
			Time("slot", at).
			Msg("Post scheduled")
	}
	return assignments, nil
}
