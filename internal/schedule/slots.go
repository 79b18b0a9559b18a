package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/fpang/photo-to-post/internal/calendar"
)

// TimeOfDay is one of the preferred publish times within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) at(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// slotIterator walks forward through the sequence of available future
// slots: the preferred-times cycle per day, skipping occupied slots and
// anything at or before now, drawing at most the weekly capacity per
// 7-day window. When a window's capacity is exhausted the iterator jumps
// to the next window instead of oversubscribing — the horizon extends
// forward as far as the backlog requires.
type slotIterator struct {
	snap    *calendar.Snapshot
	times   []TimeOfDay
	perWeek int
	now     time.Time

	day         time.Time // current day at midnight
	timeIdx     int
	weekStart   time.Time
	drawnInWeek int
	weekBudget  int
}

func newSlotIterator(now time.Time, times []TimeOfDay, perWeek int, snap *calendar.Snapshot) *slotIterator {
	sorted := append([]TimeOfDay(nil), times...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	it := &slotIterator{
		snap:      snap,
		times:     sorted,
		perWeek:   perWeek,
		now:       now,
		day:       day,
		weekStart: day,
	}
	it.weekBudget = it.budget(it.weekStart)
	return it
}

// budget is the weekly capacity minus slots already occupied in the window.
func (it *slotIterator) budget(weekStart time.Time) int {
	b := it.perWeek - it.snap.ScheduledInWindow(weekStart)
	if b < 0 {
		return 0
	}
	return b
}

func (it *slotIterator) nextWeek() {
	it.weekStart = it.weekStart.AddDate(0, 0, 7)
	it.day = it.weekStart
	it.timeIdx = 0
	it.drawnInWeek = 0
	it.weekBudget = it.budget(it.weekStart)
}

// next returns the next free future slot. Always terminates: perWeek is
// validated positive and future windows eventually have free capacity.
func (it *slotIterator) next() time.Time {
	for {
		if it.drawnInWeek >= it.weekBudget {
			it.nextWeek()
			continue
		}

		candidate := it.times[it.timeIdx].at(it.day)
		drawn := candidate.After(it.now) && !it.snap.IsOccupied(candidate)
		if drawn {
			// Charge the draw before the cursor moves: a slot on the
			// window's last day bills this week, not the next.
			it.drawnInWeek++
		}

		it.timeIdx++
		if it.timeIdx >= len(it.times) {
			it.timeIdx = 0
			it.day = it.day.AddDate(0, 0, 1)
			if !it.day.Before(it.weekStart.AddDate(0, 0, 7)) {
				it.nextWeek()
			}
		}

		if drawn {
			return candidate
		}
	}
}
