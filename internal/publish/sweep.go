package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/post"
)

// Outcome is the per-post result of a sweep. Skipped posts carry the skip
// reason and no error.
type Outcome struct {
	PostID  string
	Skipped string
	Err     error
}

// SweepDue publishes every scheduled post whose slot time has elapsed.
// Posts whose lease is already held are skipped, as are posts more than
// maxDelay late (maxDelay <= 0 disables the guard). One post's failure
// never aborts the sweep; each post gets its own outcome.
func (m *Machine) SweepDue(ctx context.Context, now time.Time, maxDelay time.Duration) []Outcome {
	posts, err := m.store.ListByStatus(ctx, post.StatusScheduled)
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed listing scheduled posts")
		return []Outcome{{Err: fmt.Errorf("list scheduled posts: %w", err)}}
	}

	var outcomes []Outcome
	for _, p := range posts {
		if p.ScheduledAt == nil || p.ScheduledAt.After(now) {
			continue
		}
		if maxDelay > 0 && now.Sub(*p.ScheduledAt) > maxDelay {
			log.Warn().Str("postId", p.ID).Time("scheduledAt", *p.ScheduledAt).
				Dur("late", now.Sub(*p.ScheduledAt)).Msg("Post too late to auto-publish, skipping")
			outcomes = append(outcomes, Outcome{PostID: p.ID, Skipped: "past max delay"})
			continue
		}
		if m.Leased(p.ID) {
			log.Debug().Str("postId", p.ID).Msg("Post already leased, skipping")
			outcomes = append(outcomes, Outcome{PostID: p.ID, Skipped: "publish in progress"})
			continue
		}

		err := m.Publish(ctx, p.ID)
		outcomes = append(outcomes, Outcome{PostID: p.ID, Err: err})
	}

	log.Info().Int("due", len(outcomes)).Msg("Sweep complete")
	return outcomes
}

// Driver runs SweepDue on a cron schedule.
type Driver struct {
	machine  *Machine
	schedule string
	maxDelay time.Duration
	cron     *cron.Cron
}

// NewDriver creates an auto-publish driver. schedule is a cron expression,
// e.g. "0 */15 * * * *" for every 15 minutes.
func NewDriver(m *Machine, schedule string, maxDelay time.Duration) *Driver {
	return &Driver{
		machine:  m,
		schedule: schedule,
		maxDelay: maxDelay,
		cron:     cron.New(),
	}
}

// Start registers the sweep job and begins the cron loop. The loop runs
// until Stop or until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) error {
	err := d.cron.AddFunc(d.schedule, func() {
		d.machine.SweepDue(ctx, time.Now(), d.maxDelay)
	})
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", d.schedule, err)
	}

	d.cron.Start()
	log.Info().Str("schedule", d.schedule).Dur("maxDelay", d.maxDelay).Msg("Auto-publish driver started")

	go func() {
		<-ctx.Done()
		d.cron.Stop()
	}()
	return nil
}

// Stop halts the cron loop. In-flight sweeps finish their current post.
func (d *Driver) Stop() {
	d.cron.Stop()
	log.Info().Msg("Auto-publish driver stopped")
}
