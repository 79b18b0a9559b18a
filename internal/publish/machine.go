// Package publish drives a scheduled post through the asynchronous social
// publishing protocol: stage photos to hosting, create per-photo media
// containers, wait for external processing, assemble the carousel, publish.
//
// Progress is persisted as a PublishAttempt after every step, so a retried
// run resumes where the previous one stopped instead of restarting. Phases
// only move forward. The publish call itself is the one step that cannot be
// safely repeated and is guarded by a persisted issued-at marker.
package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/caption"
	"github.com/fpang/photo-to-post/internal/post"
	"github.com/fpang/photo-to-post/internal/store"
)

// SocialAPI is the publishing surface of the Instagram Graph API client.
type SocialAPI interface {
	CreateImageContainer(ctx context.Context, imageURL string, isCarousel bool) (string, error)
	CreateSingleImagePost(ctx context.Context, imageURL, caption string) (string, error)
	CreateCarouselContainer(ctx context.Context, children []string, caption string) (string, error)
	Publish(ctx context.Context, containerID string) (string, error)
	ContainerStatus(ctx context.Context, containerID string) (string, error)
	LatestMediaID(ctx context.Context) (string, error)
}

// Container status codes the machine interprets. Mirrors the Graph API
// status_code values.
const (
	statusFinished   = "FINISHED"
	statusInProgress = "IN_PROGRESS"
	statusError      = "ERROR"
	statusExpired    = "EXPIRED"
	statusPublished  = "PUBLISHED"
)

// Stager hosts photo bytes and returns a fetchable URL. Idempotent for
// photos that already carry a cached URL.
type Stager interface {
	EnsureHosted(ctx context.Context, postID string, ref *post.PhotoRef) (string, error)
}

// Config bounds the machine's retry and poll behaviour. Zero values fall
// back to defaults.
type Config struct {
	// MaxTransportRetries is how many times a single step is attempted
	// when it fails with a transport error.
	MaxTransportRetries int

	// RetryBackoff is the pause between transport retries.
	RetryBackoff time.Duration

	// PollInterval is the pause between media processing status polls.
	PollInterval time.Duration

	// MaxPollAttempts caps status polls across all runs for one attempt.
	// The counter is persisted, so a resumed attempt keeps its budget.
	MaxPollAttempts int
}

func (c Config) withDefaults() Config {
	if c.MaxTransportRetries <= 0 {
		c.MaxTransportRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 30
	}
	return c
}

// Machine runs the publish protocol for one post at a time per post ID.
// A post-scoped lease enforces single-writer discipline; concurrent
// Publish calls for the same post are rejected, and SweepDue skips
// leased posts.
type Machine struct {
	store  store.PostStore
	api    SocialAPI
	stager Stager
	cfg    Config

	mu     sync.Mutex
	leased map[string]bool

	// sleep and now are swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewMachine creates a publish machine over the given store, API client,
// and media stager.
func NewMachine(st store.PostStore, api SocialAPI, stager Stager, cfg Config) *Machine {
	return &Machine{
		store:  st,
		api:    api,
		stager: stager,
		cfg:    cfg.withDefaults(),
		leased: make(map[string]bool),
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// acquire takes the post-scoped lease, reporting false if already held.
func (m *Machine) acquire(postID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leased[postID] {
		return false
	}
	m.leased[postID] = true
	return true
}

func (m *Machine) release(postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leased, postID)
}

// Leased reports whether a publish run currently holds the post's lease.
func (m *Machine) Leased(postID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leased[postID]
}

// Publish drives one scheduled post to a terminal phase. It fails with
// ErrNotFound when the post does not exist or is not in scheduled status,
// and with ErrAlreadyPublishing when another run holds the post's lease.
// A transport failure after bounded retries moves the post to failed;
// recorded progress survives for manual re-trigger.
func (m *Machine) Publish(ctx context.Context, postID string) error {
	p, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post %s: %w", postID, err)
	}
	if p == nil || p.Status != post.StatusScheduled {
		return fmt.Errorf("post %s not in scheduled status: %w", postID, post.ErrNotFound)
	}

	if !m.acquire(postID) {
		return fmt.Errorf("post %s: %w", postID, post.ErrAlreadyPublishing)
	}
	defer m.release(postID)

	attempt, err := m.store.GetAttempt(ctx, postID)
	if err != nil {
		return fmt.Errorf("load publish attempt: %w", err)
	}
	if attempt == nil {
		attempt = post.NewAttempt(p, m.now())
		if err := m.store.PutAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("create publish attempt: %w", err)
		}
		log.Info().Str("postId", postID).Int("photos", len(p.Photos)).Msg("Starting publish attempt")
	} else {
		if len(attempt.Photos) != len(p.Photos) {
			return fmt.Errorf("post %s: publish attempt tracks %d photos but the post has %d",
				postID, len(attempt.Photos), len(p.Photos))
		}
		log.Info().Str("postId", postID).Str("phase", string(attempt.Phase)).
			Int("staged", attempt.StagedCount()).Msg("Resuming publish attempt")
	}

	return m.run(ctx, p, attempt)
}

// run advances the attempt phase by phase until terminal.
func (m *Machine) run(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	for !attempt.Terminal() {
		if err := ctx.Err(); err != nil {
			// Cancellation keeps recorded progress for the next run.
			return err
		}

		var err error
		switch attempt.Phase {
		case post.PhasePending:
			err = m.stagePhotos(ctx, p, attempt)
		case post.PhaseMediaStaged:
			err = m.createMediaContainers(ctx, p, attempt)
		case post.PhaseMediaProcessing:
			err = m.awaitProcessing(ctx, p, attempt)
		case post.PhaseMediaReady:
			err = m.assembleContainer(ctx, p, attempt)
		case post.PhaseContainerCreated:
			err = m.publishContainer(ctx, p, attempt)
		default:
			return fmt.Errorf("post %s: unknown phase %q", p.ID, attempt.Phase)
		}

		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return m.failPost(ctx, p, attempt, err)
		}
	}
	return nil
}

// stagePhotos hosts every photo that does not already carry a cached URL.
// Progress is persisted per photo, so a resumed run stages only the rest.
func (m *Machine) stagePhotos(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	for i := range attempt.Photos {
		if attempt.Photos[i].HostedURL != "" {
			continue
		}
		ref := &p.Photos[i]
		err := m.withRetry(ctx, "stage "+ref.Filename, func() error {
			_, err := m.stager.EnsureHosted(ctx, p.ID, ref)
			return err
		})
		if err != nil {
			return fmt.Errorf("stage photo %s: %w", ref.Filename, err)
		}
		attempt.Photos[i].HostedURL = ref.HostedURL
		attempt.Photos[i].State = post.PhotoStaged
		if err := m.store.PutAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("persist staging progress: %w", err)
		}
	}

	// Cached URLs live on the post record too, surviving attempt cleanup.
	if err := m.store.SavePost(ctx, p); err != nil {
		return fmt.Errorf("persist hosted urls: %w", err)
	}

	if err := attempt.Advance(post.PhaseMediaStaged); err != nil {
		return err
	}
	log.Info().Str("postId", p.ID).Int("photos", len(attempt.Photos)).Msg("All photos staged")
	return m.store.PutAttempt(ctx, attempt)
}

// createMediaContainers requests an external media container per staged
// photo. Single-photo posts get a captioned single-image container, which
// doubles as the publishable container later.
func (m *Machine) createMediaContainers(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	single := len(attempt.Photos) == 1
	for i := range attempt.Photos {
		if attempt.Photos[i].MediaID != "" {
			continue
		}
		url := attempt.Photos[i].HostedURL
		var mediaID string
		err := m.withRetry(ctx, "create container "+attempt.Photos[i].Filename, func() error {
			var err error
			if single {
				mediaID, err = m.api.CreateSingleImagePost(ctx, url, caption.Compose(p.Caption))
			} else {
				mediaID, err = m.api.CreateImageContainer(ctx, url, true)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("create media container for %s: %w", attempt.Photos[i].Filename, err)
		}
		attempt.Photos[i].MediaID = mediaID
		attempt.Photos[i].State = post.PhotoProcessing
		p.Photos[i].MediaID = mediaID
		if err := m.store.PutAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("persist container progress: %w", err)
		}
	}

	if err := m.store.SavePost(ctx, p); err != nil {
		return fmt.Errorf("persist media ids: %w", err)
	}
	if err := attempt.Advance(post.PhaseMediaProcessing); err != nil {
		return err
	}
	return m.store.PutAttempt(ctx, attempt)
}

// awaitProcessing polls every in-flight handle until all report finished
// or one reports an error. The attempt counter is persisted between polls
// so the budget spans process restarts.
func (m *Machine) awaitProcessing(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	for {
		pending := 0
		var procErr *post.ProcessingError
		for i := range attempt.Photos {
			if attempt.Photos[i].State == post.PhotoReady {
				continue
			}
			var status string
			err := m.withRetry(ctx, "poll "+attempt.Photos[i].Filename, func() error {
				var err error
				status, err = m.api.ContainerStatus(ctx, attempt.Photos[i].MediaID)
				return err
			})
			if err != nil {
				return fmt.Errorf("poll photo %s: %w", attempt.Photos[i].Filename, err)
			}

			switch status {
			case statusFinished, statusPublished:
				attempt.Photos[i].State = post.PhotoReady
			case statusError, statusExpired:
				// Finish the round so the other photos' ready states are
				// still recorded before failing.
				attempt.Photos[i].State = post.PhotoError
				if procErr == nil {
					attempt.FailedPhoto = i + 1
					procErr = &post.ProcessingError{
						PostID:     p.ID,
						PhotoIndex: i + 1,
						Filename:   attempt.Photos[i].Filename,
						Reason:     "media processing reported " + status,
					}
				}
			default:
				pending++
			}
		}

		if procErr != nil {
			if err := m.store.PutAttempt(ctx, attempt); err != nil {
				log.Error().Err(err).Str("postId", p.ID).Msg("Failed persisting photo error")
			}
			return procErr
		}

		if pending == 0 {
			if err := attempt.Advance(post.PhaseMediaReady); err != nil {
				return err
			}
			log.Info().Str("postId", p.ID).Int("pollAttempts", attempt.PollAttempts).
				Msg("All media containers ready")
			return m.store.PutAttempt(ctx, attempt)
		}

		attempt.PollAttempts++
		if err := m.store.PutAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("persist poll progress: %w", err)
		}
		if attempt.PollAttempts >= m.cfg.MaxPollAttempts {
			return fmt.Errorf("post %s: media processing timed out after %d polls",
				p.ID, attempt.PollAttempts)
		}

		log.Debug().Str("postId", p.ID).Int("pending", pending).
			Int("pollAttempts", attempt.PollAttempts).Msg("Media still processing")
		if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// assembleContainer builds the carousel container from the ready handles.
// A single-photo post already has its publishable container from the
// captioned single-image step.
func (m *Machine) assembleContainer(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	if attempt.ContainerID == "" {
		if len(attempt.Photos) == 1 {
			attempt.ContainerID = attempt.Photos[0].MediaID
		} else {
			children := make([]string, len(attempt.Photos))
			for i := range attempt.Photos {
				children[i] = attempt.Photos[i].MediaID
			}
			var containerID string
			err := m.withRetry(ctx, "create carousel", func() error {
				var err error
				containerID, err = m.api.CreateCarouselContainer(ctx, children, caption.Compose(p.Caption))
				return err
			})
			if err != nil {
				return fmt.Errorf("create carousel container: %w", err)
			}
			attempt.ContainerID = containerID
		}
	}

	if err := attempt.Advance(post.PhaseContainerCreated); err != nil {
		return err
	}
	log.Info().Str("postId", p.ID).Str("containerId", attempt.ContainerID).Msg("Publish container ready")
	return m.store.PutAttempt(ctx, attempt)
}

// publishContainer issues the publish call, guarded against repetition.
// The issued-at marker is persisted before the request goes out; any pass
// that finds it set, whether a resumed run or a transport retry within
// this run, checks the container for evidence of publication and recovers
// the post ID instead of re-issuing.
func (m *Machine) publishContainer(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) error {
	externalID, err := m.issuePublish(ctx, p, attempt)
	if err != nil {
		return err
	}

	publishedAt := m.now()
	p.InstagramPostID = externalID
	p.PublishedAt = &publishedAt
	if err := m.store.UpdateStatus(ctx, p, post.StatusPublished); err != nil {
		return fmt.Errorf("archive published post: %w", err)
	}

	if err := attempt.Advance(post.PhasePublished); err != nil {
		return err
	}
	if err := m.store.DeleteAttempt(ctx, p.ID); err != nil {
		log.Error().Err(err).Str("postId", p.ID).Msg("Failed deleting completed attempt")
	}

	log.Info().Str("postId", p.ID).Str("instagramPostId", externalID).Msg("Post published")
	return nil
}

// issuePublish runs the guarded publish call, retrying transport failures
// within the configured budget. A lost response is indistinguishable from a
// failed request, so every retry re-enters the guard: the container is
// checked for evidence of publication and the post ID recovered before any
// re-issue.
func (m *Machine) issuePublish(ctx context.Context, p *post.Post, attempt *post.PublishAttempt) (string, error) {
	var lastErr error
	for i := 0; i < m.cfg.MaxTransportRetries; i++ {
		if i > 0 {
			log.Warn().Err(lastErr).Str("postId", p.ID).Int("attempt", i).
				Msg("Transport failure around publish, re-checking container")
			if serr := m.sleep(ctx, m.cfg.RetryBackoff); serr != nil {
				return "", serr
			}
		}

		if attempt.PublishIssuedAt != nil {
			status, err := m.api.ContainerStatus(ctx, attempt.ContainerID)
			if err != nil {
				if post.IsTransport(err) {
					lastErr = fmt.Errorf("check container before re-publish: %w", err)
					continue
				}
				return "", fmt.Errorf("check container before re-publish: %w", err)
			}
			if status == statusPublished {
				log.Warn().Str("postId", p.ID).Str("containerId", attempt.ContainerID).
					Msg("Container already published, recovering post ID")
				id, err := m.api.LatestMediaID(ctx)
				if err != nil {
					if post.IsTransport(err) {
						lastErr = fmt.Errorf("recover published media id: %w", err)
						continue
					}
					return "", fmt.Errorf("recover published media id: %w", err)
				}
				return id, nil
			}
		} else {
			issued := m.now()
			attempt.PublishIssuedAt = &issued
			if err := m.store.PutAttempt(ctx, attempt); err != nil {
				return "", fmt.Errorf("persist publish marker: %w", err)
			}
		}

		id, err := m.api.Publish(ctx, attempt.ContainerID)
		if err == nil {
			return id, nil
		}
		if !post.IsTransport(err) {
			return "", fmt.Errorf("publish container %s: %w", attempt.ContainerID, err)
		}
		lastErr = fmt.Errorf("publish container %s: %w", attempt.ContainerID, err)
	}
	return "", fmt.Errorf("publish: retries exhausted: %w", lastErr)
}

// failPost records the terminal failure on both the attempt and the post.
func (m *Machine) failPost(ctx context.Context, p *post.Post, attempt *post.PublishAttempt, cause error) error {
	log.Error().Err(cause).Str("postId", p.ID).Str("phase", string(attempt.Phase)).
		Msg("Publish attempt failed")

	if err := attempt.Fail(cause.Error()); err == nil {
		if perr := m.store.PutAttempt(ctx, attempt); perr != nil {
			log.Error().Err(perr).Str("postId", p.ID).Msg("Failed persisting failed attempt")
		}
	}
	if err := m.store.UpdateStatus(ctx, p, post.StatusFailed); err != nil {
		log.Error().Err(err).Str("postId", p.ID).Msg("Failed marking post failed")
	}
	return cause
}

// withRetry runs fn, retrying transport failures with a fixed backoff up
// to the configured budget. Other error kinds return immediately.
func (m *Machine) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < m.cfg.MaxTransportRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !post.IsTransport(err) {
			return err
		}
		if i == m.cfg.MaxTransportRetries-1 {
			break
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", i+1).Msg("Transport failure, retrying")
		if serr := m.sleep(ctx, m.cfg.RetryBackoff); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}
