// Package post defines the publication unit of the pipeline: a carousel
// post assembled from classified photos, its lifecycle status, and the
// publish-attempt record that tracks progress through the Instagram
// publish protocol.
//
// Status changes go through Transition, which enforces a closed transition
// table. Arbitrary status writes are not part of the model: anything not in
// the table fails with InvalidTransitionError.
package post

import (
	"time"
)

// MaxCarouselPhotos is the Instagram carousel item limit. The creation
// layer never produces posts above it; the publisher treats a violation
// as a fatal configuration error.
const MaxCarouselPhotos = 10

// Status is the lifecycle status of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Stages lists the lifecycle statuses in pipeline order. Used by the store
// to locate a post by scanning stage partitions.
var Stages = []Status{StatusDraft, StatusApproved, StatusScheduled, StatusPublished, StatusFailed}

// transitions is the closed set of legal status changes.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusApproved},
	StatusApproved:  {StatusScheduled},
	StatusScheduled: {StatusPublished, StatusFailed},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PhotoRef references one source image in a post's publish order.
// A photo belongs to exactly one post; split/merge operations move the
// reference, they never duplicate it.
type PhotoRef struct {
	Filename  string    `json:"filename" dynamodbav:"filename"`
	LocalPath string    `json:"localPath,omitempty" dynamodbav:"localPath,omitempty"`
	TakenAt   time.Time `json:"takenAt,omitempty" dynamodbav:"takenAt,omitempty"`

	// HostedURL is the cached media-host URL. Empty until the photo has
	// been staged; once set, staging returns it without a network call.
	HostedURL string `json:"hostedUrl,omitempty" dynamodbav:"hostedUrl,omitempty"`

	// MediaID is the external media container handle, populated
	// incrementally during publish.
	MediaID string `json:"mediaId,omitempty" dynamodbav:"mediaId,omitempty"`
}

// Caption is the post's caption text plus hashtag set.
type Caption struct {
	Text        string   `json:"text" dynamodbav:"text"`
	Hashtags    []string `json:"hashtags,omitempty" dynamodbav:"hashtags,omitempty"`
	GeneratedBy string   `json:"generatedBy,omitempty" dynamodbav:"generatedBy,omitempty"`
	Edited      bool     `json:"edited" dynamodbav:"edited"`
}

// Post is the unit of publication. Once Status reaches published the photo
// sequence, caption, and scheduled timestamp are immutable.
type Post struct {
	ID      string `json:"id" dynamodbav:"-"`
	Country string `json:"country" dynamodbav:"country"`
	City    string `json:"city" dynamodbav:"city"`

	Photos  []PhotoRef `json:"photos" dynamodbav:"photos"`
	Caption Caption    `json:"caption" dynamodbav:"caption"`
	Status  Status     `json:"status" dynamodbav:"status"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty" dynamodbav:"scheduledAt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" dynamodbav:"publishedAt,omitempty"`

	// InstagramPostID is the external post identifier, set on publish.
	InstagramPostID string `json:"instagramPostId,omitempty" dynamodbav:"instagramPostId,omitempty"`

	CreatedAt  time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty" dynamodbav:"approvedAt,omitempty"`
}

// LocationDisplay returns "City, Country" for logs and the calendar view.
func (p *Post) LocationDisplay() string {
	if p.City == "" {
		return p.Country
	}
	return p.City + ", " + p.Country
}

// Transition moves the post to the given status, enforcing the transition
// table. It does not touch timestamps; callers set ScheduledAt/PublishedAt.
func (p *Post) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return &InvalidTransitionError{From: string(p.Status), To: string(to)}
	}
	p.Status = to
	return nil
}

// Validate checks the invariants a post must satisfy before scheduling.
func (p *Post) Validate() error {
	if p.ID == "" {
		return &ConfigError{Field: "id", Reason: "post ID is required"}
	}
	if p.Country == "" {
		return &ConfigError{Field: "country", Reason: "post country is required"}
	}
	if len(p.Photos) == 0 {
		return &ConfigError{Field: "photos", Reason: "post has no photos"}
	}
	if len(p.Photos) > MaxCarouselPhotos {
		return &ConfigError{Field: "photos", Reason: "post exceeds the carousel item limit"}
	}
	return nil
}
