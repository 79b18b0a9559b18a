// Package store provides durable post storage. Each post lives as one
// self-contained record (status, photo sequence with cached URLs/handles,
// caption, hashtags, schedule, publish result) in a DynamoDB single-table
// layout partitioned by lifecycle stage. Published posts additionally move
// to an archive partition keyed by publish year/month.
//
// Publish attempts are stored alongside posts, keyed by post ID, so resume
// logic has one source of truth.
package store

import (
	"context"
	"time"

	"github.com/fpang/photo-to-post/internal/post"
)

// PostStore is the persistence interface shared by the scheduling engine,
// the publisher, and the CLI. Each method is safe for concurrent use.
//
// Get methods return (nil, nil) when the requested record does not exist.
// Put methods perform full-item replacement.
type PostStore interface {
	// CreatePost writes a new post record into its status partition.
	CreatePost(ctx context.Context, p *post.Post) error

	// GetPost locates a post by ID, scanning stage partitions in pipeline
	// order. Returns nil, nil if not found anywhere.
	GetPost(ctx context.Context, id string) (*post.Post, error)

	// ListByStatus returns all posts in the given lifecycle stage. For
	// published posts this covers the recent archive window.
	ListByStatus(ctx context.Context, status post.Status) ([]*post.Post, error)

	// SavePost rewrites a post record in place (same status partition).
	SavePost(ctx context.Context, p *post.Post) error

	// UpdateStatus validates the transition, moves the record between
	// stage partitions, and persists the post. Published posts land in
	// the archive partition for their publish year/month.
	UpdateStatus(ctx context.Context, p *post.Post, to post.Status) error

	// ListArchive returns published posts archived under the given
	// publish year and month.
	ListArchive(ctx context.Context, year int, month time.Month) ([]*post.Post, error)

	// GetAttempt retrieves the publish attempt for a post. Returns
	// nil, nil if no attempt exists.
	GetAttempt(ctx context.Context, postID string) (*post.PublishAttempt, error)

	// PutAttempt creates or replaces the publish attempt for a post.
	PutAttempt(ctx context.Context, a *post.PublishAttempt) error

	// DeleteAttempt discards the attempt record on terminal success.
	DeleteAttempt(ctx context.Context, postID string) error
}

// ArchiveWindowMonths bounds how far back ListByStatus(published) looks
// when aggregating history for the calendar snapshot.
const ArchiveWindowMonths = 12
