// Package creator turns classified photo directories into draft carousel
// posts. Photos under {root}/{country}/{city}/ are grouped by capture day,
// split into carousel-sized chunks, and written to the store as drafts
// ready for caption review and approval.
package creator

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/caption"
	"github.com/fpang/photo-to-post/internal/location"
	"github.com/fpang/photo-to-post/internal/post"
	"github.com/fpang/photo-to-post/internal/store"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".webp": true,
}

// Creator builds draft posts from a classified photo tree. The caption
// generator is optional; without one, drafts are created with empty
// captions for manual editing.
type Creator struct {
	store     store.PostStore
	generator caption.Generator
	hashtags  caption.HashtagConfig
}

func New(st store.PostStore, gen caption.Generator, tags caption.HashtagConfig) *Creator {
	return &Creator{store: st, generator: gen, hashtags: tags}
}

// photoGroup is one capture-day's photos for one place.
type photoGroup struct {
	place  location.Place
	day    string // yyyy-mm-dd
	photos []post.PhotoRef
}

// CreateFromDir scans the classified root and creates one draft post per
// place and capture day, splitting groups larger than the carousel limit.
// Returns the created drafts. A photo that fails metadata extraction is
// grouped by file modification date instead of aborting the run.
func (c *Creator) CreateFromDir(ctx context.Context, root string) ([]*post.Post, error) {
	groups, err := c.collectGroups(root)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		log.Info().Str("root", root).Msg("No classified photos found")
		return nil, nil
	}

	rotation := 0
	var created []*post.Post
	for _, g := range groups {
		for _, chunk := range splitChunks(g.photos, post.MaxCarouselPhotos) {
			p := &post.Post{
				ID:        uuid.New().String(),
				Country:   g.place.Country,
				City:      g.place.City,
				Photos:    chunk,
				Status:    post.StatusDraft,
				CreatedAt: time.Now(),
			}

			if c.generator != nil {
				result, err := c.generator.Generate(ctx, p)
				if err != nil {
					log.Warn().Err(err).Str("postId", p.ID).
						Msg("Caption generation failed, draft created without caption")
				} else {
					p.Caption = post.Caption{
						Text:        result.Caption,
						Hashtags:    caption.Assemble(result.Hashtags, c.hashtags, p.Country, rotation),
						GeneratedBy: "gemini",
					}
					rotation++
				}
			}

			if err := p.Validate(); err != nil {
				return created, fmt.Errorf("draft for %s/%s: %w", g.place.Country, g.day, err)
			}
			if err := c.store.CreatePost(ctx, p); err != nil {
				return created, fmt.Errorf("create draft: %w", err)
			}

			log.Info().Str("postId", p.ID).Str("location", p.LocationDisplay()).
				Str("day", g.day).Int("photos", len(chunk)).Msg("Draft post created")
			created = append(created, p)
		}
	}
	return created, nil
}

// collectGroups walks the classified tree and buckets photos by place and
// capture day.
func (c *Creator) collectGroups(root string) ([]photoGroup, error) {
	buckets := make(map[string]*photoGroup)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		place, err := location.FromPath(root, path)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unclassified photo")
			return nil
		}

		takenAt := captureTime(path, d)
		day := takenAt.Format("2006-01-02")
		key := place.Country + "/" + place.City + "/" + day
		if buckets[key] == nil {
			buckets[key] = &photoGroup{place: place, day: day}
		}
		buckets[key].photos = append(buckets[key].photos, post.PhotoRef{
			Filename:  d.Name(),
			LocalPath: path,
			TakenAt:   takenAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan classified root %s: %w", root, err)
	}

	groups := make([]photoGroup, 0, len(buckets))
	for _, g := range buckets {
		// Carousel order follows capture order within the day.
		sort.Slice(g.photos, func(i, j int) bool {
			if !g.photos[i].TakenAt.Equal(g.photos[j].TakenAt) {
				return g.photos[i].TakenAt.Before(g.photos[j].TakenAt)
			}
			return g.photos[i].Filename < g.photos[j].Filename
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].day != groups[j].day {
			return groups[i].day < groups[j].day
		}
		return groups[i].place.Country < groups[j].place.Country
	})
	return groups, nil
}

// captureTime prefers the EXIF capture date, falling back to file mtime.
func captureTime(path string, d fs.DirEntry) time.Time {
	if md, err := location.ExtractMetadata(path); err == nil && md.HasDate {
		return md.TakenAt
	}
	if info, err := d.Info(); err == nil {
		return info.ModTime()
	}
	return time.Now()
}

// splitChunks slices photos into carousel-sized posts, keeping order.
func splitChunks(photos []post.PhotoRef, size int) [][]post.PhotoRef {
	var chunks [][]post.PhotoRef
	for len(photos) > size {
		chunks = append(chunks, photos[:size])
		photos = photos[size:]
	}
	if len(photos) > 0 {
		chunks = append(chunks, photos)
	}
	return chunks
}
