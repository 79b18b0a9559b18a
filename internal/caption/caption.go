// Package caption builds Instagram captions: AI-generated text plus an
// assembled hashtag list in a fixed order (AI-sourced tags, then base
// tags, then a rotating slice of country tags).
package caption

import (
	"strings"

	"github.com/fpang/photo-to-post/internal/post"
)

// HashtagConfig controls hashtag assembly.
type HashtagConfig struct {
	// Base tags appear on every post, after any AI-sourced tags.
	Base []string `yaml:"base" env:"HASHTAGS_BASE"`

	// ByCountry maps a country name to its tag pool. A rotating window of
	// CountryCount tags is drawn per post so consecutive posts from the
	// same country do not repeat the same tags.
	ByCountry map[string][]string `yaml:"by_country"`

	// CountryCount is how many country tags to draw per post.
	CountryCount int `yaml:"country_count" env:"HASHTAGS_COUNTRY_COUNT" env-default:"3"`

	// MaxTags caps the total hashtag count per post.
	MaxTags int `yaml:"max_tags" env:"HASHTAGS_MAX" env-default:"30"`
}

// Assemble builds the final hashtag list for a post: AI tags first, then
// base tags, then country-rotation tags. rotation selects the window into
// the country pool (callers typically pass a running post index).
// Duplicates are dropped case-insensitively; the first occurrence wins.
func Assemble(aiTags []string, cfg HashtagConfig, country string, rotation int) []string {
	var ordered []string
	ordered = append(ordered, aiTags...)
	ordered = append(ordered, cfg.Base...)

	if pool := cfg.ByCountry[country]; len(pool) > 0 {
		count := cfg.CountryCount
		if count <= 0 || count > len(pool) {
			count = len(pool)
		}
		if rotation < 0 {
			rotation = 0
		}
		for i := 0; i < count; i++ {
			ordered = append(ordered, pool[(rotation+i)%len(pool)])
		}
	}

	seen := make(map[string]bool, len(ordered))
	var tags []string
	for _, t := range ordered {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
		if cfg.MaxTags > 0 && len(tags) >= cfg.MaxTags {
			break
		}
	}
	return tags
}

// Compose renders the publishable caption text: the caption body, a blank
// line, then the hashtags.
func Compose(c post.Caption) string {
	text := strings.TrimSpace(c.Text)
	if len(c.Hashtags) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	if text != "" {
		b.WriteString("\n\n")
	}
	for i, t := range c.Hashtags {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("#")
		b.WriteString(strings.TrimPrefix(t, "#"))
	}
	return b.String()
}
