package caption

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/photo-to-post/internal/jsonutil"
	"github.com/fpang/photo-to-post/internal/post"
)

// defaultModel is the Gemini model used for caption generation.
const defaultModel = "gemini-2.5-flash"

// Result is the structured AI caption output.
type Result struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// Generator produces a caption and AI-sourced hashtags for a post.
type Generator interface {
	Generate(ctx context.Context, p *post.Post) (*Result, error)
}

const systemPrompt = `You write Instagram captions for travel photo carousels.
Respond with a JSON object: {"caption": "...", "hashtags": ["tag1", "tag2"]}.
The caption is 2-4 sentences, first person, warm but not gushing, no emoji
spam (at most two), no hashtags inside the caption text. Hashtags are
lowercase, without the # prefix, specific to the place and subject.`

// NewGeminiClient creates a Gemini API client from an API key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// GeminiGenerator generates captions with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator wraps a genai client. An empty model selects the default.
func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	if model == "" {
		model = defaultModel
	}
	return &GeminiGenerator{client: client, model: model}
}

// Generate asks Gemini for a caption and hashtags based on the post's
// location and photo set.
func (g *GeminiGenerator) Generate(ctx context.Context, p *post.Post) (*Result, error) {
	prompt := buildPrompt(p)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	log.Debug().Str("model", g.model).Str("postId", p.ID).
		Int("photos", len(p.Photos)).Msg("Requesting caption from Gemini")
	callStart := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Caption generation failed")
		return nil, fmt.Errorf("generate caption: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	result, err := jsonutil.ParseJSON[Result](resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse caption response: %w", err)
	}

	log.Info().Str("postId", p.ID).Int("captionLength", len(result.Caption)).
		Int("hashtags", len(result.Hashtags)).Dur("duration", duration).
		Msg("Caption generated")
	return &result, nil
}

func buildPrompt(p *post.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a caption for a carousel of %d photos taken in %s.\n",
		len(p.Photos), p.LocationDisplay())

	if len(p.Photos) > 0 && !p.Photos[0].TakenAt.IsZero() {
		fmt.Fprintf(&b, "The photos were taken on %s.\n",
			p.Photos[0].TakenAt.Format("January 2, 2006"))
	}

	b.WriteString("Photo filenames, in carousel order:\n")
	for _, ph := range p.Photos {
		fmt.Fprintf(&b, "- %s\n", ph.Filename)
	}
	return b.String()
}
