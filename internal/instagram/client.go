// Package instagram provides a client for the Instagram Graph API content
// publishing endpoints used by the carousel pipeline: per-photo media
// containers, container status polling, carousel assembly, and publish.
//
// Publishing is a multi-step protocol:
//  1. Create one media container per photo (fetched by public URL)
//  2. Poll container status until processing finishes
//  3. Create a carousel container referencing the child containers
//  4. Publish the carousel container
//
// Publish is the only step that is not safely repeatable; LatestMediaID
// exists so a resumed attempt can recover the post ID when a publish
// response was lost.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/post"
)

const (
	// defaultBaseURL is the Instagram Graph API base URL.
	defaultBaseURL = "https://graph.instagram.com/v22.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// maxCarouselItems is the carousel size limit the creation layer is
	// responsible for never exceeding. A violation here is a fatal
	// configuration error, not a retryable failure.
	maxCarouselItems = post.MaxCarouselPhotos
)

// Container status codes returned by the Graph API.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
	StatusPublished  = "PUBLISHED"
)

// Client provides methods for publishing to Instagram via the Graph API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	userID      string
	baseURL     string
}

// NewClient creates an Instagram API client. accessToken and userID come
// from configuration (optionally resolved via SSM Parameter Store).
func NewClient(accessToken, userID string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		accessToken: accessToken,
		userID:      userID,
		baseURL:     defaultBaseURL,
	}
}

// --- API response types ---

// apiResponse is the generic Instagram Graph API response.
type apiResponse struct {
	ID    string  `json:"id"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code,status.
type containerStatusResponse struct {
	ID         string  `json:"id"`
	StatusCode string  `json:"status_code"`
	Status     string  `json:"status,omitempty"`
	Error      *apiErr `json:"error,omitempty"`
}

// mediaListResponse is the response from GET /{user_id}/media.
type mediaListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *apiErr `json:"error,omitempty"`
}

// --- Container creation ---

// CreateImageContainer creates an image media container. imageURL must be
// publicly fetchable (e.g. a presigned S3 GET URL). If isCarousel is true,
// the container is created as a carousel child item.
func (c *Client) CreateImageContainer(ctx context.Context, imageURL string, isCarousel bool) (string, error) {
	log.Debug().Bool("isCarousel", isCarousel).Msg("Creating image container")
	params := url.Values{
		"image_url":    {imageURL},
		"access_token": {c.accessToken},
	}
	if isCarousel {
		params.Set("is_carousel_item", "true")
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create image container: %w", err)
	}
	log.Info().Str("containerId", resp.ID).Msg("Image container created")
	return resp.ID, nil
}

// CreateSingleImagePost creates a single-image post container with caption.
// Used for posts with exactly one photo, which cannot be carousels.
func (c *Client) CreateSingleImagePost(ctx context.Context, imageURL, caption string) (string, error) {
	params := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create single image post: %w", err)
	}
	return resp.ID, nil
}

// CreateCarouselContainer creates a carousel container from child container
// IDs. caption is the full post caption text (including hashtags).
func (c *Client) CreateCarouselContainer(ctx context.Context, children []string, caption string) (string, error) {
	if len(children) < 2 {
		return "", &post.ConfigError{Field: "carousel", Reason: fmt.Sprintf("requires at least 2 items, got %d", len(children))}
	}
	if len(children) > maxCarouselItems {
		return "", &post.ConfigError{Field: "carousel", Reason: fmt.Sprintf("supports at most %d items, got %d", maxCarouselItems, len(children))}
	}

	params := url.Values{
		"media_type":   {"CAROUSEL"},
		"children":     {strings.Join(children, ",")},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create carousel container: %w", err)
	}
	return resp.ID, nil
}

// --- Publishing ---

// Publish publishes a media container (carousel or single).
// Returns the Instagram media ID of the published post.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	log.Debug().Str("containerId", containerID).Msg("Publishing container")
	params := url.Values{
		"creation_id":  {containerID},
		"access_token": {c.accessToken},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	log.Info().Str("containerId", containerID).Str("postId", resp.ID).Msg("Container published")
	return resp.ID, nil
}

// --- Status and recovery ---

// ContainerStatus returns the processing status of a media container:
// IN_PROGRESS, FINISHED, ERROR, EXPIRED, or PUBLISHED.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	endpoint := fmt.Sprintf("/%s?fields=status_code,status&access_token=%s",
		containerID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &post.TransportError{Op: "container status " + containerID, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &post.TransportError{Op: "container status " + containerID, Err: err}
	}

	var status containerStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if status.Error != nil {
		return "", fmt.Errorf("API error: %s (code %d)", status.Error.Message, status.Error.Code)
	}

	return status.StatusCode, nil
}

// LatestMediaID returns the ID of the account's most recently published
// media. Used to recover the post identifier when a publish call succeeded
// but its response was lost.
func (c *Client) LatestMediaID(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("/%s/media?fields=id&limit=1&access_token=%s",
		c.userID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &post.TransportError{Op: "list recent media", Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &post.TransportError{Op: "list recent media", Err: err}
	}

	var list mediaListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if list.Error != nil {
		return "", fmt.Errorf("API error: %s (code %d)", list.Error.Message, list.Error.Code)
	}
	if len(list.Data) == 0 {
		return "", fmt.Errorf("no published media found")
	}
	return list.Data[0].ID, nil
}

// --- Internal helpers ---

// postForm sends a POST request with form-encoded parameters to the Instagram API.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	startTime := time.Now()

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Instagram API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Dur("duration", duration).Err(err).Msg("Instagram API request failed")
		return nil, &post.TransportError{Op: "POST " + endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Instagram API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &post.TransportError{Op: "POST " + endpoint, Err: err}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if resp.Error != nil {
		log.Error().
			Str("errorMessage", resp.Error.Message).
			Str("errorType", resp.Error.Type).
			Int("errorCode", resp.Error.Code).
			Msg("Instagram API error")
		return nil, fmt.Errorf("Instagram API error: %s (type: %s, code: %d)",
			resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}

	if resp.ID == "" {
		return nil, fmt.Errorf("unexpected response: no ID returned (body: %s)", truncate(string(body), 200))
	}

	return &resp, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
