package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/photo-to-post/internal/post"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:  server.Client(),
		accessToken: "test-token",
		userID:      "12345",
		baseURL:     server.URL,
	}
}

func TestCreateImageContainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/12345/media") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		r.ParseForm()
		if r.Form.Get("image_url") != "https://example.com/photo.jpg" {
			t.Errorf("unexpected image_url: %s", r.Form.Get("image_url"))
		}
		if r.Form.Get("is_carousel_item") != "true" {
			t.Errorf("expected is_carousel_item=true")
		}

		json.NewEncoder(w).Encode(apiResponse{ID: "container-img-001"})
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.CreateImageContainer(context.Background(), "https://example.com/photo.jpg", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "container-img-001" {
		t.Errorf("expected container-img-001, got %s", id)
	}
}

func TestCreateSingleImagePost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("image_url") != "https://example.com/solo.jpg" {
			t.Errorf("unexpected image_url: %s", r.Form.Get("image_url"))
		}
		if r.Form.Get("caption") != "Antigua at dusk" {
			t.Errorf("unexpected caption: %s", r.Form.Get("caption"))
		}
		if r.Form.Get("is_carousel_item") != "" {
			t.Errorf("single post must not set is_carousel_item")
		}

		json.NewEncoder(w).Encode(apiResponse{ID: "container-single-001"})
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.CreateSingleImagePost(context.Background(), "https://example.com/solo.jpg", "Antigua at dusk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "container-single-001" {
		t.Errorf("expected container-single-001, got %s", id)
	}
}

func TestCreateCarouselContainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("media_type") != "CAROUSEL" {
			t.Errorf("expected media_type=CAROUSEL, got %s", r.Form.Get("media_type"))
		}
		if r.Form.Get("children") != "c1,c2,c3" {
			t.Errorf("unexpected children: %s", r.Form.Get("children"))
		}
		if r.Form.Get("caption") != "Three views of Lake Atitlan" {
			t.Errorf("unexpected caption: %s", r.Form.Get("caption"))
		}

		json.NewEncoder(w).Encode(apiResponse{ID: "carousel-001"})
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.CreateCarouselContainer(context.Background(),
		[]string{"c1", "c2", "c3"}, "Three views of Lake Atitlan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "carousel-001" {
		t.Errorf("expected carousel-001, got %s", id)
	}
}

func TestCreateCarouselContainerSizeLimits(t *testing.T) {
	client := NewClient("test-token", "12345")

	_, err := client.CreateCarouselContainer(context.Background(), []string{"only-one"}, "caption")
	var cfgErr *post.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for 1 item, got %v", err)
	}

	tooMany := make([]string, maxCarouselItems+1)
	for i := range tooMany {
		tooMany[i] = "c"
	}
	_, err = client.CreateCarouselContainer(context.Background(), tooMany, "caption")
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for %d items, got %v", len(tooMany), err)
	}
}

func TestPublish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/12345/media_publish") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		if r.Form.Get("creation_id") != "carousel-001" {
			t.Errorf("unexpected creation_id: %s", r.Form.Get("creation_id"))
		}

		json.NewEncoder(w).Encode(apiResponse{ID: "ig-post-789"})
	}))
	defer server.Close()

	client := newTestClient(server)
	postID, err := client.Publish(context.Background(), "carousel-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if postID != "ig-post-789" {
		t.Errorf("expected ig-post-789, got %s", postID)
	}
}

func TestContainerStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if !strings.Contains(r.URL.RawQuery, "fields=status_code") {
			t.Errorf("expected status_code field in query: %s", r.URL.RawQuery)
		}

		json.NewEncoder(w).Encode(containerStatusResponse{
			ID:         "container-001",
			StatusCode: StatusFinished,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	status, err := client.ContainerStatus(context.Background(), "container-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusFinished {
		t.Errorf("expected %s, got %s", StatusFinished, status)
	}
}

func TestLatestMediaID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/12345/media") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "limit=1") {
			t.Errorf("expected limit=1 in query: %s", r.URL.RawQuery)
		}

		w.Write([]byte(`{"data":[{"id":"ig-post-recovered"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.LatestMediaID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ig-post-recovered" {
		t.Errorf("expected ig-post-recovered, got %s", id)
	}
}

func TestAPIErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			Error: &apiErr{
				Message: "Invalid OAuth access token",
				Type:    "OAuthException",
				Code:    190,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.CreateImageContainer(context.Background(), "https://example.com/photo.jpg", false)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Errorf("error should include API message: %v", err)
	}
	if post.IsTransport(err) {
		t.Error("API-level error must not classify as transport failure")
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server)
	_, err := client.Publish(context.Background(), "carousel-001")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !post.IsTransport(err) {
		t.Errorf("connection failure should classify as transport error: %v", err)
	}
}
