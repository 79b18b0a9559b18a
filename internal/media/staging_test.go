package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/photo-to-post/internal/post"
)

type fakeUploader struct {
	puts    int
	lastKey string
	err     error
}

func (f *fakeUploader) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.err != nil {
		return nil, f.err
	}
	f.lastKey = *in.Key
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	presigns int
	err      error
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.presigns++
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL: fmt.Sprintf("https://%s.s3.test/%s?signed", *in.Bucket, *in.Key),
	}, nil
}

func newTestStager(up *fakeUploader, pre *fakePresigner) *Stager {
	return &Stager{client: up, presigner: pre, bucket: "media-test", expiry: time.Hour}
}

func tempPhoto(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnsureHostedUploadsAndCaches(t *testing.T) {
	up := &fakeUploader{}
	pre := &fakePresigner{}
	s := newTestStager(up, pre)

	ref := &post.PhotoRef{Filename: "beach.jpg", LocalPath: tempPhoto(t, "beach.jpg")}
	url, err := s.EnsureHosted(context.Background(), "post-1", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url == "" || ref.HostedURL != url {
		t.Errorf("expected URL cached on ref, got %q / %q", url, ref.HostedURL)
	}
	if up.lastKey != "posts/post-1/beach.jpg" {
		t.Errorf("unexpected object key: %s", up.lastKey)
	}
}

func TestEnsureHostedIsIdempotent(t *testing.T) {
	up := &fakeUploader{}
	pre := &fakePresigner{}
	s := newTestStager(up, pre)

	ref := &post.PhotoRef{Filename: "beach.jpg", HostedURL: "https://cached.test/beach.jpg"}
	url, err := s.EnsureHosted(context.Background(), "post-1", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cached.test/beach.jpg" {
		t.Errorf("expected cached URL returned unchanged, got %s", url)
	}
	if up.puts != 0 || pre.presigns != 0 {
		t.Errorf("cached photo must not touch the network: %d puts, %d presigns", up.puts, pre.presigns)
	}
}

func TestUploadFailureIsTransportAndLeavesRefUntouched(t *testing.T) {
	up := &fakeUploader{err: fmt.Errorf("dial tcp: connection refused")}
	s := newTestStager(up, &fakePresigner{})

	ref := &post.PhotoRef{Filename: "beach.jpg", LocalPath: tempPhoto(t, "beach.jpg")}
	_, err := s.EnsureHosted(context.Background(), "post-1", ref)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !post.IsTransport(err) {
		t.Errorf("upload failure should classify as transport error: %v", err)
	}
	if ref.HostedURL != "" {
		t.Errorf("failed upload must not cache a URL, got %s", ref.HostedURL)
	}
}

func TestPresignFailureLeavesRefUntouched(t *testing.T) {
	pre := &fakePresigner{err: fmt.Errorf("credentials expired")}
	s := newTestStager(&fakeUploader{}, pre)

	ref := &post.PhotoRef{Filename: "beach.jpg", LocalPath: tempPhoto(t, "beach.jpg")}
	_, err := s.EnsureHosted(context.Background(), "post-1", ref)
	if !post.IsTransport(err) {
		t.Errorf("presign failure should classify as transport error: %v", err)
	}
	if ref.HostedURL != "" {
		t.Errorf("failed presign must not cache a URL, got %s", ref.HostedURL)
	}
}

func TestContentTypeByExtension(t *testing.T) {
	if got := contentTypeFor("photo.PNG"); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
	if got := contentTypeFor("photo.heic"); got != "image/jpeg" {
		t.Errorf("unknown extensions default to jpeg, got %s", got)
	}
}
