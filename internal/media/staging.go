// Package media stages post photos on the external media host. Instagram
// fetches media by public URL, so staging means uploading the image bytes
// to S3 and handing out a presigned GET URL, cached on the photo reference
// so repeated publish attempts never re-upload.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/post"
)

// DefaultURLExpiry is how long staged media URLs stay fetchable. Instagram
// pulls the media shortly after container creation, so a generous window
// covers processing delays and resumed attempts.
const DefaultURLExpiry = 24 * time.Hour

// putObjectAPI is the slice of the S3 client the stager uploads through.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI generates presigned GET URLs for uploaded objects.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Stager uploads photos to the media bucket and caches the resulting URL
// on the photo reference. Idempotent by construction: a photo that already
// carries a URL is returned without any network call.
type Stager struct {
	client    putObjectAPI
	presigner presignAPI
	bucket    string
	expiry    time.Duration
}

// NewStager creates a stager for the given bucket.
func NewStager(client *s3.Client, presigner *s3.PresignClient, bucket string) *Stager {
	return &Stager{client: client, presigner: presigner, bucket: bucket, expiry: DefaultURLExpiry}
}

// EnsureHosted returns a durable URL for the photo, uploading only when no
// cached URL exists. Upload failure surfaces as a retryable transport
// error and leaves the photo reference untouched.
func (s *Stager) EnsureHosted(ctx context.Context, postID string, ref *post.PhotoRef) (string, error) {
	if ref.HostedURL != "" {
		log.Debug().Str("file", ref.Filename).Msg("Photo already hosted, reusing cached URL")
		return ref.HostedURL, nil
	}

	key := fmt.Sprintf("posts/%s/%s", postID, ref.Filename)

	f, err := os.Open(ref.LocalPath)
	if err != nil {
		return "", fmt.Errorf("open photo %s: %w", ref.LocalPath, err)
	}
	defer f.Close()

	contentType := contentTypeFor(ref.Filename)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", &post.TransportError{Op: "upload photo " + ref.Filename, Err: err}
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", &post.TransportError{Op: "presign photo " + ref.Filename, Err: err}
	}

	ref.HostedURL = result.URL
	log.Info().
		Str("postId", postID).
		Str("file", ref.Filename).
		Str("key", key).
		Msg("Photo uploaded to media bucket")
	return result.URL, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}
