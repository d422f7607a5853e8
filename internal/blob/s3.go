package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/constants"
)

// S3Store keeps post images in an S3-compatible bucket.
// References that do not point into the bucket are handed to the fallback fetcher.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	fallback      Fetcher
	maxBytes      int64
}

// Connect creates an S3 client for the configured endpoint and credentials.
func Connect(cfg config.StorageConfig) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})
}

// NewS3Store creates a store over bucket. fallback may be nil.
func NewS3Store(client *s3.Client, cfg config.StorageConfig, fallback Fetcher) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		fallback:      fallback,
		maxBytes:      constants.MaxImageBytes,
	}, nil
}

// URL returns the reference for key.
func (s *S3Store) URL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return "s3://" + s.bucket + "/" + key
}

func (s *S3Store) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key, ok := KeyFromRef(ref, s.bucket, s.publicBaseURL)
	if !ok {
		if s.fallback == nil {
			return nil, fmt.Errorf("%w: %q is not in bucket %s", ErrResourceUnavailable, ref, s.bucket)
		}
		return s.fallback.Fetch(ctx, ref)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get %s: %w", ErrResourceUnavailable, key, err)
	}
	defer out.Body.Close()

	return readLimited(out.Body, s.maxBytes)
}

func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the object behind ref. References outside the bucket return ErrNotFound.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, ok := KeyFromRef(ref, s.bucket, s.publicBaseURL)
	if !ok {
		return fmt.Errorf("%w: %q is not in bucket %s", ErrNotFound, ref, s.bucket)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
