package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// expiresAtMetadataKey is the object metadata entry holding the expiry in
// unix milliseconds. S3 lowercases user metadata keys.
const expiresAtMetadataKey = "kodbox-expires-at"

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores snapshots as S3 objects, one object per key.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	backend := mirror.NewS3Backend(client, "my-bucket", mirror.WithS3Prefix("sessions/"))
//
// S3 has no native per-object TTL, so the expiry travels as object metadata
// and is checked on Load. Use a bucket lifecycle rule to reclaim storage.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// S3BackendOption configures S3Backend behavior.
type S3BackendOption func(*s3BackendConfig)

type s3BackendConfig struct {
	prefix string
}

// WithS3Prefix sets the object key prefix.
// Default: "kodbox/".
func WithS3Prefix(prefix string) S3BackendOption {
	return func(c *s3BackendConfig) {
		c.prefix = prefix
	}
}

// NewS3Backend creates a new S3-backed mirror backend.
func NewS3Backend(client S3API, bucket string, opts ...S3BackendOption) *S3Backend {
	cfg := &s3BackendConfig{
		prefix: "kodbox/",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Backend{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

// objectKey returns the S3 object key for a mirror key.
func (s *S3Backend) objectKey(key string) string {
	return s.prefix + key
}

// Save uploads data with an expiration time.
func (s *S3Backend) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrBackendClosed{}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if !expiresAt.IsZero() {
		input.Metadata = map[string]string{
			expiresAtMetadataKey: strconv.FormatInt(expiresAt.UnixMilli(), 10),
		}
	}

	_, err := s.client.PutObject(ctx, input)
	return err
}

// Load downloads data if the object exists and hasn't expired.
func (s *S3Backend) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrBackendClosed{}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	if raw, ok := out.Metadata[expiresAtMetadataKey]; ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			if expired(time.UnixMilli(ms), time.Now()) {
				return nil, nil
			}
		}
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3Backend) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrBackendClosed{}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && isS3NotFound(err) {
		return nil
	}
	return err
}

// Close marks the backend as closed. The client is left untouched.
func (s *S3Backend) Close() error {
	s.closed.Store(true)
	return nil
}

// isS3NotFound reports whether err means the object doesn't exist.
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
