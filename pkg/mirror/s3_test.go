package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3Object struct {
	data     []byte
	metadata map[string]string
}

type fakeS3Client struct {
	mu      sync.Mutex
	objects map[string]fakeS3Object
	puts    []*s3.PutObjectInput
	getErr  error
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: make(map[string]fakeS3Object)}
}

func (c *fakeS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, in)
	c.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = fakeS3Object{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (c *fakeS3Client) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	obj, ok := c.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.data)),
		Metadata: obj.metadata,
	}, nil
}

func (c *fakeS3Client) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	client := newFakeS3Client()
	backend := NewS3Backend(client, "bucket", WithS3Prefix("sessions/"))
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		data, err := backend.Load(ctx, "k")
		if err != nil || data != nil {
			t.Fatalf("Load(missing) = %q, %v; want nil, nil", data, err)
		}
	})

	t.Run("SaveLoad", func(t *testing.T) {
		if err := backend.Save(ctx, "k", []byte(`{"a":1}`), time.Time{}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		put := client.puts[len(client.puts)-1]
		if aws.ToString(put.Key) != "sessions/k" {
			t.Errorf("object key = %q", aws.ToString(put.Key))
		}
		if aws.ToString(put.ContentType) != "application/json" {
			t.Errorf("content type = %q", aws.ToString(put.ContentType))
		}
		if put.Metadata != nil {
			t.Errorf("metadata without expiry = %v, want nil", put.Metadata)
		}

		data, err := backend.Load(ctx, "k")
		if err != nil || string(data) != `{"a":1}` {
			t.Errorf("Load = %q, %v", data, err)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		expiresAt := time.Now().Add(time.Hour)
		if err := backend.Save(ctx, "ttl", []byte("v"), expiresAt); err != nil {
			t.Fatal(err)
		}
		put := client.puts[len(client.puts)-1]
		if got := put.Metadata[expiresAtMetadataKey]; got != strconv.FormatInt(expiresAt.UnixMilli(), 10) {
			t.Errorf("expiry metadata = %q", got)
		}
		if data, _ := backend.Load(ctx, "ttl"); string(data) != "v" {
			t.Errorf("Load(unexpired) = %q", data)
		}

		if err := backend.Save(ctx, "old", []byte("v"), time.Now().Add(-time.Minute)); err != nil {
			t.Fatal(err)
		}
		if data, err := backend.Load(ctx, "old"); err != nil || data != nil {
			t.Errorf("Load(expired) = %q, %v; want nil, nil", data, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := backend.Delete(ctx, "k"); err != nil {
			t.Fatal(err)
		}
		if data, _ := backend.Load(ctx, "k"); data != nil {
			t.Error("Load after Delete returned data")
		}
	})

	t.Run("LoadError", func(t *testing.T) {
		client.getErr = errors.New("access denied")
		defer func() { client.getErr = nil }()
		if _, err := backend.Load(ctx, "k"); err == nil {
			t.Error("Load should surface non-404 errors")
		}
	})
}

func TestS3NotFound(t *testing.T) {
	if !isS3NotFound(&types.NoSuchKey{}) {
		t.Error("NoSuchKey should be not-found")
	}
	if !isS3NotFound(&types.NotFound{}) {
		t.Error("NotFound should be not-found")
	}
	if isS3NotFound(errors.New("boom")) {
		t.Error("generic error should not be not-found")
	}
}

func TestS3BackendClosed(t *testing.T) {
	backend := NewS3Backend(newFakeS3Client(), "bucket")
	backend.Close()

	ctx := context.Background()
	if err := backend.Save(ctx, "k", nil, time.Time{}); err != (ErrBackendClosed{}) {
		t.Errorf("Save after Close = %v", err)
	}
	if _, err := backend.Load(ctx, "k"); err != (ErrBackendClosed{}) {
		t.Errorf("Load after Close = %v", err)
	}
	if err := backend.Delete(ctx, "k"); err != (ErrBackendClosed{}) {
		t.Errorf("Delete after Close = %v", err)
	}
}
