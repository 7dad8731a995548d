// Package publish ships rendered reports to object storage and Google Sheets.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wpmu/internal/output"
	"wpmu/internal/report"
)

// ObjectConfig holds the S3-compatible storage settings.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key, e.g. "reports/network-a".
	Prefix string
	UseSSL bool
}

// ObjectAPI is the subset of *minio.Client used for uploads.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStore uploads rendered reports to a bucket.
type ObjectStore struct {
	client ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewObjectStore connects to the configured endpoint. The bucket must exist.
func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("object storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio client: %w", err)
	}
	return NewObjectStoreWithClient(ctx, client, cfg.Bucket, cfg.Prefix)
}

// NewObjectStoreWithClient wraps an existing client after checking the bucket.
func NewObjectStoreWithClient(ctx context.Context, client ObjectAPI, bucket, prefix string) (*ObjectStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	return &ObjectStore{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

// ObjectKey names an uploaded report: <prefix>/wpmu-<kind>-<timestamp>.<ext>.
func ObjectKey(prefix string, kind report.Kind, format output.Format, at time.Time) string {
	name := fmt.Sprintf("wpmu-%s-%s.%s", kind, at.UTC().Format("20060102-150405"), format.Extension())
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload stores data under a generated key and returns that key.
func (s *ObjectStore) Upload(ctx context.Context, kind report.Kind, format output.Format, data []byte) (string, error) {
	key := ObjectKey(s.prefix, kind, format, s.now())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: format.ContentType(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}
