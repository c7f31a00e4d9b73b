// Package storage keeps screenshots and reports in an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/domain"
)

// DefaultExpiry is how long presigned links stay valid.
const DefaultExpiry = 24 * time.Hour

// Store wraps the MinIO client. It satisfies pages.ArtifactStore and
// report.Uploader.
type Store struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// New creates a store for cfg. It does not contact the server.
func New(cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// URI returns the s3:// address of key.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return domain.ErrExternalAPI("s3", fmt.Errorf("checking bucket existence: %w", err))
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return domain.ErrExternalAPI("s3", fmt.Errorf("creating bucket: %w", err))
		}
		s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	}

	return nil
}

// Upload stores data under key and returns its s3:// URI.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentType(key)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", domain.ErrExternalAPI("s3", fmt.Errorf("uploading %s: %w", key, err))
	}

	s.logger.Debug("artifact uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType))
	return s.URI(key), nil
}

// UploadFile uploads the local file at p under key.
func (s *Store) UploadFile(ctx context.Context, key, p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", domain.ErrIO("reading", p, err)
	}
	return s.Upload(ctx, key, data, ContentType(p))
}

// Download fetches the object stored under key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.ErrExternalAPI("s3", fmt.Errorf("getting %s: %w", key, err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, domain.ErrNotFound("object", key)
		}
		return nil, domain.ErrExternalAPI("s3", fmt.Errorf("reading %s: %w", key, err))
	}
	return data, nil
}

// Delete removes the object stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return domain.ErrExternalAPI("s3", fmt.Errorf("deleting %s: %w", key, err))
	}
	return nil
}

// PresignedURL returns a time limited download link for key. A zero expiry
// means DefaultExpiry.
func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("generating presigned URL: %w", err)
	}
	return u.String(), nil
}

// List returns the keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, domain.ErrExternalAPI("s3", fmt.Errorf("listing %s: %w", prefix, object.Err))
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}

// Key joins a prefix and a file name into an object key.
func Key(prefix, name string) string {
	return strings.TrimPrefix(path.Join(prefix, filepath.Base(name)), "/")
}

// ContentType guesses the MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
