package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store wraps the object storage used for disposal certificates,
// photographic evidence and product documents. A nil *minio.Client is
// tolerated so the service can run without storage configured.
type Store struct {
	client *minio.Client
	bucket string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return &Store{}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Configured reports whether an object store backend is wired.
func (s *Store) Configured() bool {
	return s != nil && s.client != nil
}

// Put uploads an object under a namespaced key and returns the key.
// Keys look like <orgID>/<kind>/2026/08/<uuid>_<filename>.
func (s *Store) Put(ctx context.Context, orgID, kind, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("storage not configured")
	}
	now := time.Now()
	key := fmt.Sprintf("%s/%s/%d/%02d/%s_%s",
		orgID, kind, now.Year(), now.Month(), uuid.New().String()[:8], filepath.Base(filename))
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return key, nil
}

// PresignedURL returns a time-limited download link for a stored object.
func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("storage not configured")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
