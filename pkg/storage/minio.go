package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"companion/pkg/media"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"` // CDN or bucket base URL
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// MinioStore publishes objects to any S3-compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload writes the object unless it already exists. The existence check and
// a conditional put both map "already there" to UploadDuplicate.
func (s *MinioStore) Upload(ctx context.Context, path string, data []byte, contentType string) (media.UploadOutcome, error) {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return media.UploadDuplicate, nil
	}
	if !isNotFound(err) {
		return 0, fmt.Errorf("stat object: %w", err)
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	}
	opts.SetMatchETagExcept("*")

	_, err = s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		if isDuplicate(err) {
			return media.UploadDuplicate, nil
		}
		return 0, fmt.Errorf("put object: %w", err)
	}
	return media.UploadCreated, nil
}

func (s *MinioStore) PublicURL(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty object path")
	}
	return s.baseURL + "/" + escapePath(path), nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// isDuplicate reports a lost race on the conditional put.
func isDuplicate(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed
}
