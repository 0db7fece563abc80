package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"companion/pkg/media"
)

// FSStore keeps objects in a local directory. Creating with O_EXCL gives the
// same path-uniqueness guarantee as a bucket, so it is a drop-in for
// development.
type FSStore struct {
	root    string
	baseURL string
}

func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" || clean != "/"+path {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Upload(ctx context.Context, path string, data []byte, contentType string) (media.UploadOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create dir: %w", err)
	}

	// Write to a temp file first so a reader never sees a half-written object
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close object: %w", err)
	}

	// os.Link fails if the target exists, which is the duplicate signal
	if err := os.Link(tmp.Name(), full); err != nil {
		if errors.Is(err, os.ErrExist) {
			return media.UploadDuplicate, nil
		}
		return 0, fmt.Errorf("failed to publish object: %w", err)
	}
	return media.UploadCreated, nil
}

func (s *FSStore) PublicURL(path string) (string, error) {
	if _, err := s.resolve(path); err != nil {
		return "", err
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("no public base URL configured")
	}
	return s.baseURL + "/" + escapePath(path), nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
