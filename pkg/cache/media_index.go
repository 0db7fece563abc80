package cache

import (
	"context"
	"time"
)

// MediaIndex remembers published media paths so a repeat ingestion can skip
// the upload round trip.
type MediaIndex struct {
	cache *Cache
	ttl   time.Duration
}

func NewMediaIndex(c *Cache, ttl time.Duration) *MediaIndex {
	if ttl <= 0 {
		ttl = MediaIndexTTL
	}
	return &MediaIndex{cache: c, ttl: ttl}
}

func (m *MediaIndex) key(path string) string {
	return m.cache.Key("media", path)
}

func (m *MediaIndex) Lookup(ctx context.Context, path string) (string, bool, error) {
	publicURL, err := m.cache.Get(ctx, m.key(path))
	if IsMiss(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return publicURL, true, nil
}

// Remember keeps the first URL recorded for a path.
func (m *MediaIndex) Remember(ctx context.Context, path, publicURL string) error {
	_, err := m.cache.SetNX(ctx, m.key(path), publicURL, m.ttl)
	return err
}
