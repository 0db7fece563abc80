package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"companion/pkg/persona"
)

// TurnCache holds the most recent turns of each (user, persona) conversation,
// newest first, capped at size.
type TurnCache struct {
	cache *Cache
	size  int
	ttl   time.Duration
}

func NewTurnCache(c *Cache, size int, ttl time.Duration) *TurnCache {
	if size <= 0 {
		size = 50
	}
	if ttl <= 0 {
		ttl = RecentTurnsTTL
	}
	return &TurnCache{cache: c, size: size, ttl: ttl}
}

func (t *TurnCache) Size() int {
	return t.size
}

func (t *TurnCache) key(userID, personaID string) string {
	return t.cache.Key("turns", userID, personaID)
}

func (t *TurnCache) versionKey(userID, personaID string) string {
	return t.cache.Key("turns", userID, personaID, "version")
}

// Push adds a turn to a window that is already cached. A missing window is
// left missing so a partial list never masquerades as the full history.
// Every push moves the pair's version, cached or not.
func (t *TurnCache) Push(ctx context.Context, turn persona.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	_, err = t.cache.PushCapped(ctx, t.versionKey(turn.UserID, turn.PersonaID), t.key(turn.UserID, turn.PersonaID), string(data), int64(t.size), t.ttl)
	return err
}

// Version must be read before loading the turns handed to Fill.
func (t *TurnCache) Version(ctx context.Context, userID, personaID string) (int64, error) {
	return t.cache.Version(ctx, t.versionKey(userID, personaID))
}

// Fill replaces the window with turns given oldest first, unless a turn was
// pushed after version was read. A skipped fill leaves the window as it was;
// ok reports whether the write happened.
func (t *TurnCache) Fill(ctx context.Context, userID, personaID string, version int64, turns []persona.Turn) (bool, error) {
	if len(turns) > t.size {
		turns = turns[len(turns)-t.size:]
	}
	values := make([]string, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return false, fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, string(data))
	}
	return t.cache.ReplaceList(ctx, t.versionKey(userID, personaID), version, t.key(userID, personaID), values, t.ttl)
}

// Recent returns up to limit cached turns, oldest first. ok is false when
// nothing is cached for the pair.
func (t *TurnCache) Recent(ctx context.Context, userID, personaID string, limit int) ([]persona.Turn, bool, error) {
	if limit <= 0 {
		return nil, true, nil
	}
	raw, err := t.cache.LRange(ctx, t.key(userID, personaID), 0, int64(limit-1))
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	// A turn stored just before a fill can also arrive by push
	seen := make(map[int64]bool, len(raw))
	turns := make([]persona.Turn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var turn persona.Turn
		if err := json.Unmarshal([]byte(raw[i]), &turn); err != nil {
			log.Printf("Skipping corrupt cached turn for %s/%s: %v", userID, personaID, err)
			continue
		}
		if seen[turn.Seq] {
			continue
		}
		seen[turn.Seq] = true
		turns = append(turns, turn)
	}
	return turns, true, nil
}

func (t *TurnCache) Invalidate(ctx context.Context, userID, personaID string) error {
	return t.cache.Reset(ctx, t.versionKey(userID, personaID), t.key(userID, personaID), t.ttl)
}
