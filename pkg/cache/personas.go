package cache

import (
	"context"
	"time"

	"companion/pkg/persona"
)

// PersonaCache keeps persona records close to the engine. Every turn loads
// the persona, and personas change rarely.
type PersonaCache struct {
	cache *Cache
	ttl   time.Duration
}

func NewPersonaCache(c *Cache, ttl time.Duration) *PersonaCache {
	if ttl <= 0 {
		ttl = PersonaTTL
	}
	return &PersonaCache{cache: c, ttl: ttl}
}

func (p *PersonaCache) key(id string) string {
	return p.cache.Key("persona", id)
}

// Get returns the cached persona. ok is false on a miss.
func (p *PersonaCache) Get(ctx context.Context, id string) (*persona.Persona, bool, error) {
	var out persona.Persona
	if err := p.cache.GetJSON(ctx, p.key(id), &out); err != nil {
		if IsMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &out, true, nil
}

func (p *PersonaCache) Put(ctx context.Context, record persona.Persona) error {
	return p.cache.SetJSON(ctx, p.key(record.ID), record, p.ttl)
}

func (p *PersonaCache) Forget(ctx context.Context, id string) error {
	return p.cache.Delete(ctx, p.key(id))
}
