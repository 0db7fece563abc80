package store

import (
	"context"
	"log"

	"companion/pkg/cache"
	"companion/pkg/persona"
)

// CachedStore serves personas and the recent-turn window from Redis and falls
// through to the wrapped store for everything else. Cache failures never fail
// a call.
type CachedStore struct {
	Store
	turns    *cache.TurnCache
	personas *cache.PersonaCache
}

// NewCachedStore wraps store. A nil personas cache leaves persona reads
// uncached.
func NewCachedStore(store Store, turns *cache.TurnCache, personas *cache.PersonaCache) *CachedStore {
	return &CachedStore{Store: store, turns: turns, personas: personas}
}

func (c *CachedStore) SavePersona(ctx context.Context, p persona.Persona) error {
	if err := c.Store.SavePersona(ctx, p); err != nil {
		return err
	}
	if c.personas != nil {
		if err := c.personas.Forget(ctx, p.ID); err != nil {
			log.Printf("Error evicting cached persona %s: %v", p.ID, err)
		}
	}
	return nil
}

func (c *CachedStore) GetPersona(ctx context.Context, id string) (*persona.Persona, error) {
	if c.personas == nil {
		return c.Store.GetPersona(ctx, id)
	}
	cached, ok, err := c.personas.Get(ctx, id)
	if err != nil {
		log.Printf("Error reading cached persona %s: %v", id, err)
	} else if ok {
		return cached, nil
	}

	p, err := c.Store.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.personas.Put(ctx, *p); err != nil {
		log.Printf("Error caching persona %s: %v", id, err)
	}
	return p, nil
}

func (c *CachedStore) AppendTurn(ctx context.Context, turn persona.Turn) (persona.Turn, error) {
	stored, err := c.Store.AppendTurn(ctx, turn)
	if err != nil {
		return persona.Turn{}, err
	}
	if err := c.turns.Push(ctx, stored); err != nil {
		log.Printf("Error caching turn for %s/%s: %v", stored.UserID, stored.PersonaID, err)
		c.invalidate(ctx, stored.UserID, stored.PersonaID)
	}
	return stored, nil
}

func (c *CachedStore) RecentTurns(ctx context.Context, userID, personaID string, limit int) ([]persona.Turn, error) {
	if limit <= 0 {
		return []persona.Turn{}, nil
	}
	// Requests wider than the cached window always go to the store
	if limit > c.turns.Size() {
		return c.Store.RecentTurns(ctx, userID, personaID, limit)
	}

	cached, ok, err := c.turns.Recent(ctx, userID, personaID, limit)
	if err != nil {
		log.Printf("Error reading cached turns for %s/%s: %v", userID, personaID, err)
	} else if ok {
		sortTurns(cached)
		return cached, nil
	}

	// The version is taken before the store read; a turn appended in between
	// moves it and the fill is dropped.
	version, versionErr := c.turns.Version(ctx, userID, personaID)
	if versionErr != nil {
		log.Printf("Error reading turn cache version for %s/%s: %v", userID, personaID, versionErr)
	}

	window, err := c.Store.RecentTurns(ctx, userID, personaID, c.turns.Size())
	if err != nil {
		return nil, err
	}
	if versionErr == nil {
		filled, err := c.turns.Fill(ctx, userID, personaID, version, window)
		if err != nil {
			log.Printf("Error filling turn cache for %s/%s: %v", userID, personaID, err)
		} else if !filled {
			log.Printf("Turn cache for %s/%s moved during fill, leaving it to the next read", userID, personaID)
		}
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window, nil
}

func (c *CachedStore) invalidate(ctx context.Context, userID, personaID string) {
	if err := c.turns.Invalidate(ctx, userID, personaID); err != nil {
		log.Printf("Error invalidating turn cache for %s/%s: %v", userID, personaID, err)
	}
}
