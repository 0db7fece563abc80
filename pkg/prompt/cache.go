package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"companion/pkg/affection"
	"companion/pkg/archetype"
	"companion/pkg/persona"
)

// CachedAssembler wraps an Assembler with an in-memory LRU of assembled
// prompts. The prefix only changes when persona, tier or mood change, so
// most turns are hits.
type CachedAssembler struct {
	assembler *Assembler
	cache     map[string]string
	order     []string // For LRU eviction
	maxSize   int
	mu        sync.Mutex
	hits      int
	misses    int
}

func NewCachedAssembler(assembler *Assembler, maxSize int) *CachedAssembler {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &CachedAssembler{
		assembler: assembler,
		cache:     make(map[string]string),
		order:     make([]string, 0, maxSize),
		maxSize:   maxSize,
	}
}

type cacheKey struct {
	Persona   persona.Persona
	Archetype archetype.Archetype
	Tier      affection.Tier
	Mood      affection.Mood
}

func hashInputs(p persona.Persona, arch archetype.Archetype, res affection.Resolution, mood affection.Mood) string {
	// Directive and explicitness are functions of the tier. cacheKey holds
	// only strings, ints, bools and string slices, so Marshal cannot fail.
	data, _ := json.Marshal(cacheKey{Persona: p, Archetype: arch, Tier: res.Tier, Mood: mood})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Assemble returns the cached prompt or builds and stores it.
func (c *CachedAssembler) Assemble(p persona.Persona, arch archetype.Archetype, res affection.Resolution, mood affection.Mood) string {
	key := hashInputs(p, arch, res, mood)

	c.mu.Lock()
	if text, ok := c.cache[key]; ok {
		c.hits++
		c.moveToEnd(key)
		c.mu.Unlock()
		return text
	}
	c.mu.Unlock()

	text := c.assembler.Assemble(p, arch, res, mood)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if _, ok := c.cache[key]; !ok {
		c.set(key, text)
	}
	return text
}

func (c *CachedAssembler) set(key, text string) {
	if len(c.cache) >= c.maxSize {
		oldest := c.order[0]
		delete(c.cache, oldest)
		c.order = c.order[1:]
	}
	c.cache[key] = text
	c.order = append(c.order, key)
}

func (c *CachedAssembler) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// Stats returns cache hit/miss statistics
func (c *CachedAssembler) Stats() (hits, misses, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.cache)
}

// Clear empties the cache
func (c *CachedAssembler) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]string)
	c.order = make([]string, 0, c.maxSize)
}
