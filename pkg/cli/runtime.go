package cli

import (
	"context"
	"fmt"
	"log"

	"companion/pkg/archetype"
	"companion/pkg/cache"
	"companion/pkg/config"
	"companion/pkg/engine"
	"companion/pkg/llm"
	"companion/pkg/media"
	"companion/pkg/prompt"
	"companion/pkg/storage"
	"companion/pkg/store"
	"companion/pkg/surreal"
)

// Runtime holds the wired collaborators for one CLI invocation.
type Runtime struct {
	Config     *config.Config
	Archetypes *archetype.Registry
	Prompts    *prompt.CachedAssembler
	Store      store.Store
	Ingester   *media.Ingester
	Engine     *engine.Engine

	closers []func()
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newObjectStore(cfg *config.Config) (media.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return storage.NewMinioStore(cfg.Storage.Minio)
	default:
		return storage.NewFSStore(cfg.Storage.FS.Root, cfg.Storage.FS.PublicURL)
	}
}

func newIngester(cfg *config.Config, index media.Index) (*media.Ingester, error) {
	objects, err := newObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	return media.NewIngester(objects, index, media.Options{
		FetchTimeout:  cfg.Media.FetchTimeout,
		UploadTimeout: cfg.Media.UploadTimeout,
		MaxBytes:      cfg.Media.MaxBytes,
		AllowLocalIPs: cfg.Media.AllowLocalIPs,
		PathPrefix:    cfg.Media.PathPrefix,
	}), nil
}

// Build connects everything the config asks for. Redis and SurrealDB are
// optional; without them state lives in process memory.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	reg, err := archetype.LoadWithOverrides(cfg.Archetypes.OverrideDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load archetypes: %w", err)
	}
	rt.Archetypes = reg
	rt.Prompts = prompt.NewCachedAssembler(prompt.NewAssembler(cfg.Prompt), cfg.PromptCacheSize)

	var st store.Store
	if cfg.Surreal.Host != "" {
		host := surreal.NormalizeHost(cfg.Surreal.Host)
		log.Printf("Connecting to SurrealDB at %s (NS: %s, DB: %s)", host, cfg.Surreal.Namespace, cfg.Surreal.Database)
		client, err := surreal.NewClient(ctx, host, cfg.Surreal.User, cfg.Surreal.Pass, cfg.Surreal.Namespace, cfg.Surreal.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)

		surrealStore := store.NewSurrealStore(client)
		if err := surrealStore.Init(ctx); err != nil {
			// Schema may already exist with stricter definitions; keep going
			log.Printf("Warning: Failed to initialize SurrealDB schema: %v", err)
		}
		st = surrealStore
	} else {
		log.Println("SURREAL_DB_HOST not set, keeping state in memory")
		st = store.NewMemoryStore()
	}

	var index media.Index
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { redisCache.Close() })
		st = store.NewCachedStore(st,
			cache.NewTurnCache(redisCache, cfg.Redis.TurnWindow, cfg.Redis.TurnTTL),
			cache.NewPersonaCache(redisCache, cfg.Redis.PersonaTTL))
		index = cache.NewMediaIndex(redisCache, cfg.Redis.MediaTTL)
		log.Println("Redis cache enabled for personas, turns and media index")
	}
	rt.Store = st

	ingester, err := newIngester(cfg, index)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Ingester = ingester

	llmClient := llm.NewClient(cfg.LLMKeys, cfg.LLM)
	rt.Engine = engine.New(reg, rt.Prompts, st, llmClient, llmClient, ingester, engine.Options{
		MaxTurns: cfg.Conversation.MaxTurns,
	})
	return rt, nil
}
