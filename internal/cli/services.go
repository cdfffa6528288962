package cli

import (
	"context"

	"sjsage522/eventworker/config"
	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/cache"
	"sjsage522/eventworker/services/publisher"
	"sjsage522/eventworker/services/store"
)

// memorySeenKeys bounds the in-process seen cache used without memcached
const memorySeenKeys = 10000

// Services holds all the initialized services
type Services struct {
	Renderer  renderer.Renderer
	Store     store.Store
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			logger.LogError("store", err, "Failed to close store")
		}
	}
}

// newRenderer builds the configured renderer backend
func newRenderer(ctx context.Context, cfg *config.Config) renderer.Renderer {
	if cfg.Renderer == config.RendererHTTP {
		logger.ForRenderer().Info().Msg("Using static HTTP renderer")
		return renderer.NewHTTP()
	}

	b := renderer.NewBrowserless(cfg.BrowserlessAddr, cfg.BrowserlessToken)
	if err := b.Ping(ctx); err != nil {
		logger.ForRenderer().Warn().Err(err).Str("addr", cfg.BrowserlessAddr).Msg("Browserless is not reachable yet")
	} else {
		logger.ForRenderer().Info().Str("addr", cfg.BrowserlessAddr).Msg("Connected to browserless")
	}
	return b
}

// initializeServices initializes all required services. A dry run keeps
// records in memory and publishes nothing.
func initializeServices(ctx context.Context, cfg *config.Config, dryRun bool) (*Services, error) {
	services := &Services{
		Renderer:  newRenderer(ctx, cfg),
		Publisher: publisher.Nop{},
	}

	if dryRun {
		services.Store = store.NewMemoryStore()
		logger.ForStore().Info().Msg("Dry run: using in-memory store")
		return services, nil
	}

	s, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = store.NewCachedStore(s, newSeenCache(cfg))

	if cfg.PublishEnabled {
		p := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := p.Ping(ctx); err != nil {
			services.Cleanup()
			p.Close()
			return nil, errors.NewPublisher("", "connect to redis", err)
		}
		services.Publisher = p
		logger.ForPublisher().Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	return services, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	log := logger.ForStore()

	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Info().Msg("Using in-memory store")
		return store.NewMemoryStore(), nil
	case config.StoreRedis:
		s := store.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, errors.NewStore("", "connect to redis", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Using redis store")
		return s, nil
	default:
		s, err := store.NewSqliteStore(cfg.SqlitePath)
		if err != nil {
			return nil, errors.NewStore("", "open sqlite database", err)
		}
		log.Info().Str("path", cfg.SqlitePath).Msg("Using sqlite store")
		return s, nil
	}
}

// newSeenCache prefers memcached and falls back to an in-process cache,
// which still absorbs repeated keys within a run
func newSeenCache(cfg *config.Config) cache.SeenCache {
	log := logger.ForCache()

	if cfg.MemcacheAddr != "" {
		c := cache.NewMemcacheSeenCache(cfg.MemcacheAddr, cfg.RedisKeyPrefix+"seen:", cfg.SeenCacheTTL)
		if err := c.Ping(); err != nil {
			log.Warn().Err(errors.NewCache("", "connect to memcache", err)).Msg("Falling back to in-memory seen cache")
		} else {
			logger.LogInfo("cache", "Connected to Memcache at %s (ttl %s)", cfg.MemcacheAddr, cfg.SeenCacheTTL)
			return c
		}
	}
	return cache.NewMemorySeenCache(memorySeenKeys, cfg.SeenCacheTTL)
}

