package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sjsage522/pricebot/config"
	"sjsage522/pricebot/internal/basket"
	"sjsage522/pricebot/internal/catalog"
	"sjsage522/pricebot/internal/classifier"
	"sjsage522/pricebot/internal/crawler"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/services/cache"
	"sjsage522/pricebot/services/publisher"
	"sjsage522/pricebot/services/worker"
)

// App holds every initialized service the UI layer calls into
type App struct {
	Store     store.Repository
	Cache     cache.CacheService
	Redis     *redis.Client
	Publisher publisher.Publisher
	Labels    *catalog.Labels
	Catalog   *catalog.Engine
	Basket    *basket.Service
	Scraper   *crawler.Scraper
	Worker    *worker.Worker
}

// Cleanup closes every connection the app opened
func (a *App) Cleanup() {
	if a.Publisher != nil {
		// closes the shared redis client as well
		a.Publisher.Close()
	} else if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// NewApp initializes all required services
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = repo

	app.Cache = openCache(cfg)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, publishing disabled")
			client.Close()
		} else {
			app.Redis = client
			app.Publisher = publisher.NewRedisPublisher(client, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	var basketRepo basket.Repository = basket.NewMemoryRepository()
	if cfg.BasketBackend == "redis" {
		if app.Redis == nil {
			app.Cleanup()
			return nil, fmt.Errorf("basket backend redis requires a reachable REDIS_ADDR")
		}
		basketRepo = basket.NewRedisRepository(app.Redis, 0)
	}

	app.Labels = catalog.NewLabels(repo, product.AllSources)
	if err := app.Labels.Reload(ctx); err != nil {
		logger.ForStore().Warn().Err(err).Msg("Initial label load failed")
	}
	app.Catalog = catalog.NewEngine(repo, product.AllSources, cfg.CompareCap, cfg.ListLimit)
	app.Basket = basket.NewService(basketRepo, repo, basket.Options{
		OrderBaseURL:  cfg.OrderBaseURL,
		Regions:       cfg.Regions,
		DefaultRegion: cfg.DefaultRegion,
	})

	adapters := crawler.CreateAdapters(cfg, app.Cache)
	app.Scraper = crawler.NewScraper(adapters, classifier.New())
	app.Worker = worker.NewWorker(app.Scraper, repo, app.Labels, app.Publisher, worker.Options{
		Regions:       cfg.Regions,
		CrawlInterval: cfg.CrawlInterval,
		AdminID:       cfg.AdminID,
	})

	logger.Info("Created %d adapters", len(adapters))
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.StoreDriver == "memory" {
		logger.ForStore().Warn().Msg("Using in-memory store; products are lost on restart")
		return store.NewMemory(), nil
	}

	pg, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func openCache(cfg *config.Config) cache.CacheService {
	if cfg.MemcacheAddr == "" {
		return cache.NewMemoryService()
	}
	mc := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := mc.Ping(); err != nil {
		logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, using in-process block cache")
		return cache.NewMemoryService()
	}
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	return mc
}
