package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/pricebot/internal/catalog"
	"sjsage522/pricebot/internal/crawler"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/services/publisher"
)

var (
	// ErrNotAdmin is returned when a non-admin user triggers a scrape
	ErrNotAdmin = errors.New("only the admin can trigger a scrape")
	// ErrScrapeInProgress is returned when a scrape is already running
	ErrScrapeInProgress = errors.New("scrape already in progress")
)

// Triggers recorded in scrape summaries
const (
	TriggerSchedule = "schedule"
	TriggerAdmin    = "admin"
)

// Options configure a Worker
type Options struct {
	Regions       []string
	CrawlInterval time.Duration
	AdminID       int64
}

// Worker handles the scrape, upsert and publish cycle
type Worker struct {
	scraper   *crawler.Scraper
	repo      store.Repository
	labels    *catalog.Labels
	publisher publisher.Publisher
	opts      Options

	running sync.Mutex
}

// NewWorker creates a new worker. labels and pub may be nil.
func NewWorker(
	scraper *crawler.Scraper,
	repo store.Repository,
	labels *catalog.Labels,
	pub publisher.Publisher,
	opts Options,
) *Worker {
	return &Worker{
		scraper:   scraper,
		repo:      repo,
		labels:    labels,
		publisher: pub,
		opts:      opts,
	}
}

// Start runs a scrape immediately and then every CrawlInterval until ctx ends
func (w *Worker) Start(ctx context.Context) {
	log := logger.ForWorker()
	for {
		if _, err := w.RunOnce(ctx, TriggerSchedule); err != nil {
			logger.LogError("worker", err, "Scheduled scrape failed, next attempt in %s", w.opts.CrawlInterval)
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Worker stopped")
			return
		case <-time.After(w.opts.CrawlInterval):
		}
	}
}

// Trigger runs a full scrape on behalf of userID, who must be the admin
func (w *Worker) Trigger(ctx context.Context, userID int64) (publisher.ScrapeSummary, error) {
	if userID != w.opts.AdminID {
		logger.ForWorker().Warn().Int64("user", userID).Msg("Rejected scrape trigger")
		return publisher.ScrapeSummary{}, ErrNotAdmin
	}
	return w.RunOnce(ctx, TriggerAdmin)
}

// RunOnce scrapes every region, upserts the result, reloads the label maps
// and announces the run. Only an unreachable store fails the run.
func (w *Worker) RunOnce(ctx context.Context, trigger string) (publisher.ScrapeSummary, error) {
	if !w.running.TryLock() {
		return publisher.ScrapeSummary{}, ErrScrapeInProgress
	}
	defer w.running.Unlock()

	log := logger.ForWorker().WithField("trigger", trigger)
	summary := publisher.ScrapeSummary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
		Regions:   w.opts.Regions,
		PerSource: make(map[string]int),
	}

	products := w.scraper.RunAll(ctx, w.opts.Regions)
	summary.Products = len(products)
	for _, p := range products {
		summary.PerSource[string(p.Source)]++
	}

	res, err := w.repo.UpsertAll(ctx, products)
	summary.Upserted, summary.Failed = res.Upserted, res.Failed
	if err != nil {
		log.Error().Err(err).Int("upserted", res.Upserted).Msg("Store unreachable during upsert")
		return summary, err
	}

	if w.labels != nil {
		if err := w.labels.Reload(ctx); err != nil {
			logger.LogError("worker", err, "Failed to reload label maps after %s scrape", trigger)
		}
	}

	summary.FinishedAt = time.Now()
	log.Info().
		Str("run_id", summary.RunID).
		Int("products", summary.Products).
		Int("upserted", summary.Upserted).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("Scrape run complete")

	w.publish(ctx, summary, products)
	return summary, nil
}

// publish announces the run and the scraped products per source
func (w *Worker) publish(ctx context.Context, summary publisher.ScrapeSummary, products []product.Product) {
	if w.publisher == nil {
		return
	}
	log := logger.ForPublisher()

	bySource := make(map[product.Source][]product.Product)
	for _, p := range products {
		bySource[p.Source] = append(bySource[p.Source], p)
	}
	for src, batch := range bySource {
		data, err := json.Marshal(batch)
		if err != nil {
			log.Error().Err(err).Str("source", string(src)).Msg("Failed to encode products")
			continue
		}
		if err := w.publisher.Publish(ctx, publisher.KeyProducts, data); err != nil {
			log.Error().Err(err).Str("source", string(src)).Msg("Failed to publish products")
		}
	}

	data, err := json.Marshal(summary)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode summary")
		return
	}
	if err := w.publisher.Publish(ctx, publisher.KeySummary, data); err != nil {
		log.Error().Err(err).Msg("Failed to publish summary")
	}

	// Trim all streams after publishing
	if err := w.publisher.TrimStreams(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to trim streams")
	}
}
