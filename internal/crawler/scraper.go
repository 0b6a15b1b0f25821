package crawler

import (
	"context"
	"sync"
	"time"

	"sjsage522/pricebot/internal/classifier"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
)

// Scraper fans out over adapters and turns raw listings into products
type Scraper struct {
	adapters   []Adapter
	classifier *classifier.Classifier
}

// NewScraper creates a scraper over the given adapters
func NewScraper(adapters []Adapter, cls *classifier.Classifier) *Scraper {
	if cls == nil {
		cls = classifier.New()
	}
	return &Scraper{adapters: adapters, classifier: cls}
}

// Adapters returns the scraper's adapters
func (s *Scraper) Adapters() []Adapter {
	return s.adapters
}

// Run scrapes every adapter for one region. Failed categories contribute
// nothing; the run itself never fails.
func (s *Scraper) Run(ctx context.Context, region string) []product.Product {
	jobs := make([]job, 0, len(s.adapters))
	for _, a := range s.adapters {
		jobs = append(jobs, job{adapter: a, region: region})
	}
	return s.runJobs(ctx, jobs)
}

// RunAll scrapes region-aware adapters once per region and region-invariant
// adapters once in total.
func (s *Scraper) RunAll(ctx context.Context, regions []string) []product.Product {
	start := time.Now()
	defer func() {
		metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	}()

	var jobs []job
	for _, a := range s.adapters {
		if !a.RegionAware() {
			jobs = append(jobs, job{adapter: a})
			continue
		}
		for _, region := range regions {
			jobs = append(jobs, job{adapter: a, region: region})
		}
	}

	products := s.runJobs(ctx, jobs)
	logger.ForWorker().Info().
		Int("products", len(products)).
		Strs("regions", regions).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape finished")
	return products
}

type job struct {
	adapter Adapter
	region  string
}

// runJobs runs each job in its own goroutine and concatenates the results
// in job order.
func (s *Scraper) runJobs(ctx context.Context, jobs []job) []product.Product {
	results := make([][]product.Product, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			results[i] = s.scrapeAdapter(ctx, j.adapter, j.region)
		}(i, j)
	}
	wg.Wait()

	var products []product.Product
	for _, r := range results {
		products = append(products, r...)
	}
	return products
}

// scrapeAdapter walks the adapter's categories one after another
func (s *Scraper) scrapeAdapter(ctx context.Context, a Adapter, region string) []product.Product {
	src := a.Source()
	log := logger.ForAdapter(string(src))

	var products []product.Product
	for _, category := range a.Categories() {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Scrape cancelled")
			break
		}

		listings, err := a.Fetch(ctx, category, region)
		if err != nil {
			metrics.CategoryFailures.WithLabelValues(string(src)).Inc()
			log.WithError(err).Error().
				Str("category", category.Category).
				Str("region", region).
				Msg("Category failed, continuing")
			continue
		}

		start := len(products)
		for _, raw := range listings {
			products = append(products, product.Normalize(raw, category.Category, s.classifier.Classify(raw.Name), src))
		}
		if logger.IsDebugEnabled() {
			log.Debug().
				Str("category", category.Category).
				Str("region", region).
				Int("listings", len(listings)).
				Strs("subcategories", subcategories(products[start:])).
				Msg("Category scraped")
		}
	}
	return products
}

// subcategories lists the distinct labels in first-seen order
func subcategories(products []product.Product) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		if !seen[p.Subcategory] {
			seen[p.Subcategory] = true
			out = append(out, p.Subcategory)
		}
	}
	return out
}
