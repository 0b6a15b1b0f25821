package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "pricebot"

var (
	// ListingsScraped counts listings extracted per source
	ListingsScraped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_listings_scraped_total",
			Help: "Total number of listings extracted from source pages",
		},
		[]string{"source"},
	)

	// ListingsSkipped counts product cards dropped for a missing field
	ListingsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_listings_skipped_total",
			Help: "Total number of product cards skipped during extraction",
		},
		[]string{"source"},
	)

	// CategoryFailures counts category pages that could not be fetched or parsed
	CategoryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_category_failures_total",
			Help: "Total number of category pages that failed to fetch",
		},
		[]string{"source"},
	)

	// UpsertResults counts row upserts by outcome
	UpsertResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_upserts_total",
			Help: "Total number of product upserts by result",
		},
		[]string{"result"},
	)

	// ScrapeDuration records full scrape runs
	ScrapeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_scrape_duration_seconds",
			Help:    "Duration of full scrape runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// BasketOperations counts basket mutations
	BasketOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_basket_operations_total",
			Help: "Total number of basket operations",
		},
		[]string{"operation"},
	)
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
