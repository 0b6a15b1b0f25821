package publisher

import (
	"context"
	"time"
)

// Message keys written into stream entries
const (
	KeySummary  = "b64_summary"
	KeyProducts = "b64_products"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// ScrapeSummary announces a finished scrape run
type ScrapeSummary struct {
	RunID      string         `json:"run_id"`
	Trigger    string         `json:"trigger"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Regions    []string       `json:"regions"`
	Products   int            `json:"products"`
	Upserted   int            `json:"upserted"`
	Failed     int            `json:"failed"`
	PerSource  map[string]int `json:"per_source"`
}
