package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/pricebot/helpers"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	pkgerrors "sjsage522/pricebot/pkg/errors"
	"sjsage522/pricebot/services/cache"
)

// PageFetcher retrieves the HTML of one page
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (io.Reader, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests are abandoned after timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: helpers.NewClient(timeout)}
}

// FetchPage implements PageFetcher
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) (io.Reader, error) {
	return helpers.FetchWithRandomHeaders(ctx, f.Client, url)
}

// BaseAdapter provides common fetch plumbing for all adapters
type BaseAdapter struct {
	Src       product.Source
	BaseURL   string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Timeout   time.Duration
	Limiter   *rate.Limiter
	Fetcher   PageFetcher
}

// fetchWithCache fetches a URL honoring the rate-limit block and pacing
func (c *BaseAdapter) fetchWithCache(ctx context.Context, url string) (io.Reader, error) {
	if c.CacheSvc != nil && c.CacheKey != "" {
		if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, pkgerrors.NewRateLimit(string(c.Src), c.BlockTime)
		}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, pkgerrors.NewNetwork(string(c.Src), "request pacing aborted", err)
		}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := c.Fetcher.FetchPage(ctx, url)
	if err != nil {
		if c.CacheSvc != nil && c.CacheKey != "" && strings.HasPrefix(err.Error(), "rate limited") {
			if cacheErr := c.CacheSvc.Set(c.CacheKey, []byte(fmt.Sprintf("%d", c.BlockTime/time.Second)), c.BlockTime); cacheErr != nil {
				logger.ForCache().Warn().Err(cacheErr).Str("key", c.CacheKey).Msg("Failed to set rate-limit block")
			}
		}
		return nil, pkgerrors.NewNetwork(string(c.Src), "fetch "+url, err)
	}

	return body, nil
}

// createDocument creates a goquery document from a reader
func (c *BaseAdapter) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, pkgerrors.NewParsing(string(c.Src), "html parse", err)
	}
	return doc, nil
}

// processListings extracts cards in parallel goroutines, keeping page order.
// A card whose processor returns an error is dropped.
func (c *BaseAdapter) processListings(selections *goquery.Selection, processor func(*goquery.Selection) (*product.RawListing, error), onSkip func(error)) []product.RawListing {
	results := make([]*product.RawListing, selections.Length())
	errs := make([]error, selections.Length())
	var wg sync.WaitGroup

	selections.Each(func(i int, s *goquery.Selection) {
		wg.Add(1)
		go func(i int, s *goquery.Selection) {
			defer wg.Done()
			results[i], errs[i] = processor(s)
		}(i, s)
	})

	wg.Wait()

	var listings []product.RawListing
	for i, listing := range results {
		if errs[i] != nil {
			onSkip(errs[i])
			continue
		}
		if listing != nil {
			listings = append(listings, *listing)
		}
	}
	return listings
}

// ResolveURL resolves a site-relative link against the adapter's base URL
func (c *BaseAdapter) ResolveURL(link string) string {
	return helpers.ResolveURL(c.BaseURL, link)
}

// Source returns the adapter's origin tag
func (c *BaseAdapter) Source() product.Source {
	return c.Src
}
