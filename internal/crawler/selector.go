package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
	pkgerrors "sjsage522/pricebot/pkg/errors"
	"sjsage522/pricebot/services/cache"
)

// SelectorAdapter is an adapter configured with CSS selectors
type SelectorAdapter struct {
	BaseAdapter
	Selectors     Selectors
	CodeExtractor CodeExtractorFunc
	categories    []CategoryLink
}

// Options tune the fetch behavior shared by all adapters
type Options struct {
	Timeout           time.Duration
	BlockTime         time.Duration
	RequestsPerSecond float64
}

// NewSelectorAdapter creates an adapter that fetches pages with fetcher
func NewSelectorAdapter(config AdapterConfig, fetcher PageFetcher, cacheSvc cache.CacheService, opts Options) *SelectorAdapter {
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &SelectorAdapter{
		BaseAdapter: BaseAdapter{
			Src:       config.Source,
			BaseURL:   config.BaseURL,
			CacheKey:  config.CacheKey,
			CacheSvc:  cacheSvc,
			BlockTime: opts.BlockTime,
			Timeout:   opts.Timeout,
			Limiter:   limiter,
			Fetcher:   fetcher,
		},
		Selectors:     config.Selectors,
		CodeExtractor: config.CodeExtractor,
		categories:    config.Categories,
	}
}

// Categories implements Adapter
func (c *SelectorAdapter) Categories() []CategoryLink {
	return c.categories
}

// RegionAware implements Adapter
func (c *SelectorAdapter) RegionAware() bool {
	for _, cat := range c.categories {
		if cat.RegionAware() {
			return true
		}
	}
	return false
}

// Fetch implements Adapter
func (c *SelectorAdapter) Fetch(ctx context.Context, category CategoryLink, region string) ([]product.RawListing, error) {
	url := category.URL(c.BaseURL, region)
	log := logger.ForAdapter(string(c.Src)).WithFields(logger.Fields{
		"category": category.Category,
		"url":      url,
	})

	body, err := c.fetchWithCache(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := c.createDocument(body)
	if err != nil {
		return nil, err
	}

	scope := doc.Selection
	if c.Selectors.Container != "" {
		container := doc.Find(c.Selectors.Container).First()
		switch {
		case container.Length() > 0:
			scope = container
		case c.Selectors.ContainerRequired:
			return nil, pkgerrors.NewParsing(string(c.Src), "product container not found: "+c.Selectors.Container, nil)
		}
	}

	cards := scope.Find(c.Selectors.Card)
	if cards.Length() == 0 {
		log.Warn().Msg("No product cards found")
		return nil, nil
	}

	listings := c.processListings(cards, c.processListing, func(err error) {
		metrics.ListingsSkipped.WithLabelValues(string(c.Src)).Inc()
		log.Debug().Err(err).Msg("Skipping product card")
	})
	metrics.ListingsScraped.WithLabelValues(string(c.Src)).Add(float64(len(listings)))

	return listings, nil
}

// processListing extracts one product card. Missing title, price or link
// yields an extraction error so the card is skipped.
func (c *SelectorAdapter) processListing(s *goquery.Selection) (*product.RawListing, error) {
	titleSel := s.Find(c.Selectors.Title).First()
	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		return nil, pkgerrors.NewExtraction(string(c.Src), "title element not found")
	}

	priceSel := s.Find(c.Selectors.Price).First()
	price := strings.TrimSpace(priceSel.Text())
	if price == "" {
		return nil, pkgerrors.NewExtraction(string(c.Src), "price element not found for "+title)
	}

	linkSel := titleSel
	if c.Selectors.Link != "" {
		linkSel = s.Find(c.Selectors.Link).First()
	}
	href, _ := linkSel.Attr("href")
	link := c.ResolveURL(href)
	if link == "" {
		return nil, pkgerrors.NewExtraction(string(c.Src), "link not found for "+title)
	}

	return &product.RawListing{
		Code:      c.extractCode(s, link),
		Name:      title,
		PriceText: price,
		Image:     c.extractImage(s),
		Link:      link,
	}, nil
}

func (c *SelectorAdapter) extractCode(s *goquery.Selection, link string) *string {
	if c.Selectors.CodeAttr != "" {
		if code, ok := s.Attr(c.Selectors.CodeAttr); ok {
			return product.StringPtr(strings.TrimSpace(code))
		}
	}
	if c.CodeExtractor != nil {
		code, err := c.CodeExtractor(link)
		if err == nil {
			return product.StringPtr(code)
		}
	}
	return nil
}

func (c *SelectorAdapter) extractImage(s *goquery.Selection) *string {
	if c.Selectors.Image == "" {
		return nil
	}
	img := s.Find(c.Selectors.Image).First()
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" || c.isPlaceholder(src) {
		src = strings.TrimSpace(img.AttrOr("data-src", ""))
	}
	if src == "" || c.isPlaceholder(src) {
		return nil
	}
	return product.StringPtr(c.ResolveURL(src))
}

func (c *SelectorAdapter) isPlaceholder(src string) bool {
	return c.Selectors.ImagePlaceholder != "" && strings.Contains(src, c.Selectors.ImagePlaceholder)
}
