package crawler

import (
	"context"
	"strings"

	"sjsage522/pricebot/internal/product"
)

// RegionToken marks where a region name goes in a category path
const RegionToken = "{region}"

// CategoryLink pairs a fixed category label with its catalog page path
type CategoryLink struct {
	Category string
	Path     string
}

// URL returns the absolute catalog URL for region
func (c CategoryLink) URL(baseURL, region string) string {
	path := strings.ReplaceAll(c.Path, RegionToken, region)
	return strings.TrimRight(baseURL, "/") + path
}

// RegionAware reports whether the path varies by region
func (c CategoryLink) RegionAware() bool {
	return strings.Contains(c.Path, RegionToken)
}

// Adapter fetches one site's category pages and extracts raw listings
type Adapter interface {
	// Fetch extracts the listings of one category page. A returned error
	// means the whole page failed; per-card problems are skipped internally.
	Fetch(ctx context.Context, category CategoryLink, region string) ([]product.RawListing, error)

	// Categories returns the adapter's fixed category list
	Categories() []CategoryLink

	// Source returns the origin tag written to every product
	Source() product.Source

	// RegionAware reports whether the adapter's pages depend on the region
	RegionAware() bool
}

// CodeExtractorFunc derives a source-local code from a resolved product link
type CodeExtractorFunc func(link string) (string, error)

// Selectors contains CSS selectors for the elements of a category page
type Selectors struct {
	// Container scopes card lookup; empty means the whole document
	Container string
	// ContainerRequired turns a missing container into a page failure
	ContainerRequired bool
	Card              string
	Title             string
	Link              string
	Price             string
	Image             string
	// CodeAttr is the card attribute carrying the product code
	CodeAttr string
	// ImagePlaceholder marks lazy-load stub images that should be dropped
	ImagePlaceholder string
}

// AdapterConfig contains configuration for a selector-driven adapter
type AdapterConfig struct {
	Source        product.Source
	BaseURL       string
	Categories    []CategoryLink
	CacheKey      string
	Selectors     Selectors
	CodeExtractor CodeExtractorFunc
}
