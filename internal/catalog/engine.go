package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
)

const (
	// DefaultCompareCap is the number of cheapest items pulled per source
	DefaultCompareCap = 50
	// DefaultSimilar is how many similar products are returned
	DefaultSimilar = 5
	// PlaceholderImage is shown when no listing carries an image
	PlaceholderImage = "https://via.placeholder.com/150"
)

// ErrProductNotFound is returned when a referenced product id is unknown
var ErrProductNotFound = errors.New("product not found")

// Engine answers comparison and listing queries over the store
type Engine struct {
	repo       store.Repository
	sources    []product.Source
	compareCap int
	listLimit  int
}

// NewEngine creates an engine. Zero caps fall back to defaults.
func NewEngine(repo store.Repository, sources []product.Source, compareCap, listLimit int) *Engine {
	if compareCap <= 0 {
		compareCap = DefaultCompareCap
	}
	if listLimit <= 0 {
		listLimit = store.DefaultListLimit
	}
	return &Engine{repo: repo, sources: sources, compareCap: compareCap, listLimit: listLimit}
}

// EligibleSubcategories returns, sorted, the subcategories carried by at
// least two distinct sources.
func (e *Engine) EligibleSubcategories(ctx context.Context) ([]string, error) {
	counts, err := e.repo.SourceCounts(ctx, e.sources)
	if err != nil {
		return nil, err
	}

	var out []string
	for sub, n := range counts {
		if n >= 2 {
			out = append(out, sub)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Compare pulls the cheapest items of subcategory from each source, keeps
// them grouped by source in the given order and returns one page of the
// concatenation. hasMore reports whether items remain after this page.
func (e *Engine) Compare(ctx context.Context, subcategory string, sources []product.Source, pageSize, offset int) ([]product.Product, bool, error) {
	if len(sources) == 0 {
		sources = e.sources
	}

	var all []product.Product
	for _, src := range sources {
		items, err := e.repo.CheapestBySource(ctx, subcategory, src, e.compareCap)
		if err != nil {
			return nil, false, err
		}
		all = append(all, items...)
	}

	page, hasMore := Paginate(all, offset, pageSize)
	return page, hasMore, nil
}

// ListingItem is a product annotated with its saving versus the average
type ListingItem struct {
	product.Product
	Savings    float64
	HasSavings bool
}

// Listing is a price-sorted subcategory view
type Listing struct {
	Items      []ListingItem
	Average    float64
	HasAverage bool
}

// Listing returns the products of a subcategory with savings against the
// average parsable price. Unparsable prices sort last and never get savings.
func (e *Engine) Listing(ctx context.Context, category, subcategory string) (Listing, error) {
	products, err := e.repo.ListProducts(ctx, store.Filter{
		Category:    category,
		Subcategory: subcategory,
		Sources:     e.sources,
	}, e.listLimit)
	if err != nil {
		return Listing{}, err
	}

	avg, ok := product.AveragePrice(products)
	listing := Listing{Items: make([]ListingItem, 0, len(products)), Average: avg, HasAverage: ok}
	for _, p := range products {
		item := ListingItem{Product: p}
		if ok {
			item.Savings, item.HasSavings = product.Savings(p, avg)
		}
		listing.Items = append(listing.Items, item)
	}
	return listing, nil
}

// Search finds products by name, optionally in one source and region
func (e *Engine) Search(ctx context.Context, name string, source product.Source, region string) ([]product.Product, error) {
	return e.repo.Search(ctx, store.SearchQuery{
		Name:   strings.TrimSpace(name),
		Source: source,
		Region: region,
		Limit:  e.listLimit,
	})
}

// Scored is a product with its similarity to a reference product
type Scored struct {
	product.Product
	Score float64
}

// Similar ranks other products of the same subcategory by name token overlap
func (e *Engine) Similar(ctx context.Context, productID int64, n int) ([]Scored, error) {
	if n <= 0 {
		n = DefaultSimilar
	}
	base, err := e.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, ErrProductNotFound
	}

	candidates, err := e.repo.ListProducts(ctx, store.Filter{Subcategory: base.Subcategory}, e.listLimit)
	if err != nil {
		return nil, err
	}

	baseTokens := tokens(base.Name)
	var scored []Scored
	for _, p := range candidates {
		if p.ID == base.ID {
			continue
		}
		scored = append(scored, Scored{Product: p, Score: jaccard(baseTokens, tokens(p.Name))})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// FirstImage returns the first real image of products sized to 600px, or
// PlaceholderImage.
func FirstImage(products []product.Product) string {
	for _, p := range products {
		img := strings.TrimSpace(p.ImageOrEmpty())
		if img == "" || strings.Contains(img, "image-placeholder") {
			continue
		}
		return strings.NewReplacer("%w", "600", "%h", "600").Replace(img)
	}
	return PlaceholderImage
}

// Paginate returns the block of at most pageSize items starting at offset
// and whether more items follow it.
func Paginate[T any](items []T, offset, pageSize int) ([]T, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, false
	}
	if pageSize <= 0 {
		return items[offset:], false
	}
	end := offset + pageSize
	if end >= len(items) {
		return items[offset:], false
	}
	return items[offset:end], true
}

func tokens(name string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var shared int
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
