package crawler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricebot/internal/classifier"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
)

// fakeAdapter serves canned listings per category and records its calls
type fakeAdapter struct {
	src        product.Source
	categories []CategoryLink
	listings   map[string][]product.RawListing
	failing    map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeAdapter) Fetch(_ context.Context, category CategoryLink, region string) ([]product.RawListing, error) {
	f.mu.Lock()
	f.calls = append(f.calls, category.Category+"@"+region)
	f.mu.Unlock()

	if f.failing[category.Category] {
		return nil, errors.New("fetch failed")
	}
	return f.listings[category.Category], nil
}

func (f *fakeAdapter) Categories() []CategoryLink { return f.categories }
func (f *fakeAdapter) Source() product.Source     { return f.src }

func (f *fakeAdapter) RegionAware() bool {
	for _, c := range f.categories {
		if c.RegionAware() {
			return true
		}
	}
	return false
}

func raw(code, name, price string) product.RawListing {
	return product.RawListing{
		Code:      product.StringPtr(code),
		Name:      name,
		PriceText: price,
		Link:      "https://example.kz/p/" + code,
	}
}

func TestScraperRunSkipsFailedCategory(t *testing.T) {
	adapter := &fakeAdapter{
		src: product.SourceCleverMarket,
		categories: []CategoryLink{
			{Category: "Хлеб", Path: "/bread"},
			{Category: "Молоко, сыр и яйца", Path: "/milk"},
		},
		failing: map[string]bool{"Хлеб": true},
		listings: map[string][]product.RawListing{
			"Молоко, сыр и яйца": {
				raw("1", "Свежее молоко 1л", "450 ₸"),
				raw("2", "Яйца куриные С1 10 шт", "890 ₸"),
			},
		},
	}

	products := NewScraper([]Adapter{adapter}, classifier.New()).Run(context.Background(), "almaty")
	require.Len(t, products, 2)

	assert.Equal(t, "Молоко, сыр и яйца", products[0].Category)
	assert.Equal(t, "Молоко", products[0].Subcategory)
	assert.Equal(t, product.SourceCleverMarket, products[0].Source)
	assert.Equal(t, "Яйцо", products[1].Subcategory)
	assert.Equal(t, []string{"Хлеб@almaty", "Молоко, сыр и яйца@almaty"}, adapter.calls)
}

func TestScraperLogsCategoryOutcome(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	defer func() { logger.Default = nil }()

	adapter := &fakeAdapter{
		src: product.SourceArbuz,
		categories: []CategoryLink{
			{Category: "Хлеб", Path: "/bread"},
			{Category: "Молоко, сыр и яйца", Path: "/milk"},
		},
		failing: map[string]bool{"Хлеб": true},
		listings: map[string][]product.RawListing{
			"Молоко, сыр и яйца": {
				raw("1", "Свежее молоко 1л", "450 ₸"),
				raw("2", "Молоко Простоквашино 2,5% 930 мл", "520 ₸"),
				raw("3", "Яйца куриные С1 10 шт", "890 ₸"),
			},
		},
	}

	NewScraper([]Adapter{adapter}, classifier.New()).Run(context.Background(), "almaty")

	out := buf.String()
	assert.Contains(t, out, `"error":"fetch failed"`)
	assert.Contains(t, out, `"category":"Хлеб"`)
	assert.Contains(t, out, `"subcategories":["Молоко","Яйцо"]`)
}

func TestScraperRunAllRegions(t *testing.T) {
	regional := &fakeAdapter{
		src:        product.SourceArbuz,
		categories: []CategoryLink{{Category: "Бакалея", Path: "/ru/{region}/bakaleya"}},
		listings: map[string][]product.RawListing{
			"Бакалея": {raw("10", "Гречка ядрица 900 г", "720")},
		},
	}
	invariant := &fakeAdapter{
		src:        product.SourceKaspi,
		categories: []CategoryLink{{Category: "Аптека", Path: "/shop/c/pharmacy/"}},
		listings: map[string][]product.RawListing{
			"Аптека": {raw("20", "Пластырь бактерицидный", "350")},
		},
	}

	products := NewScraper([]Adapter{regional, invariant}, nil).RunAll(context.Background(), []string{"almaty", "astana"})

	assert.ElementsMatch(t, []string{"Бакалея@almaty", "Бакалея@astana"}, regional.calls)
	assert.Equal(t, []string{"Аптека@"}, invariant.calls)
	require.Len(t, products, 3)
	assert.Equal(t, product.SourceKaspi, products[2].Source)
}

func TestScraperStopsOnCancelledContext(t *testing.T) {
	adapter := &fakeAdapter{
		src:        product.SourceKaspi,
		categories: kaspiCategories,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	products := NewScraper([]Adapter{adapter}, nil).Run(ctx, "")
	assert.Empty(t, products)
	assert.Empty(t, adapter.calls)
}
