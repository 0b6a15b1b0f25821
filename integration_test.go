package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricebot/config"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
	"sjsage522/pricebot/services/worker"
)

// arbuzMilkPage mimics an Arbuz category page; the second card lacks a price
const arbuzMilkPage = `<!DOCTYPE html>
<html><body>
  <article class="product-item product-card" data-code="2001">
    <a class="product-card__title" href="/ru/almaty/catalog/item/2001">Молоко Лактель 3,2% 1 л</a>
    <b>650 ₸</b>
    <img class="image" src="/img/2001-%w-%h.jpg">
  </article>
  <article class="product-item product-card" data-code="2002">
    <a class="product-card__title" href="/ru/almaty/catalog/item/2002">Молоко без цены</a>
  </article>
  <article class="product-item product-card" data-code="2003">
    <a class="product-card__title" href="/ru/almaty/catalog/item/2003">Молоко Зеленая долина 2,5%</a>
    <b>590 ₸</b>
  </article>
</body></html>`

// cleverMilkPage is what the headless browser returns for a CleverMarket page
const cleverMilkPage = `<!DOCTYPE html>
<html><body><div id="layout-main"><div class="product-card-wrapper">
  <div class="product-card product-card-item">
    <a href="/supermarket/product/Moloko/77001">
      <img src="https://cdn.clevermarket.kz/77001.jpg">
      <div class="product-card-title">Молоко Простоквашино 2,5%</div>
    </a>
    <div class="text-sm font-semibold flex-grow">560 ₸</div>
  </div>
</div></div></body></html>`

// newFakeSites serves Arbuz pages directly and the other sites through a
// browserless-style /content endpoint. Every other category 404s.
func newFakeSites(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/content":
			var req struct {
				URL string `json:"url"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if strings.Contains(req.URL, "Molochnie-produkti-yaitso") {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte(cleverMilkPage))
				return
			}
			w.WriteHeader(http.StatusBadGateway)
		case r.URL.Path == "/ru/almaty/catalog/cat/225161-moloko_syr_i_yaica":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(arbuzMilkPage))
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(siteURL string) *config.Config {
	cfg := config.LoadConfig()
	cfg.StoreDriver = "memory"
	cfg.BasketBackend = "memory"
	cfg.RedisAddr = ""
	cfg.MemcacheAddr = ""
	cfg.RequestsPerSecond = 0
	cfg.FetchTimeout = 2 * time.Second
	cfg.Regions = []string{"almaty"}
	cfg.ArbuzURL = siteURL
	cfg.CleverURL = siteURL
	cfg.KaspiURL = siteURL
	cfg.BrowserAddr = siteURL
	cfg.AdminID = 1
	return cfg
}

func TestIntegration(t *testing.T) {
	sites := newFakeSites(t)
	defer sites.Close()

	ctx := context.Background()
	app, err := NewApp(ctx, testConfig(sites.URL))
	require.NoError(t, err)
	defer app.Cleanup()

	// Scrape: failed categories are absorbed, the card without price is dropped
	summary, err := app.Worker.Trigger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Products)
	assert.Equal(t, 3, summary.Upserted)
	assert.Equal(t, map[string]int{"Arbuz": 2, "CleverMarket": 1}, summary.PerSource)

	// Labels reload after the scrape
	assert.Equal(t, []string{"Молоко, сыр и яйца"}, app.Labels.Categories())
	assert.Equal(t, []string{"Молоко"}, app.Labels.Subcategories("Молоко, сыр и яйца"))

	// Milk is carried by two sources, so it is comparable
	eligible, err := app.Catalog.EligibleSubcategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Молоко"}, eligible)

	page, hasMore, err := app.Catalog.Compare(ctx, "Молоко", nil, 5, 0)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 3)
	assert.Equal(t, product.SourceArbuz, page[0].Source)
	assert.Equal(t, "590 ₸", page[0].Price, "cheapest first within a source")
	assert.Equal(t, product.SourceCleverMarket, page[2].Source)

	listing, err := app.Catalog.Listing(ctx, "Молоко, сыр и яйца", "Молоко")
	require.NoError(t, err)
	require.Len(t, listing.Items, 3)
	assert.Equal(t, "560 ₸", listing.Items[0].Price)
	assert.True(t, listing.Items[0].HasSavings)

	// A second scrape updates rows in place
	_, err = app.Worker.Trigger(ctx, 1)
	require.NoError(t, err)
	all, err := app.Store.ListProducts(ctx, store.Filter{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Basket round trip
	cheapest := listing.Items[0].ID
	require.NoError(t, app.Basket.Add(ctx, 42, cheapest, 2))
	lines, err := app.Basket.Snapshot(ctx, 42)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	record, err := app.Basket.Checkout(ctx, 42)
	require.NoError(t, err)
	assert.True(t, record.Final)
	assert.Contains(t, record.OrderURL, "77001")

	cabinet, err := app.Basket.Cabinet(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "1120", cabinet.Spent.String())

	// Only the admin may trigger
	_, err = app.Worker.Trigger(ctx, 2)
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	sites := newFakeSites(t)
	defer sites.Close()

	ctx := context.Background()
	cfg := testConfig(sites.URL)
	app, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	defer app.Cleanup()

	require.NoError(t, runCommand(ctx, app, cfg, false))
	products, err := app.Store.ListProducts(ctx, store.Filter{}, 10)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	require.NoError(t, runCommand(ctx, app, cfg, true))
	products, err = app.Store.ListProducts(ctx, store.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, products)

	notAdmin := *cfg
	notAdmin.AdminID = 2
	err = runCommand(ctx, app, &notAdmin, false)
	assert.ErrorIs(t, err, worker.ErrNotAdmin)
}

func TestMetricsMux(t *testing.T) {
	server := httptest.NewServer(metricsMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
