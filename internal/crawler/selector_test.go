package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricebot/internal/product"
	pkgerrors "sjsage522/pricebot/pkg/errors"
	"sjsage522/pricebot/services/cache"
)

const arbuzFixture = `<html><body>
<section class="catalog">
  <article class="product-item product-card" data-code="101">
    <a class="product-card__title" href="/ru/almaty/catalog/item/101-moloko"> Молоко Лактель 3,2% 1 л </a>
    <b>650 ₸</b>
    <img class="image" src="https://cdn.example.kz/101.jpg">
  </article>
  <article class="product-item product-card" data-code="102">
    <a class="product-card__title" href="/ru/almaty/catalog/item/102-kefir">Кефир Простоквашино 1%</a>
    <span class="price-missing"></span>
  </article>
  <article class="product-item product-card" data-code="103">
    <a class="product-card__title" href="/ru/almaty/catalog/item/103-syr">Сыр Российский 200 г</a>
    <b>1 290 ₸</b>
    <img class="image" data-src="/img/103.jpg">
  </article>
</section>
</body></html>`

func testOptions() Options {
	return Options{Timeout: 2 * time.Second, BlockTime: time.Minute}
}

func TestSelectorAdapterSkipsCardWithoutPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ru/almaty/catalog/cat/225161-moloko_syr_i_yaica", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(arbuzFixture))
	}))
	defer server.Close()

	adapter := NewSelectorAdapter(ArbuzConfig(server.URL), NewHTTPFetcher(2*time.Second), cache.NewMemoryService(), testOptions())
	category := CategoryLink{Category: "Молоко, сыр и яйца", Path: "/ru/{region}/catalog/cat/225161-moloko_syr_i_yaica"}

	listings, err := adapter.Fetch(context.Background(), category, "almaty")
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "101", *listings[0].Code)
	assert.Equal(t, "Молоко Лактель 3,2% 1 л", listings[0].Name)
	assert.Equal(t, "650 ₸", listings[0].PriceText)
	assert.Equal(t, server.URL+"/ru/almaty/catalog/item/101-moloko", listings[0].Link)
	assert.Equal(t, "https://cdn.example.kz/101.jpg", *listings[0].Image)

	assert.Equal(t, "103", *listings[1].Code)
	assert.Equal(t, "1 290 ₸", listings[1].PriceText)
	assert.Equal(t, server.URL+"/img/103.jpg", *listings[1].Image)
}

func TestSelectorAdapterRegionAware(t *testing.T) {
	arbuz := NewSelectorAdapter(ArbuzConfig("https://arbuz.kz"), nil, nil, Options{})
	kaspi := NewSelectorAdapter(KaspiConfig("https://kaspi.kz"), nil, nil, Options{})

	assert.True(t, arbuz.RegionAware())
	assert.False(t, kaspi.RegionAware())
	assert.Equal(t, product.SourceArbuz, arbuz.Source())
	assert.Equal(t, "https://arbuz.kz/ru/astana/discount-catalog/225443-skidki",
		arbuz.Categories()[0].URL(arbuz.BaseURL, "astana"))
}

func TestSelectorAdapterMissingRequiredContainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="captcha">Подтвердите, что вы не робот</div></body></html>`))
	}))
	defer server.Close()

	adapter := NewSelectorAdapter(KaspiConfig(server.URL), NewHTTPFetcher(2*time.Second), nil, testOptions())
	listings, err := adapter.Fetch(context.Background(), CategoryLink{Category: "Аптека", Path: "/shop/c/pharmacy/"}, "")

	assert.Nil(t, listings)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeParsing))
}

func TestSelectorAdapterNoCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Пусто</p></body></html>`))
	}))
	defer server.Close()

	adapter := NewSelectorAdapter(ArbuzConfig(server.URL), NewHTTPFetcher(2*time.Second), nil, testOptions())
	listings, err := adapter.Fetch(context.Background(), arbuzCategories[0], "almaty")

	assert.NoError(t, err)
	assert.Empty(t, listings)
}

func TestSelectorAdapterRateLimitBlock(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	blocks := cache.NewMemoryService()
	adapter := NewSelectorAdapter(ArbuzConfig(server.URL), NewHTTPFetcher(2*time.Second), blocks, testOptions())

	_, err := adapter.Fetch(context.Background(), arbuzCategories[0], "almaty")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNetwork))

	_, cacheErr := blocks.Get("arbuz_rate_limited")
	assert.NoError(t, cacheErr, "rate limit should set the block")

	_, err = adapter.Fetch(context.Background(), arbuzCategories[1], "almaty")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "blocked adapter must not hit the site")
}

func TestSelectorAdapterTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	adapter := NewSelectorAdapter(ArbuzConfig(server.URL), NewHTTPFetcher(time.Minute), nil,
		Options{Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := adapter.Fetch(context.Background(), arbuzCategories[0], "almaty")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCleverCodeFromLinkAndPlaceholderImage(t *testing.T) {
	html := `<html><body><div id="layout-main"><div class="product-card-wrapper">
	  <div class="product-card product-card-item">
	    <a href="/supermarket/product/Khleb-belyi/55012">
	      <img src="/static/image-placeholder.svg">
	      <div class="product-card-title">Хлеб белый нарезной</div>
	    </a>
	    <div class="text-sm font-semibold flex-grow">210 ₸</div>
	  </div>
	</div></div></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	defer server.Close()

	adapter := NewSelectorAdapter(CleverConfig(server.URL), NewHTTPFetcher(2*time.Second), nil, testOptions())
	listings, err := adapter.Fetch(context.Background(), cleverCategories[0], "")
	require.NoError(t, err)
	require.Len(t, listings, 1)

	assert.Equal(t, "55012", *listings[0].Code)
	assert.Equal(t, "Хлеб белый нарезной", listings[0].Name)
	assert.Nil(t, listings[0].Image)
}
