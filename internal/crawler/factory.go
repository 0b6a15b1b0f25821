package crawler

import (
	"sjsage522/pricebot/config"
	"sjsage522/pricebot/helpers"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/services/cache"
)

var (
	arbuzCategories = []CategoryLink{
		{Category: "Скидки", Path: "/ru/{region}/discount-catalog/225443-skidki"},
		{Category: "Овощи, фрукты, зелень", Path: "/ru/{region}/catalog/cat/225164-ovoshi_frukty_zelen"},
		{Category: "Молоко, сыр и яйца", Path: "/ru/{region}/catalog/cat/225161-moloko_syr_i_yaica"},
		{Category: "Мясо, птица и рыба", Path: "/ru/{region}/catalog/cat/225162-myaso_ptica_i_ryba"},
		{Category: "Фермерская лавка", Path: "/ru/{region}/catalog/cat/225268-fermerskaya_lavka"},
		{Category: "Замороженные продукты", Path: "/ru/{region}/catalog/cat/225183-zamorozhennye_produkty"},
		{Category: "Хлеб и выпечка", Path: "/ru/{region}/catalog/cat/225165-hleb_i_vypechka"},
		{Category: "Колбасы и деликатесы", Path: "/ru/{region}/catalog/cat/225167-kolbasy_i_delikatesy"},
		{Category: "Бакалея", Path: "/ru/{region}/catalog/cat/225169-bakaleya"},
	}

	cleverCategories = []CategoryLink{
		{Category: "Хлеб", Path: "/supermarket/catalog/Khleb/1151"},
		{Category: "Овощи, фрукты, зелень", Path: "/supermarket/catalog/Ovoshchi-zelen-gribi-solenya/1089"},
		{Category: "Молоко, сыр и яйца", Path: "/supermarket/catalog/Molochnie-produkti-yaitso/1118"},
		{Category: "Сыры", Path: "/supermarket/catalog/Siri/1135"},
		{Category: "Выпечка", Path: "/supermarket/catalog/Pasta-makaroni-lapsha/2225"},
		{Category: "Колбасы и деликатесы", Path: "/supermarket/catalog/Kolbasi/1186"},
		{Category: "Фрукты, ягоды", Path: "/supermarket/catalog/Frukti-yagodi/1090"},
		{Category: "Мясо, птица и рыба", Path: "/supermarket/catalog/Myaso-ptitsa/1162"},
		{Category: "Рыба, морепродукты, икра", Path: "/supermarket/catalog/Riba-moreprodukti-ikra/1173"},
		{Category: "Полуфабрикаты", Path: "/supermarket/catalog/Polufabrikati/1202"},
		{Category: "Чай", Path: "/supermarket/catalog/Chai/2329"},
	}

	kaspiCategories = []CategoryLink{
		{Category: "Телефоны и гаджеты", Path: "/shop/c/smartphones%20and%20gadgets/"},
		{Category: "Бытовая техника", Path: "/shop/c/home%20equipment/"},
		{Category: "ТВ, аудио", Path: "/shop/c/tv_audio/"},
		{Category: "Компьютеры", Path: "/shop/c/computers/"},
		{Category: "Мебель", Path: "/shop/c/furniture/"},
		{Category: "Красота", Path: "/shop/c/beauty%20care/"},
		{Category: "Детские товары", Path: "/shop/c/child%20goods/"},
		{Category: "Аптека", Path: "/shop/c/pharmacy/"},
	}
)

// ArbuzConfig is plain HTML with region-specific catalog paths
func ArbuzConfig(baseURL string) AdapterConfig {
	return AdapterConfig{
		Source:     product.SourceArbuz,
		BaseURL:    baseURL,
		Categories: arbuzCategories,
		CacheKey:   "arbuz_rate_limited",
		Selectors: Selectors{
			Card:     "article.product-item.product-card",
			Title:    "a.product-card__title",
			Price:    "b",
			Image:    "img.image",
			CodeAttr: "data-code",
		},
	}
}

// CleverConfig is rendered client-side; codes are the last link segment
func CleverConfig(baseURL string) AdapterConfig {
	return AdapterConfig{
		Source:     product.SourceCleverMarket,
		BaseURL:    baseURL,
		Categories: cleverCategories,
		CacheKey:   "clever_rate_limited",
		Selectors: Selectors{
			Container:        "#layout-main > div.product-card-wrapper",
			Card:             "div.product-card.product-card-item",
			Title:            "a[href] div.product-card-title",
			Link:             "a[href]",
			Price:            "div.text-sm.font-semibold.flex-grow",
			Image:            "a[href] img",
			ImagePlaceholder: "image-placeholder",
		},
		CodeExtractor: func(link string) (string, error) {
			return helpers.LastPathSegment(link), nil
		},
	}
}

// KaspiConfig is rendered client-side inside a mandatory grid container
func KaspiConfig(baseURL string) AdapterConfig {
	return AdapterConfig{
		Source:     product.SourceKaspi,
		BaseURL:    baseURL,
		Categories: kaspiCategories,
		CacheKey:   "kaspi_rate_limited",
		Selectors: Selectors{
			Container:         "div.item-cards-grid",
			ContainerRequired: true,
			Card:              "div.item-card",
			Title:             "a.item-card__name-link",
			Price:             "span.item-card__prices-price",
			Image:             "a.item-card__image-wrapper img",
			CodeAttr:          "data-product-id",
		},
	}
}

// CreateAdapters creates all the adapters based on the configuration
func CreateAdapters(cfg *config.Config, cacheSvc cache.CacheService) []Adapter {
	opts := Options{
		Timeout:           cfg.FetchTimeout,
		BlockTime:         cfg.BlockTime,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}

	adapters := []Adapter{
		NewSelectorAdapter(ArbuzConfig(cfg.ArbuzURL), NewHTTPFetcher(cfg.FetchTimeout), cacheSvc, opts),
		NewSelectorAdapter(CleverConfig(cfg.CleverURL), NewBrowserFetcher(cfg.BrowserAddr, "div.product-card", cfg.FetchTimeout), cacheSvc, opts),
		NewSelectorAdapter(KaspiConfig(cfg.KaspiURL), NewBrowserFetcher(cfg.BrowserAddr, "div.item-card", cfg.FetchTimeout), cacheSvc, opts),
	}

	for _, a := range adapters {
		logger.ForAdapter(string(a.Source())).Debug().
			Int("categories", len(a.Categories())).
			Bool("region_aware", a.RegionAware()).
			Msg("Adapter created")
	}

	return adapters
}
