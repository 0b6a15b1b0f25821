package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Store configuration
	StoreDriver string
	Database    DatabaseConfig

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int
	BasketBackend        string

	// Memcache configuration
	MemcacheAddr string

	// Scraping configuration
	CrawlInterval     time.Duration
	FetchTimeout      time.Duration
	BlockTime         time.Duration
	RequestsPerSecond float64
	Regions           []string
	DefaultRegion     string
	BrowserAddr       string

	// Source catalog roots
	ArbuzURL  string
	CleverURL string
	KaspiURL  string

	// Presentation
	ProductsPerPage int
	CompareCap      int
	ListLimit       int
	OrderBaseURL    string

	AdminID     int64
	MetricsAddr string

	// Environment
	Environment string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ConnectionString returns a lib/pq key=value connection string
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DATABASE_PORT", "5432"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMax, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	crawlInterval, _ := strconv.Atoi(getEnv("CRAWL_INTERVAL_SECONDS", "259200"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "10"))
	blockTime, _ := strconv.Atoi(getEnv("BLOCK_SECONDS", "60"))
	rps, _ := strconv.ParseFloat(getEnv("REQUESTS_PER_SECOND", "2"), 64)
	perPage, _ := strconv.Atoi(getEnv("PRODUCTS_PER_PAGE", "5"))
	compareCap, _ := strconv.Atoi(getEnv("COMPARE_CAP", "50"))
	listLimit, _ := strconv.Atoi(getEnv("LIST_LIMIT", "100"))
	adminID, _ := strconv.ParseInt(getEnv("ADMIN_ID", "0"), 10, 64)

	return &Config{
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DATABASE_USER", "postgres"),
			Password: getEnv("DATABASE_PASSWORD", ""),
			Name:     getEnv("DATABASE_NAME", "pricebot"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		},
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "products"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMax,
		BasketBackend:        getEnv("BASKET_BACKEND", "memory"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CrawlInterval:        time.Duration(crawlInterval) * time.Second,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		BlockTime:            time.Duration(blockTime) * time.Second,
		RequestsPerSecond:    rps,
		Regions:              splitList(getEnv("REGIONS", "almaty,astana,shymkent")),
		DefaultRegion:        getEnv("DEFAULT_REGION", "almaty"),
		BrowserAddr:          getEnv("BROWSER_ADDR", "http://localhost:3000"),
		ArbuzURL:             getEnv("ARBUZ_URL", "https://arbuz.kz"),
		CleverURL:            getEnv("CLEVER_URL", "https://clevermarket.kz"),
		KaspiURL:             getEnv("KASPI_URL", "https://kaspi.kz"),
		ProductsPerPage:      perPage,
		CompareCap:           compareCap,
		ListLimit:            listLimit,
		OrderBaseURL:         getEnv("ORDER_BASE_URL", "https://example.com/order"),
		AdminID:              adminID,
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		Environment:          getEnv("PRICEBOT_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c *Config) Validate() error {
	if c.CrawlInterval <= 0 {
		return fmt.Errorf("crawl interval must be positive, got %s", c.CrawlInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	if c.ProductsPerPage <= 0 || c.CompareCap <= 0 || c.ListLimit <= 0 {
		return fmt.Errorf("page size, compare cap and list limit must be positive")
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.BasketBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown basket backend %q", c.BasketBackend)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
