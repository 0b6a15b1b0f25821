package store

import (
	"context"
	"strings"

	"sjsage522/pricebot/internal/product"
)

// DefaultListLimit caps ListProducts when the caller passes no limit
const DefaultListLimit = 100

// Filter narrows ListProducts. Empty fields match everything.
type Filter struct {
	Category    string
	Subcategory string
	Sources     []product.Source
}

// SearchQuery is a case-insensitive substring search on product names
type SearchQuery struct {
	Name string
	// Source restricts results to one site when set
	Source product.Source
	// Region keeps only products whose link contains this token
	Region string
	Limit  int
}

// UpsertResult reports how a batch upsert went
type UpsertResult struct {
	Upserted int
	Failed   int
}

// Repository persists products keyed by (code, source). Read operations
// return prices ordered by parsed value ascending, ties newest first.
type Repository interface {
	// UpsertAll inserts or overwrites every product. A failing row is logged
	// and counted; only an unreachable store is returned as an error.
	UpsertAll(ctx context.Context, products []product.Product) (UpsertResult, error)

	ListCategories(ctx context.Context, sources []product.Source) ([]string, error)
	ListSubcategories(ctx context.Context, category string, sources []product.Source) ([]string, error)
	// CategoryTree maps every category to its sorted subcategories
	CategoryTree(ctx context.Context, sources []product.Source) (map[string][]string, error)
	ListProducts(ctx context.Context, filter Filter, limit int) ([]product.Product, error)

	// GetProduct returns nil without error when id is unknown
	GetProduct(ctx context.Context, id int64) (*product.Product, error)
	// GetProducts returns the subset of ids that still exist
	GetProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error)

	Search(ctx context.Context, q SearchQuery) ([]product.Product, error)
	// Lookup matches name or id text, newest first
	Lookup(ctx context.Context, query string, limit int) ([]product.Product, error)

	// SourceCounts returns the number of distinct sources per subcategory
	SourceCounts(ctx context.Context, sources []product.Source) (map[string]int, error)
	CheapestBySource(ctx context.Context, subcategory string, source product.Source, limit int) ([]product.Product, error)

	// Reset drops every product
	Reset(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func sourceStrings(sources []product.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

// likePattern escapes LIKE metacharacters and wraps s in wildcards
func likePattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
