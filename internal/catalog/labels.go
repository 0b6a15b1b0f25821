package catalog

import (
	"context"
	"sort"
	"sync"

	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
	"sjsage522/pricebot/logger"
)

// Labels maps category and subcategory names to dense numeric ids for
// compact callback data. Ids follow sorted name order and are only stable
// between reloads.
type Labels struct {
	repo    store.Repository
	sources []product.Source

	mu             sync.RWMutex
	categories     []string
	categoryIDs    map[string]int
	subcategories  map[string][]string
	subcategoryIDs map[string]map[string]int
}

// NewLabels creates empty label maps; call Reload before use
func NewLabels(repo store.Repository, sources []product.Source) *Labels {
	return &Labels{
		repo:           repo,
		sources:        sources,
		categoryIDs:    make(map[string]int),
		subcategories:  make(map[string][]string),
		subcategoryIDs: make(map[string]map[string]int),
	}
}

// Reload rebuilds every map from the store. On error the previous maps stay.
func (l *Labels) Reload(ctx context.Context) error {
	tree, err := l.repo.CategoryTree(ctx, l.sources)
	if err != nil {
		return err
	}

	categories := make([]string, 0, len(tree))
	for c := range tree {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	categoryIDs := make(map[string]int, len(categories))
	subcategoryIDs := make(map[string]map[string]int, len(categories))
	for i, c := range categories {
		categoryIDs[c] = i
		ids := make(map[string]int, len(tree[c]))
		for j, s := range tree[c] {
			ids[s] = j
		}
		subcategoryIDs[c] = ids
	}

	l.mu.Lock()
	l.categories = categories
	l.categoryIDs = categoryIDs
	l.subcategories = tree
	l.subcategoryIDs = subcategoryIDs
	l.mu.Unlock()

	logger.ForStore().Debug().Int("categories", len(categories)).Msg("Label maps reloaded")
	return nil
}

// Categories returns the category names in id order
func (l *Labels) Categories() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.categories...)
}

// Subcategories returns the subcategory names of category in id order
func (l *Labels) Subcategories(category string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.subcategories[category]...)
}

func (l *Labels) CategoryID(name string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.categoryIDs[name]
	return id, ok
}

func (l *Labels) CategoryName(id int) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 0 || id >= len(l.categories) {
		return "", false
	}
	return l.categories[id], true
}

func (l *Labels) SubcategoryID(category, name string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.subcategoryIDs[category][name]
	return id, ok
}

func (l *Labels) SubcategoryName(category string, id int) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	subs := l.subcategories[category]
	if id < 0 || id >= len(subs) {
		return "", false
	}
	return subs[id], true
}
