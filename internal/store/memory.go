package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
	pkgerrors "sjsage522/pricebot/pkg/errors"
)

type rowKey struct {
	code   string
	source product.Source
}

// Memory is a process-local Repository with the same semantics as Postgres
type Memory struct {
	mu     sync.RWMutex
	rows   map[int64]product.Product
	keys   map[rowKey]int64
	nextID int64
	now    func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		rows:   make(map[int64]product.Product),
		keys:   make(map[rowKey]int64),
		nextID: 1,
		now:    time.Now,
	}
}

// UpsertAll implements Repository
func (m *Memory) UpsertAll(ctx context.Context, products []product.Product) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res UpsertResult
	for _, p := range products {
		if err := validateForUpsert(p); err != nil {
			recordUpsertFailure(&res, p, err)
			continue
		}

		key := rowKey{code: *p.Code, source: p.Source}
		p.Timestamp = m.now()
		if id, ok := m.keys[key]; ok {
			p.ID = id
		} else {
			p.ID = m.nextID
			m.nextID++
			m.keys[key] = p.ID
		}
		m.rows[p.ID] = p
		res.Upserted++
		metrics.UpsertResults.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// ListCategories implements Repository
func (m *Memory) ListCategories(ctx context.Context, sources []product.Source) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range m.rows {
		if matchSource(p, sources) {
			seen[p.Category] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// ListSubcategories implements Repository
func (m *Memory) ListSubcategories(ctx context.Context, category string, sources []product.Source) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range m.rows {
		if p.Category == category && matchSource(p, sources) {
			seen[p.Subcategory] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// CategoryTree implements Repository
func (m *Memory) CategoryTree(ctx context.Context, sources []product.Source) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sets := make(map[string]map[string]struct{})
	for _, p := range m.rows {
		if !matchSource(p, sources) {
			continue
		}
		if sets[p.Category] == nil {
			sets[p.Category] = make(map[string]struct{})
		}
		sets[p.Category][p.Subcategory] = struct{}{}
	}

	tree := make(map[string][]string, len(sets))
	for category, subs := range sets {
		tree[category] = sortedKeys(subs)
	}
	return tree, nil
}

// ListProducts implements Repository
func (m *Memory) ListProducts(ctx context.Context, filter Filter, limit int) ([]product.Product, error) {
	return m.selectSorted(normalizeLimit(limit), func(p product.Product) bool {
		return (filter.Category == "" || p.Category == filter.Category) &&
			(filter.Subcategory == "" || p.Subcategory == filter.Subcategory) &&
			matchSource(p, filter.Sources)
	}), nil
}

// GetProduct implements Repository
func (m *Memory) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetProducts implements Repository
func (m *Memory) GetProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]product.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.rows[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Search implements Repository
func (m *Memory) Search(ctx context.Context, q SearchQuery) ([]product.Product, error) {
	needle := strings.ToLower(q.Name)
	region := strings.ToLower(q.Region)
	return m.selectSorted(normalizeLimit(q.Limit), func(p product.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) &&
			(q.Source == "" || p.Source == q.Source) &&
			(region == "" || strings.Contains(strings.ToLower(p.Link), region))
	}), nil
}

// Lookup implements Repository
func (m *Memory) Lookup(ctx context.Context, query string, limit int) ([]product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	var out []product.Product
	for _, p := range m.rows {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strconv.FormatInt(p.ID, 10), needle) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, normalizeLimit(limit)), nil
}

// SourceCounts implements Repository
func (m *Memory) SourceCounts(ctx context.Context, sources []product.Source) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]map[product.Source]struct{})
	for _, p := range m.rows {
		if !matchSource(p, sources) {
			continue
		}
		if seen[p.Subcategory] == nil {
			seen[p.Subcategory] = make(map[product.Source]struct{})
		}
		seen[p.Subcategory][p.Source] = struct{}{}
	}

	counts := make(map[string]int, len(seen))
	for sub, srcs := range seen {
		counts[sub] = len(srcs)
	}
	return counts, nil
}

// CheapestBySource implements Repository
func (m *Memory) CheapestBySource(ctx context.Context, subcategory string, source product.Source, limit int) ([]product.Product, error) {
	return m.selectSorted(normalizeLimit(limit), func(p product.Product) bool {
		return p.Subcategory == subcategory && p.Source == source
	}), nil
}

// Reset implements Repository
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = make(map[int64]product.Product)
	m.keys = make(map[rowKey]int64)
	m.nextID = 1
	return nil
}

// Close implements Repository
func (m *Memory) Close() error { return nil }

func (m *Memory) selectSorted(limit int, match func(product.Product) bool) []product.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []product.Product
	for _, p := range m.rows {
		if match(p) {
			out = append(out, p)
		}
	}
	// map order is random; fix it before the stable price sort
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	product.SortByPrice(out)
	return truncate(out, limit)
}

func validateForUpsert(p product.Product) error {
	if p.Code == nil || *p.Code == "" {
		return pkgerrors.NewValidation(string(p.Source), "product without code cannot be keyed: "+p.Name)
	}
	if p.Source == "" {
		return pkgerrors.NewValidation("store", "product without source: "+p.Name)
	}
	return nil
}

func recordUpsertFailure(res *UpsertResult, p product.Product, err error) {
	res.Failed++
	metrics.UpsertResults.WithLabelValues("failed").Inc()
	logger.ForStore().Warn().Err(err).
		Str("source", string(p.Source)).
		Str("name", p.Name).
		Msg("Failed to upsert product")
}

func matchSource(p product.Product, sources []product.Source) bool {
	if len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if p.Source == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func truncate(products []product.Product, limit int) []product.Product {
	if len(products) > limit {
		return products[:limit]
	}
	return products
}
