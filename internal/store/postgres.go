package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"sjsage522/pricebot/config"
	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
	pkgerrors "sjsage522/pricebot/pkg/errors"
)

const (
	maxRetries     = 10
	dbMaxOpenConns = 20
	retryDelay     = 5 * time.Second
)

// priceOrder mirrors product.ParsePrice: keep digits and dots, unparsable last
const priceOrder = `
	CASE WHEN regexp_replace(price, '[^0-9.]', '', 'g') ~ '^([0-9]+\.?[0-9]*|\.[0-9]+)$'
	     THEN CAST(regexp_replace(price, '[^0-9.]', '', 'g') AS numeric)
	END ASC NULLS LAST, timestamp DESC, id ASC`

const productColumns = `id, code, name, price, category, subcategory, timestamp, source, image, link`

const upsertProduct = `
	INSERT INTO products (code, name, price, category, subcategory, timestamp, source, image, link)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (code, source) DO UPDATE
	SET name = EXCLUDED.name,
	    price = EXCLUDED.price,
	    category = EXCLUDED.category,
	    subcategory = EXCLUDED.subcategory,
	    timestamp = EXCLUDED.timestamp,
	    image = EXCLUDED.image,
	    link = EXCLUDED.link`

// Postgres is the lib/pq backed Repository
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// Connect opens the database, retrying until it answers a ping
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := open(ctx, cfg.ConnectionString())
		if err == nil {
			logger.ForStore().Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("Connected to Postgres")
			return NewPostgres(db), nil
		}
		lastErr = err
		logger.ForStore().Warn().Err(err).
			Int("attempt", i+1).
			Int("max_attempts", maxRetries).
			Msg("Failed to connect to Postgres")

		select {
		case <-ctx.Done():
			return nil, pkgerrors.NewConnectivity("connect cancelled", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return nil, pkgerrors.NewConnectivity("connect to postgres", lastErr)
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}

// NewPostgres wraps an open database handle
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// UpsertAll implements Repository
func (s *Postgres) UpsertAll(ctx context.Context, products []product.Product) (UpsertResult, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return UpsertResult{}, pkgerrors.NewConnectivity("store unreachable", err)
	}

	stmt, err := s.db.PrepareContext(ctx, upsertProduct)
	if err != nil {
		return UpsertResult{}, pkgerrors.NewConnectivity("prepare upsert", err)
	}
	defer stmt.Close()

	var res UpsertResult
	for _, p := range products {
		if err := validateForUpsert(p); err != nil {
			recordUpsertFailure(&res, p, err)
			continue
		}
		_, err := stmt.ExecContext(ctx, p.Code, p.Name, p.Price, p.Category, p.Subcategory,
			s.now(), string(p.Source), p.Image, p.Link)
		if err != nil {
			if isConnectionError(err) {
				return res, pkgerrors.NewConnectivity("store lost during upsert", err)
			}
			recordUpsertFailure(&res, p, pkgerrors.NewStore(string(p.Source), "upsert", err))
			continue
		}
		res.Upserted++
		metrics.UpsertResults.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// ListCategories implements Repository
func (s *Postgres) ListCategories(ctx context.Context, sources []product.Source) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT DISTINCT category FROM products
		WHERE cardinality($1::text[]) = 0 OR source = ANY($1)
		ORDER BY category`, pq.Array(sourceStrings(sources)))
}

// ListSubcategories implements Repository
func (s *Postgres) ListSubcategories(ctx context.Context, category string, sources []product.Source) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT DISTINCT subcategory FROM products
		WHERE category = $1 AND (cardinality($2::text[]) = 0 OR source = ANY($2))
		ORDER BY subcategory`, category, pq.Array(sourceStrings(sources)))
}

// CategoryTree implements Repository
func (s *Postgres) CategoryTree(ctx context.Context, sources []product.Source) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category, subcategory FROM products
		WHERE cardinality($1::text[]) = 0 OR source = ANY($1)`, pq.Array(sourceStrings(sources)))
	if err != nil {
		return nil, s.readError("category tree", err)
	}
	defer rows.Close()

	tree := make(map[string][]string)
	for rows.Next() {
		var category, subcategory string
		if err := rows.Scan(&category, &subcategory); err != nil {
			return nil, s.readError("scan category tree", err)
		}
		tree[category] = append(tree[category], subcategory)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("iterate category tree", err)
	}
	for _, subs := range tree {
		sort.Strings(subs)
	}
	return tree, nil
}

// ListProducts implements Repository
func (s *Postgres) ListProducts(ctx context.Context, filter Filter, limit int) ([]product.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR subcategory = $2)
		  AND (cardinality($3::text[]) = 0 OR source = ANY($3))
		ORDER BY `+priceOrder+`
		LIMIT $4`,
		filter.Category, filter.Subcategory, pq.Array(sourceStrings(filter.Sources)), normalizeLimit(limit))
}

// GetProduct implements Repository
func (s *Postgres) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.readError("get product", err)
	}
	return &p, nil
}

// GetProducts implements Repository
func (s *Postgres) GetProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error) {
	products, err := s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]product.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Search implements Repository
func (s *Postgres) Search(ctx context.Context, q SearchQuery) ([]product.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE name ILIKE $1
		  AND ($2 = '' OR source = $2)
		  AND ($3 = '' OR link ILIKE '%' || $3 || '%')
		ORDER BY `+priceOrder+`
		LIMIT $4`,
		likePattern(q.Name), string(q.Source), escapeLike(q.Region), normalizeLimit(q.Limit))
}

// Lookup implements Repository
func (s *Postgres) Lookup(ctx context.Context, query string, limit int) ([]product.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE name ILIKE $1 OR CAST(id AS TEXT) ILIKE $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, likePattern(strings.TrimSpace(query)), normalizeLimit(limit))
}

// SourceCounts implements Repository
func (s *Postgres) SourceCounts(ctx context.Context, sources []product.Source) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subcategory, COUNT(DISTINCT source) FROM products
		WHERE cardinality($1::text[]) = 0 OR source = ANY($1)
		GROUP BY subcategory`, pq.Array(sourceStrings(sources)))
	if err != nil {
		return nil, s.readError("source counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sub string
		var n int
		if err := rows.Scan(&sub, &n); err != nil {
			return nil, s.readError("scan source counts", err)
		}
		counts[sub] = n
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("iterate source counts", err)
	}
	return counts, nil
}

// CheapestBySource implements Repository
func (s *Postgres) CheapestBySource(ctx context.Context, subcategory string, source product.Source, limit int) ([]product.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE subcategory = $1 AND source = $2
		ORDER BY `+priceOrder+`
		LIMIT $3`, subcategory, string(source), normalizeLimit(limit))
}

// Reset drops and recreates the products table
func (s *Postgres) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewConnectivity("begin reset", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS products`,
		createProducts,
		`CREATE INDEX IF NOT EXISTS idx_products_subcategory ON products (subcategory, source)`,
		`CREATE INDEX IF NOT EXISTS idx_products_name_trgm ON products USING gin (name gin_trgm_ops)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.NewStore("store", "reset", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.NewStore("store", "commit reset", err)
	}
	logger.ForStore().Warn().Msg("Products table reset")
	return nil
}

// Close implements Repository
func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.readError("query labels", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, s.readError("scan label", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("iterate labels", err)
	}
	return out, nil
}

func (s *Postgres) queryProducts(ctx context.Context, query string, args ...interface{}) ([]product.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.readError("query products", err)
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, s.readError("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("iterate products", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scanner) (product.Product, error) {
	var p product.Product
	var code, image sql.NullString
	var source string
	if err := row.Scan(&p.ID, &code, &p.Name, &p.Price, &p.Category, &p.Subcategory,
		&p.Timestamp, &source, &image, &p.Link); err != nil {
		return product.Product{}, err
	}
	p.Source = product.Source(source)
	if code.Valid {
		p.Code = product.StringPtr(code.String)
	}
	if image.Valid {
		p.Image = product.StringPtr(image.String)
	}
	return p, nil
}

// readError classifies a failed read: unreachable store or bad statement
func (s *Postgres) readError(op string, err error) error {
	if isConnectionError(err) {
		return pkgerrors.NewConnectivity(op, err)
	}
	return pkgerrors.NewStore("store", op, err)
}

// isConnectionError reports errors that mean the server cannot be reached,
// as opposed to a statement the server rejected.
func isConnectionError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 is connection exception
		return pqErr.Code.Class() == "08"
	}
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr)
}
