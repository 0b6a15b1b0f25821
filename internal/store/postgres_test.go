package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricebot/config"
	"sjsage522/pricebot/internal/product"
	pkgerrors "sjsage522/pricebot/pkg/errors"
)

// openTestPostgres connects to PRICEBOT_TEST_DSN or skips the test
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("PRICEBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("PRICEBOT_TEST_DSN not set, skipping Postgres test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := open(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres is not available, skipping test: %v", err)
	}
	s := NewPostgres(db)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Reset(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresUpsertAndRead(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	res, err := s.UpsertAll(ctx, []product.Product{
		item("1", product.SourceArbuz, "Сыр A", "1 200 ₸", "Сыр"),
		item("2", product.SourceArbuz, "Сыр B", "abc", "Сыр"),
		item("3", product.SourceKaspi, "Сыр C", "950", "Сыр"),
		item("", product.SourceKaspi, "Без кода", "1", "Сыр"),
	})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Upserted: 3, Failed: 1}, res)

	_, err = s.UpsertAll(ctx, []product.Product{item("1", product.SourceArbuz, "Сыр A2", "1 100 ₸", "Сыр")})
	require.NoError(t, err)

	list, err := s.ListProducts(ctx, Filter{Subcategory: "Сыр"}, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Сыр C", list[0].Name)
	assert.Equal(t, "Сыр A2", list[1].Name)
	assert.Equal(t, "Сыр B", list[2].Name)

	counts, err := s.SourceCounts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["Сыр"])

	found, err := s.Search(ctx, SearchQuery{Name: "СЫР", Source: product.SourceArbuz, Region: "almaty", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	byIDs, err := s.GetProducts(ctx, []int64{list[0].ID, 987654})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(driver.ErrBadConn))
	assert.True(t, isConnectionError(&pq.Error{Code: "08006"}))
	assert.False(t, isConnectionError(&pq.Error{Code: "23505"}))
	assert.False(t, isConnectionError(sql.ErrNoRows))
	assert.False(t, isConnectionError(errors.New("syntax")))
}

func TestConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, testDatabaseConfig())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConnectivity))
}

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "pricebot",
		Password: "pricebot",
		Name:     "pricebot",
		SSLMode:  "disable",
	}
}
