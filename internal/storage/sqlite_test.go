package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelreader/labelreader/pkg/types"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	// Use in-memory database for testing
	store, err := New(":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProducts(t *testing.T, store *SQLite, products ...types.Product) {
	t.Helper()
	require.NoError(t, store.ReplaceProducts(context.Background(), products))
}

func TestNew(t *testing.T) {
	store := setupTestDB(t)
	assert.NotNil(t, store.db)
}

func TestReplaceProducts(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store,
		types.Product{Code: "P001", Description: "Olive Oil 1L", UnitPrice: 8.95},
		types.Product{Code: "P002", Description: "Rice 1kg", UnitPrice: 1.45, Category: "pantry"},
	)

	n, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second replace clears the previous generation entirely.
	seedProducts(t, store,
		types.Product{Code: "P003", Description: "Flour 1kg", UnitPrice: 0.99},
	)

	n, err = store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetProduct(ctx, "P001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceProductsDuplicateCode(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Last write wins within a batch.
	seedProducts(t, store,
		types.Product{Code: "P001", Description: "first", UnitPrice: 1},
		types.Product{Code: "P001", Description: "second", UnitPrice: 2},
	)

	p, err := store.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "second", p.Description)
	assert.Equal(t, 2.0, p.UnitPrice)

	n, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceProductsEmpty(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store, types.Product{Code: "P001", Description: "x"})
	seedProducts(t, store) // empty batch clears the collection

	n, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetProduct(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store, types.Product{
		Code:          "P001",
		Description:   "Café Molido 250g",
		UnitPrice:     3.75,
		Category:      "coffee",
		SecondaryCode: "8412345678905",
	})

	p, err := store.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Café Molido 250g", p.Description)
	assert.Equal(t, 3.75, p.UnitPrice)
	assert.Equal(t, "coffee", p.Category)
	assert.Equal(t, "8412345678905", p.SecondaryCode)
}

func TestGetProduct_NotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceSecondaryCodes(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	codes := []types.SecondaryCode{
		{SecondaryCode: "5901234123457", PrimaryCode: "P001", Description: "EAN"},
		{SecondaryCode: "ALT-1", PrimaryCode: "P002", Description: "legacy code"},
	}
	require.NoError(t, store.ReplaceSecondaryCodes(ctx, codes))

	c, err := store.GetSecondaryCode(ctx, "5901234123457")
	require.NoError(t, err)
	assert.Equal(t, "P001", c.PrimaryCode)

	// Wholesale replacement, never a partial patch.
	require.NoError(t, store.ReplaceSecondaryCodes(ctx, codes[:1]))
	_, err = store.GetSecondaryCode(ctx, "ALT-1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.CountSecondaryCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceIndependence(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store, types.Product{Code: "P001", Description: "x"})
	require.NoError(t, store.ReplaceSecondaryCodes(ctx, []types.SecondaryCode{
		{SecondaryCode: "A1", PrimaryCode: "P001"},
	}))

	// Replacing one collection leaves the other untouched.
	seedProducts(t, store, types.Product{Code: "P002", Description: "y"})

	c, err := store.GetSecondaryCode(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "P001", c.PrimaryCode)
}

func TestProductsBySecondaryCode(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Two products legitimately sharing an inline alias: the anomaly the
	// search engine must surface rather than resolve.
	seedProducts(t, store,
		types.Product{Code: "P002", Description: "b", SecondaryCode: "SHARED"},
		types.Product{Code: "P001", Description: "a", SecondaryCode: "SHARED"},
		types.Product{Code: "P003", Description: "c", SecondaryCode: "OTHER"},
	)

	matches, err := store.ProductsBySecondaryCode(ctx, "SHARED")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "P001", matches[0].Code)
	assert.Equal(t, "P002", matches[1].Code)
}

func TestScanProducts(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store,
		types.Product{Code: "B", Description: "second"},
		types.Product{Code: "A", Description: "first"},
	)

	products, err := store.ScanProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "A", products[0].Code)
	assert.Equal(t, "B", products[1].Code)
}

func TestConfigRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetConfig(ctx, ConfigVersionHash)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetConfig(ctx, ConfigVersionHash, "abc123"))
	v, err := store.GetConfig(ctx, ConfigVersionHash)
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	// Upsert overwrites
	require.NoError(t, store.SetConfig(ctx, ConfigVersionHash, "def456"))
	v, err = store.GetConfig(ctx, ConfigVersionHash)
	require.NoError(t, err)
	assert.Equal(t, "def456", v)
}

func TestConfigSurvivesReplace(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.SetConfig(ctx, ConfigVersionHash, "abc123"))
	seedProducts(t, store, types.Product{Code: "P001", Description: "x"})

	v, err := store.GetConfig(ctx, ConfigVersionHash)
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestClearAll(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store, types.Product{Code: "P001", Description: "x"})
	require.NoError(t, store.ReplaceSecondaryCodes(ctx, []types.SecondaryCode{
		{SecondaryCode: "A1", PrimaryCode: "P001"},
	}))
	require.NoError(t, store.SetConfig(ctx, ConfigVersionHash, "abc"))

	require.NoError(t, store.ClearAll(ctx))

	n, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = store.CountSecondaryCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = store.GetConfig(ctx, ConfigVersionHash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrationsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	// Re-applying against an up-to-date schema is a no-op.
	require.NoError(t, ApplyMigrations(context.Background(), store.db))
}

func TestRollbackMigration(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedProducts(t, store, types.Product{Code: "P001", Description: "x"})
	require.NoError(t, RollbackMigration(ctx, store.db))

	// Tables are gone after rollback.
	_, err := store.CountProducts(ctx)
	assert.Error(t, err)

	// Rolling back again has nothing to remove.
	assert.Error(t, RollbackMigration(ctx, store.db))

	// Re-applying rebuilds a working, empty schema.
	require.NoError(t, ApplyMigrations(ctx, store.db))
	n, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
