package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelreader/labelreader/internal/config"
	"github.com/labelreader/labelreader/internal/remote"
	"github.com/labelreader/labelreader/internal/searcher"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/internal/syncer"
	"github.com/labelreader/labelreader/pkg/types"
)

// newCatalogServer serves a minimal read API with three products, one alias
// and a version record.
func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var rows []map[string]any
		switch r.URL.Path {
		case "/rest/v1/version_control":
			rows = []map[string]any{{"version_hash": "v1", "updated_at": "2026-08-01T10:00:00Z"}}
		case "/rest/v1/products":
			if r.URL.Query().Get("offset") == "0" || r.URL.Query().Get("offset") == "" {
				rows = []map[string]any{
					{"code": "P001", "description": "Aceite de Oliva 1L", "unit_price": 8.95},
					{"code": "P002", "description": "Arroz 1kg", "unit_price": 1.45},
					{"code": "P003", "description": "Café Molido 250g", "unit_price": 3.75},
				}
			}
		case "/rest/v1/secondary_codes":
			if r.URL.Query().Get("offset") == "0" || r.URL.Query().Get("offset") == "" {
				rows = []map[string]any{
					{"secondary_code": "8412345678905", "primary_code": "P003"},
				}
			}
		default:
			http.NotFound(w, r)
			return
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupApp(t *testing.T) *App {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := newCatalogServer(t)
	client, err := remote.New(srv.URL, "test-key")
	require.NoError(t, err)

	search := searcher.New(store)
	sync := syncer.New(store, client, syncer.WithInvalidate(search.InvalidateCache))
	return New(store, search, sync, nil)
}

func TestColdStartScenario(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	// Nothing mirrored yet.
	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProducts)
	assert.Nil(t, stats.LastSync)

	result, err := a.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, types.SyncUpdated, result.Status)
	assert.Equal(t, 3, result.Products)
	assert.Equal(t, 1, result.Aliases)

	products, err := a.Search(ctx, "P001", ModeExact)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Aceite de Oliva 1L", products[0].Description)

	stats, err = a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 1, stats.TotalAliases)
	assert.NotNil(t, stats.LastSync)
}

func TestSecondSyncIsGated(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.Sync(ctx, false)
	require.NoError(t, err)

	result, err := a.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, types.SyncUpToDate, result.Status)
}

func TestSearchViaBarcode(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()
	_, err := a.Sync(ctx, false)
	require.NoError(t, err)

	products, err := a.Search(ctx, "8412345678905", ModeSmart)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P003", products[0].Code)
}

func TestSearchSmartWithDescription(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()
	_, err := a.Sync(ctx, false)
	require.NoError(t, err)

	// Accent-insensitive description filter.
	products, err := a.SearchSmart(ctx, "", "cafe molido", 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P003", products[0].Code)
}

func TestSearchUnsupportedMode(t *testing.T) {
	a := setupApp(t)
	_, err := a.Search(context.Background(), "P001", Mode("fuzzy"))
	assert.Error(t, err)
}

func TestSyncWithoutRemote(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a := New(store, searcher.New(store), nil, nil)
	_, err = a.Sync(context.Background(), false)
	assert.ErrorIs(t, err, config.ErrIncomplete)
}

func TestReset(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()
	_, err := a.Sync(ctx, false)
	require.NoError(t, err)

	require.NoError(t, a.Reset(ctx))

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProducts)

	// Fingerprint gone: the next sync downloads again.
	result, err := a.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, types.SyncUpdated, result.Status)
}

func TestStatsServesCachedCountsOnStorageFailure(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.ReplaceProducts(ctx, []types.Product{
		{Code: "P001", Description: "x"},
	}))

	failing := &flakyStore{Store: store}
	a := New(failing, searcher.New(failing), nil, nil)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProducts)

	failing.fail = true
	stats, err = a.Stats(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, stats.TotalProducts)
}

// flakyStore makes counts fail on demand.
type flakyStore struct {
	storage.Store
	fail bool
}

func (s *flakyStore) CountProducts(ctx context.Context) (int, error) {
	if s.fail {
		return 0, storage.ErrUnavailable
	}
	return s.Store.CountProducts(ctx)
}
