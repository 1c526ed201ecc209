package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labelreader/labelreader/internal/config"
	"github.com/labelreader/labelreader/internal/searcher"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/internal/syncer"
	"github.com/labelreader/labelreader/pkg/types"
)

// Mode selects the search strategy.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeSmart Mode = "smart"
)

// App wires storage, search and sync into the surface the CLI talks to.
// All dependencies are explicit; a nil syncer means the remote side is not
// configured and sync requests fail with config.ErrIncomplete.
type App struct {
	store    storage.Store
	searcher *searcher.Searcher
	syncer   *syncer.Syncer
	log      *zap.Logger

	// Last-known counts, served when the store cannot answer.
	mu           sync.Mutex
	cachedCounts types.Stats
	countsPrimed bool
}

// New assembles an App.
func New(store storage.Store, search *searcher.Searcher, sync *syncer.Syncer, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		store:    store,
		searcher: search,
		syncer:   sync,
		log:      log,
	}
}

// Search looks up a single query string in the given mode. Exact mode
// honors the code as typed; smart mode normalizes and falls back to prefix
// matching.
func (a *App) Search(ctx context.Context, query string, mode Mode) ([]types.Product, error) {
	switch mode {
	case ModeExact:
		return a.searcher.Exact(ctx, query)
	case ModeSmart:
		resp, err := a.searcher.Smart(ctx, searcher.Request{Code: query})
		if err != nil {
			return nil, err
		}
		return resp.Results, nil
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", mode)
	}
}

// SearchSmart runs a smart search filtering by code and description
// together.
func (a *App) SearchSmart(ctx context.Context, code, description string, limit int) ([]types.Product, error) {
	resp, err := a.searcher.Smart(ctx, searcher.Request{Code: code, Description: description, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Sync runs one reconciliation pass against the remote catalog.
func (a *App) Sync(ctx context.Context, force bool) (types.SyncResult, error) {
	if a.syncer == nil {
		return types.SyncResult{Status: types.SyncFailed, Cause: config.ErrIncomplete}, config.ErrIncomplete
	}
	result, err := a.syncer.Sync(ctx, force)
	if result.Status == types.SyncUpdated {
		a.refreshCounts(ctx)
	}
	return result, err
}

// Stats reports mirror totals and the last applied sync time. When the
// store cannot answer, the last successfully read counts are returned
// alongside the error so status surfaces can stay populated.
func (a *App) Stats(ctx context.Context) (types.Stats, error) {
	stats, err := a.readStats(ctx)
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.countsPrimed {
			a.log.Warn("serving cached stats", zap.Error(err))
			return a.cachedCounts, err
		}
		return types.Stats{}, err
	}

	a.mu.Lock()
	a.cachedCounts = stats
	a.countsPrimed = true
	a.mu.Unlock()
	return stats, nil
}

func (a *App) readStats(ctx context.Context) (types.Stats, error) {
	products, err := a.store.CountProducts(ctx)
	if err != nil {
		return types.Stats{}, fmt.Errorf("counting products: %w", err)
	}
	aliases, err := a.store.CountSecondaryCodes(ctx)
	if err != nil {
		return types.Stats{}, fmt.Errorf("counting secondary codes: %w", err)
	}

	stats := types.Stats{TotalProducts: products, TotalAliases: aliases}
	raw, err := a.store.GetConfig(ctx, storage.ConfigLastSync)
	switch {
	case err == nil:
		if ts, perr := time.Parse(time.RFC3339, raw); perr == nil {
			stats.LastSync = &ts
		}
	case !errors.Is(err, storage.ErrNotFound):
		return types.Stats{}, fmt.Errorf("reading last sync time: %w", err)
	}
	return stats, nil
}

func (a *App) refreshCounts(ctx context.Context) {
	if stats, err := a.readStats(ctx); err == nil {
		a.mu.Lock()
		a.cachedCounts = stats
		a.countsPrimed = true
		a.mu.Unlock()
	}
}

// Reset wipes the local mirror, including the fingerprint, and drops cached
// search responses. The next sync runs as a cold start.
func (a *App) Reset(ctx context.Context) error {
	if err := a.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing local data: %w", err)
	}
	a.searcher.InvalidateCache()
	a.mu.Lock()
	a.cachedCounts = types.Stats{}
	a.countsPrimed = false
	a.mu.Unlock()
	return nil
}

// Close releases the underlying store.
func (a *App) Close() error {
	return a.store.Close()
}
