package storage

import (
	"context"

	"github.com/labelreader/labelreader/pkg/types"
)

// Store defines the persistence contract for the mirrored catalog.
type Store interface {
	// Bulk replace operations. Each call clears and repopulates its
	// collection inside a single transaction: concurrent readers see either
	// the old rows or the new rows, never a partial mix.
	ReplaceProducts(ctx context.Context, products []types.Product) error
	ReplaceSecondaryCodes(ctx context.Context, codes []types.SecondaryCode) error

	// Point lookups by primary key. Misses return ErrNotFound.
	GetProduct(ctx context.Context, code string) (*types.Product, error)
	GetSecondaryCode(ctx context.Context, code string) (*types.SecondaryCode, error)

	// ProductsBySecondaryCode returns products whose inline secondary code
	// equals code. Multiple products may share an inline alias.
	ProductsBySecondaryCode(ctx context.Context, code string) ([]types.Product, error)

	// Full scans, used by the search engine's normalized fallback and the
	// free-text candidate pass.
	ScanProducts(ctx context.Context) ([]types.Product, error)
	ScanSecondaryCodes(ctx context.Context) ([]types.SecondaryCode, error)

	CountProducts(ctx context.Context) (int, error)
	CountSecondaryCodes(ctx context.Context) (int, error)

	// Scalar configuration, upserted key by key, never bulk-cleared by sync.
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// ClearAll wipes products, aliases and configuration.
	ClearAll(ctx context.Context) error

	Close() error
}

// Config keys persisted across sessions.
const (
	// ConfigVersionHash holds the catalog fingerprint of the last applied
	// sync. It is written only after both collections persisted.
	ConfigVersionHash = "version_hash_local"
	// ConfigLastSync holds the RFC 3339 time of the last applied sync.
	ConfigLastSync = "last_sync"
)
