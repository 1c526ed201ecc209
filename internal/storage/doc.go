// Package storage provides SQLite-based persistence for the local catalog
// mirror.
//
// The store manages three collections:
//   - products: the mirrored product catalog, keyed by primary code
//   - secondary_codes: alias rows mapping alternate codes to primary codes
//   - config: scalar configuration (applied fingerprint, last-sync time)
//
// Products and secondary codes are owned by the sync coordinator and
// replaced wholesale on each sync pass; each replace is a single
// transaction, so a concurrent reader sees either the old or the new
// collection, never a half-written one. Config rows are upserted key by key
// and survive syncs and restarts.
//
// # Basic Usage
//
//	store, err := storage.New("~/.labelreader/labelreader.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	p, err := store.GetProduct(ctx, "P0001")
//
// # Build Tags
//
// Two build configurations select the SQLite driver:
//
// Pure Go (default):
//
//   - Uses modernc.org/sqlite
//
//   - No C compiler needed, cross-compiles cleanly
//
//     CGO_ENABLED=0 go build ./...
//
// CGO (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//   - Faster on large catalogs
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
package storage
