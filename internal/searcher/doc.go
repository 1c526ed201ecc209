// Package searcher answers product lookups against the local mirror.
//
// Two modes are offered. Exact resolves a code as typed, checking the
// primary code space and then the alias space, with a normalized full-scan
// backstop for queries carrying accents or stray whitespace. Smart applies
// normalization to both sides, prefers exact normalized matches over prefix
// matches, treats thirteen-digit numeric queries as barcodes (alias space
// only), and ranks candidates by code and description relevance.
//
// Smart responses are cached in an LRU keyed by request hash; the sync
// coordinator invalidates the cache whenever the catalog is replaced.
package searcher
