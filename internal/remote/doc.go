// Package remote fetches the authoritative catalog over a PostgREST-style
// row API with bounded memory growth: fixed-size pages in ascending key
// order, composed without gaps. Network failures, rejected credentials and
// malformed responses surface as distinct error kinds because the sync
// coordinator falls back differently for each.
package remote
