// Package syncer reconciles the local catalog mirror with the remote.
//
// Reconciliation is pull-based: the client compares the remote's content
// fingerprint against the one it last applied and downloads both collections
// only when they differ (or when forced). Collections are replaced wholesale
// inside single transactions; the fingerprint is recorded last, so a crash
// mid-pass costs a re-download, never a silently stale mirror.
//
// Concurrent triggers coalesce into one in-flight run. Failures after data
// has already been mirrored degrade to serving the local copy; failures with
// nothing mirrored are fatal.
package syncer
