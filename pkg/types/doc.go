// Package types defines the domain types shared across the catalog mirror:
// products, secondary (alias) codes, version records, and sync outcomes.
package types
