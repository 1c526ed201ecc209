package types

import "time"

// SyncStatus describes the outcome of a sync pass.
type SyncStatus string

const (
	SyncUpToDate SyncStatus = "up_to_date"
	SyncUpdated  SyncStatus = "updated"
	SyncFailed   SyncStatus = "failed"
)

// SyncResult reports what a sync pass did. Cause is set only when Status is
// SyncFailed; Products and Aliases are set only when Status is SyncUpdated.
type SyncResult struct {
	Status   SyncStatus
	Products int
	Aliases  int
	Cause    error
}

// Stats summarizes the local mirror for status surfaces.
type Stats struct {
	TotalProducts int
	TotalAliases  int
	LastSync      *time.Time
}
