package schema

import "time"

// CacheStatus represents the status of the dashboard cache.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// StoreStatus represents the status of the activity store.
type StoreStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	SchemaVersion   uint             `json:"schema_version"`
	Dirty           bool             `json:"dirty"`
	Projects        int              `json:"projects"`
	ActivityRecords int              `json:"activity_records"`
	LedgeredEvents  int              `json:"ledgered_events"`
	OpenAlerts      int              `json:"open_alerts"`
	LastActivityDay string           `json:"last_activity_day,omitempty"`
	TableRowCounts  map[string]int64 `json:"table_row_counts"`
}
