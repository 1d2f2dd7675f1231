package iocache

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/huangsam/teampulse/schema"
)

// PrintCacheStatus prints cache status information.
func PrintCacheStatus(w io.Writer, status schema.CacheStatus) {
	_, _ = fmt.Fprintf(w, "Cache Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		_, _ = fmt.Fprintf(w, "Last Entry: %s\n", status.LastEntryTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "Oldest Entry: %s\n", status.OldestEntryTime.Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintf(w, "Size: %d bytes\n", status.TableSizeBytes)
}

// PrintStoreStatus prints activity store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Schema Version: %d (dirty: %t)\n", status.SchemaVersion, status.Dirty)
	_, _ = fmt.Fprintf(w, "Projects: %d\n", status.Projects)
	_, _ = fmt.Fprintf(w, "Activity Records: %d\n", status.ActivityRecords)
	_, _ = fmt.Fprintf(w, "Ledgered Events: %d\n", status.LedgeredEvents)
	_, _ = fmt.Fprintf(w, "Open Alerts: %d\n", status.OpenAlerts)
	if status.LastActivityDay != "" {
		_, _ = fmt.Fprintf(w, "Last Activity Day: %s\n", status.LastActivityDay)
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableRowCounts)) {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableRowCounts[table])
	}
}
