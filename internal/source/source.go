// Package source implements the sync adapters that pull raw activity
// events out of external systems.
package source

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

// MultiSource routes a source reference to the adapters that can serve it.
// GitHub refs are read from the git mirror and the feed, merged by event id.
// Jira refs are read from the feed only. The merged watermark takes the
// latest time, and the git mirror's cursor when the mirror was read.
type MultiSource struct {
	git  contract.SyncAdapter
	feed contract.SyncAdapter
}

var _ contract.SyncAdapter = &MultiSource{} // Compile-time check

// NewMultiSource combines adapters. Either may be nil.
func NewMultiSource(git, feed contract.SyncAdapter) *MultiSource {
	return &MultiSource{git: git, feed: feed}
}

// FetchEventsSince implements contract.SyncAdapter.
func (m *MultiSource) FetchEventsSince(ctx context.Context, src schema.Source, ref string, wm schema.Watermark) (schema.FetchResult, error) {
	var adapters []contract.SyncAdapter
	if src == schema.GitHubSource && m.git != nil {
		adapters = append(adapters, m.git)
	}
	if m.feed != nil {
		adapters = append(adapters, m.feed)
	}
	if len(adapters) == 0 {
		return schema.FetchResult{}, fmt.Errorf("no sync adapter configured for source %s", src)
	}

	seen := make(map[string]struct{})
	merged := schema.FetchResult{NewWatermark: wm}
	cursor, fromGit := "", false
	for i, adapter := range adapters {
		res, err := adapter.FetchEventsSince(ctx, src, ref, wm)
		if err != nil {
			return schema.FetchResult{}, err
		}
		if i == 0 && src == schema.GitHubSource && m.git != nil {
			cursor, fromGit = res.NewWatermark.Cursor, true
		}
		for _, ev := range res.Events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged.Events = append(merged.Events, ev)
		}
		if res.NewWatermark.After(merged.NewWatermark) {
			merged.NewWatermark = res.NewWatermark
		}
	}
	if fromGit {
		merged.NewWatermark.Cursor = cursor
	}
	sortEvents(merged.Events)
	return merged, nil
}

// resolveRef maps an "owner/repo" style ref to a path under root/sub.
func resolveRef(root, ref, sub string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty source reference")
	}
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, "/") {
		return "", fmt.Errorf("source reference %q must be relative", ref)
	}
	for _, part := range strings.Split(ref, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid source reference %q", ref)
		}
	}
	return filepath.Join(root, sub, filepath.FromSlash(ref)), nil
}

// sortEvents orders events by time, then id.
func sortEvents(events []schema.RawEvent) {
	slices.SortStableFunc(events, func(a, b schema.RawEvent) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// advance returns the watermark after a sorted batch. It never moves backwards.
func advance(wm schema.Watermark, events []schema.RawEvent) schema.Watermark {
	if len(events) == 0 {
		return wm
	}
	last := events[len(events)-1]
	next := schema.Watermark{Cursor: last.ID, At: last.OccurredAt}
	if wm.After(next) {
		return wm
	}
	return next
}
