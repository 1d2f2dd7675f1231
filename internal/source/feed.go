package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// maxFeedLine bounds a single NDJSON record.
const maxFeedLine = 1 << 20

// FeedSource reads exported events from <dir>/<source>/<ref>.ndjson, one JSON event per line.
type FeedSource struct {
	dir string
	log logrus.FieldLogger
}

var _ contract.SyncAdapter = &FeedSource{} // Compile-time check

// NewFeedSource creates a feed adapter rooted at dir.
func NewFeedSource(dir string, log logrus.FieldLogger) *FeedSource {
	return &FeedSource{dir: dir, log: log}
}

// FetchEventsSince returns the events strictly newer than the watermark.
// A feed that has not been exported yet yields no events.
func (f *FeedSource) FetchEventsSince(ctx context.Context, src schema.Source, ref string, wm schema.Watermark) (schema.FetchResult, error) {
	path, err := resolveRef(f.dir, ref, string(src))
	if err != nil {
		return schema.FetchResult{}, err
	}
	path += ".ndjson"

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.FetchResult{NewWatermark: wm}, nil
	}
	if err != nil {
		return schema.FetchResult{}, fmt.Errorf("%w: open feed %s: %v", contract.ErrTransientFetch, path, err)
	}
	defer func() { _ = file.Close() }()

	var events []schema.RawEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxFeedLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return schema.FetchResult{}, fmt.Errorf("%w: %v", contract.ErrTransientFetch, err)
			}
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := decodeFeedEvent(line, src)
		if err != nil {
			f.log.WithFields(logrus.Fields{"feed": path, "line": lineNo}).WithError(err).Warn("skipping malformed feed event")
			continue
		}
		if !ev.OccurredAt.After(wm.At) {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return schema.FetchResult{}, fmt.Errorf("%w: read feed %s: %v", contract.ErrTransientFetch, path, err)
	}

	sortEvents(events)
	return schema.FetchResult{Events: events, NewWatermark: advance(wm, events)}, nil
}

// feedEvent is the on-disk shape. Kind and source are plain strings so they
// can be checked against the closed enums.
type feedEvent struct {
	schema.RawEvent
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

func decodeFeedEvent(line []byte, src schema.Source) (schema.RawEvent, error) {
	var fe feedEvent
	if err := json.Unmarshal(line, &fe); err != nil {
		return schema.RawEvent{}, err
	}
	ev := fe.RawEvent
	if ev.ID == "" {
		return ev, errors.New("event has no id")
	}
	if ev.OccurredAt.IsZero() {
		return ev, errors.New("event has no occurred_at")
	}
	if fe.Source != "" {
		parsed, err := schema.ParseSource(fe.Source)
		if err != nil {
			return ev, err
		}
		if parsed != src {
			return ev, fmt.Errorf("event source %s in a %s feed", parsed, src)
		}
	}
	kind, err := schema.ParseEventKind(fe.Kind)
	if err != nil {
		return ev, err
	}
	if ev.LinesAdded < 0 || ev.LinesDeleted < 0 || ev.StoryPoints < 0 || ev.Hours.IsNegative() {
		return ev, errors.New("event has negative counters")
	}
	ev.Source = src
	ev.Kind = kind
	ev.OccurredAt = ev.OccurredAt.UTC()
	return ev, nil
}
