package source

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// GitMirrorSource reads commits from local mirrors laid out as <root>/<owner>/<repo>.
type GitMirrorSource struct {
	client contract.GitClient
	root   string
	log    logrus.FieldLogger
}

var _ contract.SyncAdapter = &GitMirrorSource{} // Compile-time check

// NewGitMirrorSource creates a git mirror adapter rooted at root.
func NewGitMirrorSource(client contract.GitClient, root string, log logrus.FieldLogger) *GitMirrorSource {
	return &GitMirrorSource{client: client, root: root, log: log}
}

// FetchEventsSince lists the commits reachable from the mirror's refs that
// were not reachable from the refs recorded in the watermark cursor, oldest
// first. Commit dates play no part in selection, so rebased or late-pushed
// commits are still found. The new cursor holds the ref heads that were read.
func (g *GitMirrorSource) FetchEventsSince(ctx context.Context, src schema.Source, ref string, wm schema.Watermark) (schema.FetchResult, error) {
	if src != schema.GitHubSource {
		return schema.FetchResult{}, fmt.Errorf("git mirror cannot serve source %s", src)
	}
	repoPath, err := resolveRef(g.root, ref, "")
	if err != nil {
		return schema.FetchResult{}, err
	}
	if _, err := os.Stat(repoPath); err != nil {
		return schema.FetchResult{}, fmt.Errorf("%w: git mirror for %s: %v", contract.ErrTransientFetch, ref, err)
	}

	// Heads are read before the log so a concurrent push is picked up next time.
	heads, err := g.client.GetRepoHeads(ctx, repoPath)
	if err != nil {
		return schema.FetchResult{}, fmt.Errorf("%w: git refs for %s: %v", contract.ErrTransientFetch, ref, err)
	}
	heads = objectIDs(heads)
	cursor := strings.Join(heads, " ")
	if len(heads) == 0 || cursor == wm.Cursor {
		return schema.FetchResult{NewWatermark: wm}, nil
	}

	out, err := g.client.GetActivityLog(ctx, repoPath, heads, objectIDs(strings.Fields(wm.Cursor)))
	if err != nil {
		return schema.FetchResult{}, fmt.Errorf("%w: git log for %s: %v", contract.ErrTransientFetch, ref, err)
	}

	events := parseCommitLog(out)
	sortEvents(events)
	next := advance(wm, events)
	next.Cursor = cursor
	g.log.WithFields(logrus.Fields{"ref": ref, "events": len(events), "heads": len(heads)}).Debug("read git mirror")
	return schema.FetchResult{Events: events, NewWatermark: next}, nil
}

// objectIDs keeps the full hex object ids of a list, dropping anything else.
// Cursors written by other adapters never reach git as revision arguments.
func objectIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if isObjectID(id) {
			out = append(out, strings.ToLower(id))
		}
	}
	return out
}

func isObjectID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// parseCommitLog turns "--sha|email|date" headers followed by numstat lines into commit events.
func parseCommitLog(out []byte) []schema.RawEvent {
	var events []schema.RawEvent
	var current *schema.RawEvent

	for _, l := range strings.Split(string(out), "\n") {
		l = strings.Trim(l, " \t\r\n'")
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, contract.GitLogCommitPrefix) {
			ev, ok := parseCommitHeader(l)
			if !ok {
				current = nil
				continue
			}
			events = append(events, ev)
			current = &events[len(events)-1]
			continue
		}
		if current == nil {
			continue
		}
		add, del, ok := parseNumstatLine(l)
		if ok {
			current.LinesAdded += add
			current.LinesDeleted += del
		}
	}
	return events
}

func parseCommitHeader(line string) (schema.RawEvent, bool) {
	parts := strings.SplitN(strings.TrimPrefix(line, contract.GitLogCommitPrefix), "|", 3)
	if len(parts) != 3 || parts[0] == "" {
		return schema.RawEvent{}, false
	}
	at, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return schema.RawEvent{}, false
	}
	return schema.RawEvent{
		ID:         parts[0],
		Source:     schema.GitHubSource,
		Kind:       schema.CommitEvent,
		Actor:      strings.ToLower(parts[1]),
		OccurredAt: at.UTC(),
	}, true
}

// parseNumstatLine reads "added<TAB>deleted<TAB>path". Binary files report "-".
func parseNumstatLine(line string) (int, int, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return 0, 0, false
	}
	return parseChurnValue(parts[0]), parseChurnValue(parts[1]), true
}

func parseChurnValue(s string) int {
	if s == "-" {
		return 0
	}
	if val, err := strconv.Atoi(s); err == nil && val >= 0 {
		return val
	}
	return 0
}
