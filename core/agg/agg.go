// Package agg merges raw activity events from the sync adapters into the
// per-student daily activity records.
package agg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// doneStatus is the Jira status that counts an issue as completed.
const doneStatus = "done"

// defaultIssueStatus is used when an issue_created event carries no status.
const defaultIssueStatus = "To Do"

// Store is what the aggregator needs from the durable backend.
type Store interface {
	contract.IntegrationLookup
	contract.RosterLookup
	GetWatermark(ctx context.Context, projectID string, src schema.Source) (schema.Watermark, error)
	ApplyBatch(ctx context.Context, batch schema.MergeBatch) (schema.MergeOutcome, error)
}

// Options configure an Aggregator.
type Options struct {
	Logger  logrus.FieldLogger
	Metrics *telemetry.Metrics
}

// Aggregator pulls events for a project and merges them into the store.
// Concurrent syncs of the same project share one run.
type Aggregator struct {
	store   Store
	adapter contract.SyncAdapter
	log     logrus.FieldLogger
	metrics *telemetry.Metrics
	group   singleflight.Group
}

// New creates an Aggregator.
func New(store Store, adapter contract.SyncAdapter, opts Options) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	return &Aggregator{store: store, adapter: adapter, log: opts.Logger, metrics: opts.Metrics}
}

// Sync fetches every linked source of a project and merges the new events.
// A project without integrations is a successful no-op. A failing source does
// not stop the others; its error is joined into the returned error and its
// watermark is left where it was.
func (a *Aggregator) Sync(ctx context.Context, projectID string) (schema.SyncResult, error) {
	v, err, _ := a.group.Do(projectID, func() (any, error) {
		started := time.Now()
		res, err := a.syncProject(ctx, projectID)
		a.metrics.ObserveSync(started, err)
		return res, err
	})
	res, _ := v.(schema.SyncResult)
	return res, err
}

// SyncError pairs a project with its sync failure.
type SyncError struct {
	ProjectID string
	Err       error
}

func (e SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.ProjectID, e.Err)
}

func (e SyncError) Unwrap() error {
	return e.Err
}

// SyncAll syncs projects with a pool of workers. Results keep the input order;
// failed projects are reported in the error slice and do not stop the others.
func (a *Aggregator) SyncAll(ctx context.Context, projectIDs []string, workers int) ([]schema.SyncResult, []SyncError) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]schema.SyncResult, len(projectIDs))
	errs := make([]error, len(projectIDs))

	idxCh := make(chan int, len(projectIDs))
	for i := range projectIDs {
		idxCh <- i
	}
	close(idxCh)

	var wg sync.WaitGroup
	for range min(workers, len(projectIDs)) {
		wg.Go(func() {
			for i := range idxCh {
				// Each worker writes to its own indices only.
				results[i], errs[i] = a.Sync(ctx, projectIDs[i])
			}
		})
	}
	wg.Wait()

	var failures []SyncError
	for i, err := range errs {
		if err != nil {
			failures = append(failures, SyncError{ProjectID: projectIDs[i], Err: err})
		}
	}
	return results, failures
}

func (a *Aggregator) syncProject(ctx context.Context, projectID string) (schema.SyncResult, error) {
	result := schema.SyncResult{ProjectID: projectID, NewWatermark: make(map[schema.Source]schema.Watermark)}

	integ, err := a.store.GetIntegration(ctx, projectID)
	if err != nil {
		return result, err
	}
	if !integ.HasAny() {
		a.log.WithField("project", projectID).Debug("no integrations linked, nothing to sync")
		return result, nil
	}

	members, err := a.store.GetActiveTeamMembers(ctx, projectID)
	if err != nil {
		return result, err
	}
	index := newIdentityIndex(members)

	var errs []error
	for _, src := range schema.AllSources {
		ref := integ.Ref(src)
		if ref == "" {
			continue
		}
		sr, err := a.syncSource(ctx, projectID, src, ref, index)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Sources = append(result.Sources, sr)
		result.EventsProcessed += sr.EventsProcessed
		result.RecordsUpserted += sr.RecordsUpserted
		result.NewWatermark[src] = sr.Watermark
	}
	return result, errors.Join(errs...)
}

func (a *Aggregator) syncSource(ctx context.Context, projectID string, src schema.Source, ref string, index identityIndex) (schema.SourceResult, error) {
	sr := schema.SourceResult{Source: src, Ref: ref}
	log := a.log.WithFields(logrus.Fields{"project": projectID, "source": src, "ref": ref})

	wm, err := a.store.GetWatermark(ctx, projectID, src)
	if err != nil {
		return sr, fmt.Errorf("failed to read %s watermark for %s: %w", src, projectID, err)
	}

	fetched, err := a.adapter.FetchEventsSince(ctx, src, ref, wm)
	if err != nil {
		log.WithError(err).Warn("fetch failed, watermark unchanged")
		return sr, fmt.Errorf("fetch %s %s: %w", src, ref, err)
	}
	sr.EventsFetched = len(fetched.Events)

	deltas := make([]schema.ActivityDelta, 0, len(fetched.Events))
	for _, ev := range fetched.Events {
		ev.Source = src
		delta := toDelta(ev)
		studentID, ok := index.lookup(src, ev.Actor)
		if ok {
			delta.StudentID = studentID
		} else {
			sr.Unattributed++
			attrErr := &contract.AttributionError{Source: src, EventID: ev.ID, Actor: ev.Actor}
			log.WithError(attrErr).Warn("event actor matches no team member")
		}
		deltas = append(deltas, delta)
	}

	if len(deltas) == 0 && !fetched.NewWatermark.After(wm) && fetched.NewWatermark.Cursor == wm.Cursor {
		sr.Watermark = wm
		log.Debug("no new events")
		return sr, nil
	}

	outcome, err := a.store.ApplyBatch(ctx, schema.MergeBatch{
		ProjectID: projectID,
		Source:    src,
		Deltas:    deltas,
		Watermark: fetched.NewWatermark,
	})
	if err != nil {
		log.WithError(err).Error("merge failed, watermark unchanged")
		return sr, fmt.Errorf("merge %s %s: %w", src, ref, err)
	}

	sr.EventsProcessed = outcome.EventsApplied
	sr.Duplicates = outcome.Duplicates
	sr.RecordsUpserted = outcome.RecordsUpserted
	sr.Watermark = outcome.Watermark

	a.metrics.AddSyncEvents(string(src), telemetry.OutcomeApplied, outcome.EventsApplied)
	a.metrics.AddSyncEvents(string(src), telemetry.OutcomeDuplicate, outcome.Duplicates)
	a.metrics.AddSyncEvents(string(src), telemetry.OutcomeUnattributed, sr.Unattributed)

	log.WithFields(logrus.Fields{
		"events":       sr.EventsFetched,
		"upserted":     sr.RecordsUpserted,
		"unattributed": sr.Unattributed,
		"duplicates":   sr.Duplicates,
	}).Info("merged source batch")
	return sr, nil
}

// toDelta maps an event to the counters it adds.
func toDelta(ev schema.RawEvent) schema.ActivityDelta {
	d := schema.ActivityDelta{
		EventID:    ev.ID,
		Source:     ev.Source,
		Kind:       ev.Kind,
		OccurredAt: ev.OccurredAt.UTC(),
	}
	switch ev.Kind {
	case schema.CommitEvent:
		d.Counters.Commits = 1
		d.Counters.LinesAdded = ev.LinesAdded
		d.Counters.LinesDeleted = ev.LinesDeleted
	case schema.PullRequestEvent:
		d.Counters.PullRequests = 1
	case schema.ReviewEvent:
		d.Counters.Reviews = 1
	case schema.IssueCreatedEvent:
		d.Counters.IssuesCreated = 1
		status := ev.IssueStatus
		if status == "" {
			status = defaultIssueStatus
		}
		d.Issue = issueState(ev, status)
	case schema.IssueTransitionEvent:
		if strings.EqualFold(strings.TrimSpace(ev.IssueStatus), doneStatus) {
			d.Counters.IssuesCompleted = 1
			d.Counters.StoryPoints = ev.StoryPoints
		}
		if ev.IssueStatus != "" {
			d.Issue = issueState(ev, ev.IssueStatus)
		}
	case schema.CommentEvent:
		d.Counters.Comments = 1
	case schema.WorklogEvent:
		d.Counters.TimeLoggedHours = ev.Hours
	}
	return d
}

func issueState(ev schema.RawEvent, status string) *schema.IssueState {
	if ev.IssueKey == "" {
		return nil
	}
	return &schema.IssueState{IssueKey: ev.IssueKey, Status: status, UpdatedAt: ev.OccurredAt.UTC()}
}

// identityIndex maps (source, lowercased account) to a student.
type identityIndex map[schema.Source]map[string]string

func newIdentityIndex(members []schema.TeamMember) identityIndex {
	idx := make(identityIndex)
	for _, m := range members {
		if m.Status != schema.ActiveParticipation {
			continue
		}
		for _, id := range m.Identities {
			if idx[id.Source] == nil {
				idx[id.Source] = make(map[string]string)
			}
			idx[id.Source][normalizeAccount(id.Account)] = m.StudentID
		}
	}
	return idx
}

func (idx identityIndex) lookup(src schema.Source, actor string) (string, bool) {
	if actor == "" {
		return "", false
	}
	id, ok := idx[src][normalizeAccount(actor)]
	return id, ok
}

func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
