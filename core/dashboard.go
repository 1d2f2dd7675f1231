// Package core has the dashboard metrics, inactivity alerting and background sync logic.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/internal/telemetry"
	"github.com/huangsam/teampulse/schema"
	"github.com/sirupsen/logrus"
)

// dashboardCacheVersion defines the version of the cached snapshot layout.
const dashboardCacheVersion = 1

const dashboardKeyPrefix = "dashboard:"

// DashboardStore is the read side the metrics calculator needs.
type DashboardStore interface {
	contract.IntegrationLookup
	contract.RosterLookup
	GetProject(ctx context.Context, projectID string) (schema.Project, error)
	MemberTotals(ctx context.Context, projectID, fromDay string) ([]schema.ActivityTotals, error)
	CommitStats(ctx context.Context, projectID string) (schema.CommitStats, error)
	IssueStats(ctx context.Context, projectID string) (schema.IssueStats, error)
}

// DashboardOptions tune a DashboardService. Zero values fall back to the defaults.
type DashboardOptions struct {
	MemberWindowDays int
	AdvisoryDays     int
	Logger           logrus.FieldLogger
	Metrics          *telemetry.Metrics
	Now              func() time.Time
}

// DashboardService computes project dashboards behind a TTL cache.
type DashboardService struct {
	store    DashboardStore
	cache    contract.CacheStore
	ttl      time.Duration
	window   int
	advisory int
	log      logrus.FieldLogger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewDashboardService creates a DashboardService. A nil cache disables caching.
func NewDashboardService(store DashboardStore, cache contract.CacheStore, ttl time.Duration, opts DashboardOptions) *DashboardService {
	if opts.MemberWindowDays <= 0 {
		opts.MemberWindowDays = contract.DefaultMemberWindowDays
	}
	if opts.AdvisoryDays <= 0 {
		opts.AdvisoryDays = contract.DefaultAdvisoryDays
	}
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DashboardService{
		store:    store,
		cache:    cache,
		ttl:      ttl,
		window:   opts.MemberWindowDays,
		advisory: opts.AdvisoryDays,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

// DashboardCacheKey returns the cache key of a project's snapshot.
func DashboardCacheKey(projectID string) string {
	return dashboardKeyPrefix + projectID
}

// GetProjectDashboard returns the cached snapshot when it is still fresh and
// otherwise computes, caches and returns a new one. Cache failures never fail the read.
func (d *DashboardService) GetProjectDashboard(ctx context.Context, projectID string) (*schema.DashboardSnapshot, error) {
	key := DashboardCacheKey(projectID)

	if snap := d.checkCacheHit(key); snap != nil {
		d.metrics.CacheResult(telemetry.CacheHit)
		return snap, nil
	}
	d.metrics.CacheResult(telemetry.CacheMiss)

	snap, err := d.ComputeDashboard(ctx, projectID)
	if err != nil {
		return nil, err
	}
	d.cacheSnapshot(key, snap)
	return snap, nil
}

// checkCacheHit returns the cached snapshot, or nil when it is missing, stale or unreadable.
func (d *DashboardService) checkCacheHit(key string) *schema.DashboardSnapshot {
	if d.cache == nil {
		return nil
	}
	data, version, ts, err := d.cache.Get(key)
	if err != nil {
		return nil
	}
	if version != dashboardCacheVersion {
		return nil
	}
	if d.ttl > 0 && d.now().Sub(time.Unix(ts, 0)) > d.ttl {
		return nil
	}
	var snap schema.DashboardSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		d.log.WithError(err).WithField("key", key).Warn("discarding unreadable cached dashboard")
		return nil
	}
	return &snap
}

func (d *DashboardService) cacheSnapshot(key string, snap *schema.DashboardSnapshot) {
	if d.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err == nil {
		err = d.cache.Set(key, data, dashboardCacheVersion, d.now().Unix())
	}
	if err != nil {
		d.metrics.CacheResult(telemetry.CacheWriteError)
		d.log.WithError(err).WithField("key", key).Warn("dashboard cache write failed")
	}
}

// ComputeDashboard builds a snapshot straight from the store, bypassing the cache.
func (d *DashboardService) ComputeDashboard(ctx context.Context, projectID string) (*schema.DashboardSnapshot, error) {
	now := contract.NormalizeTime(d.now())

	project, err := d.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	integ, err := d.store.GetIntegration(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := d.store.GetActiveTeamMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	snap := &schema.DashboardSnapshot{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		GeneratedAt: now,
		TeamSize:    len(members),
		Leader:      findLeader(members),
	}

	if integ.GitHubRepoID != "" {
		stats, err := d.store.CommitStats(ctx, projectID)
		if err != nil {
			return nil, err
		}
		gh := &schema.GitHubSummary{
			RepoID:            integ.GitHubRepoID,
			TotalCommits:      stats.TotalCommits,
			TotalPullRequests: stats.TotalPullRequests,
			LastCommitAt:      stats.LastCommitAt,
		}
		if stats.LastCommitAt != nil {
			gh.InactiveDays = contract.CalculateDaysBetween(*stats.LastCommitAt, now)
		}
		snap.GitHub = gh
	}

	if integ.JiraProjectID != "" {
		stats, err := d.store.IssueStats(ctx, projectID)
		if err != nil {
			return nil, err
		}
		snap.Jira = &schema.JiraSummary{
			ProjectKey:      integ.JiraProjectID,
			TotalIssues:     stats.TotalIssues,
			InProgress:      stats.InProgress,
			Done:            stats.Done,
			LastIssueUpdate: stats.LastIssueUpdate,
		}
	}

	contributions, err := d.memberContributions(ctx, projectID, members, now)
	if err != nil {
		return nil, err
	}
	snap.Members = contributions
	return snap, nil
}

func (d *DashboardService) memberContributions(ctx context.Context, projectID string, members []schema.TeamMember, now time.Time) ([]schema.MemberContribution, error) {
	if len(members) == 0 {
		return nil, nil
	}
	fromDay := schema.DayOf(now.AddDate(0, 0, -d.window))
	totals, err := d.store.MemberTotals(ctx, projectID, fromDay)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]schema.ActivityTotals, len(totals))
	for _, t := range totals {
		byStudent[t.StudentID] = t
	}

	out := make([]schema.MemberContribution, 0, len(members))
	for _, m := range members {
		mc := schema.MemberContribution{
			StudentID:    m.StudentID,
			Name:         m.Name,
			Role:         m.Role,
			InactiveDays: schema.NoActivitySentinel,
		}
		if t, ok := byStudent[m.StudentID]; ok {
			mc.Commits = t.Counters.Commits
			mc.PullRequests = t.Counters.PullRequests
			mc.IssuesCompleted = t.Counters.IssuesCompleted
			mc.LastActivity = t.LastActivity
			if t.LastActivity != nil {
				mc.InactiveDays = contract.CalculateDaysBetween(*t.LastActivity, now)
			}
		}
		if mc.InactiveDays > d.advisory {
			mc.Advisory = d.advisoryMessage(mc.InactiveDays)
		}
		out = append(out, mc)
	}
	return out, nil
}

func (d *DashboardService) advisoryMessage(inactiveDays int) string {
	if inactiveDays == schema.NoActivitySentinel {
		return fmt.Sprintf("No recorded activity in the last %d days", d.window)
	}
	return fmt.Sprintf("Inactive for %d days", inactiveDays)
}

// findLeader returns the first active LEADER, or nil.
func findLeader(members []schema.TeamMember) *schema.MemberRef {
	for _, m := range members {
		if m.Role == schema.LeaderRole && m.Status == schema.ActiveParticipation {
			return &schema.MemberRef{StudentID: m.StudentID, Name: m.Name}
		}
	}
	return nil
}
