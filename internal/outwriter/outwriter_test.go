package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/teampulse/core/agg"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleSnapshot() *schema.DashboardSnapshot {
	last := testNow.Add(-48 * time.Hour)
	return &schema.DashboardSnapshot{
		ProjectID:   "p1",
		ProjectName: "Capstone",
		GeneratedAt: testNow,
		TeamSize:    2,
		Leader:      &schema.MemberRef{StudentID: "s1", Name: "Ada"},
		GitHub:      &schema.GitHubSummary{RepoID: "acme/app", TotalCommits: 12, TotalPullRequests: 3, LastCommitAt: &last, InactiveDays: 2},
		Members: []schema.MemberContribution{
			{StudentID: "s1", Name: "Ada", Role: schema.LeaderRole, Commits: 12, PullRequests: 3, LastActivity: &last, InactiveDays: 2},
			{StudentID: "s2", Name: "Bob", Role: schema.MemberRole, InactiveDays: schema.NoActivitySentinel, Advisory: "No recorded activity in the last 30 days"},
		},
	}
}

func sampleAlerts() []schema.InactiveAlert {
	return []schema.InactiveAlert{
		{
			ID: 7, TargetType: schema.StudentTarget, TargetID: "s2", ProjectID: "p1",
			AlertType: schema.InactivityAlert, Severity: schema.WarningSeverity,
			Message: "Bob has been inactive for 20 days", ThresholdDays: 14, InactiveDays: 20,
			CreatedAt: testNow, UpdatedAt: testNow,
		},
	}
}

func TestRenderDashboardText(t *testing.T) {
	var buf bytes.Buffer
	err := renderDashboard(&buf, sampleSnapshot(), Options{Output: schema.TextOut, ThresholdDays: 14, Width: 120}, 5*time.Millisecond)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Project: Capstone (p1)")
	assert.Contains(t, out, "Leader: Ada (s1)")
	assert.Contains(t, out, "GitHub acme/app: 12 commits, 3 pull requests")
	assert.NotContains(t, out, "Jira")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, contract.CriticalValue)
	assert.Contains(t, out, "! Bob: No recorded activity in the last 30 days")
	assert.Contains(t, out, "in 5 ms")
}

func TestRenderDashboardCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderDashboard(&buf, sampleSnapshot(), Options{Output: schema.CSVOut, ThresholdDays: 14}, 0))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, memberHeader, records[0])
	assert.Equal(t, []string{"s1", "Ada", "LEADER", "12", "3", "0", "2025-03-08T12:00:00Z", "2", contract.LowValue}, records[1])
	assert.Equal(t, "never", records[2][7])
	assert.Equal(t, "-", records[2][6])
}

func TestRenderDashboardJSON(t *testing.T) {
	var buf bytes.Buffer
	snap := sampleSnapshot()
	require.NoError(t, renderDashboard(&buf, snap, Options{Output: schema.JSONOut}, 0))

	var decoded schema.DashboardSnapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *snap, decoded)
}

func TestRenderAlerts(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderAlerts(&buf, nil, Options{Output: schema.TextOut}))
		assert.Equal(t, "No open alerts\n", buf.String())
	})

	t.Run("empty json is an array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderAlerts(&buf, nil, Options{Output: schema.JSONOut}))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderAlerts(&buf, sampleAlerts(), Options{Output: schema.CSVOut, ThresholdDays: 30}))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		// the alert's own threshold wins over the configured one
		assert.Equal(t, []string{"7", "STUDENT:s2", "p1", "WARNING", "20", contract.HighValue, "2025-03-10T12:00:00Z", "Bob has been inactive for 20 days"}, records[1])
	})

	t.Run("text truncates messages", func(t *testing.T) {
		alerts := sampleAlerts()
		alerts[0].Message = strings.Repeat("x", 200)
		var buf bytes.Buffer
		require.NoError(t, renderAlerts(&buf, alerts, Options{Output: schema.TextOut, Width: 80}))
		assert.Contains(t, buf.String(), "STUDENT:s2")
		assert.NotContains(t, buf.String(), strings.Repeat("x", 200))
		assert.Contains(t, buf.String(), "...")
	})
}

func TestRenderAlertSummary(t *testing.T) {
	summary := schema.AlertRunSummary{ProjectsScanned: 2, TargetsScanned: 6, Opened: 1, Resolved: 2, Failures: []string{"p3: boom"}}

	var text bytes.Buffer
	require.NoError(t, renderAlertSummary(&text, summary, Options{}, 12*time.Millisecond))
	assert.Contains(t, text.String(), "Scanned 2 projects (6 targets) in 12 ms: 1 opened, 0 updated, 2 resolved")
	assert.Contains(t, text.String(), "failed: p3: boom")

	var js bytes.Buffer
	require.NoError(t, renderAlertSummary(&js, summary, Options{Output: schema.JSONOut}, 0))
	var decoded schema.AlertRunSummary
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, summary, decoded)
}

func TestRenderSyncResults(t *testing.T) {
	results := []schema.SyncResult{{
		ProjectID:       "p1",
		EventsProcessed: 3,
		Sources: []schema.SourceResult{
			{Source: schema.GitHubSource, Ref: "acme/app", EventsFetched: 4, EventsProcessed: 3, Duplicates: 1, RecordsUpserted: 2, Watermark: schema.Watermark{At: testNow}},
			{Source: schema.JiraSource, Ref: "APP"},
		},
	}}
	failures := []agg.SyncError{{ProjectID: "p2", Err: errors.New("boom")}}

	var csvBuf bytes.Buffer
	require.NoError(t, renderSyncResults(&csvBuf, results, failures, Options{Output: schema.CSVOut}, 0))
	records, err := csv.NewReader(&csvBuf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"p1", "github", "acme/app", "4", "3", "1", "0", "2", "2025-03-10T12:00:00Z"}, records[1])
	assert.Equal(t, "-", records[2][8])

	var js bytes.Buffer
	require.NoError(t, renderSyncResults(&js, results, failures, Options{Output: schema.JSONOut}, 0))
	var report syncReport
	require.NoError(t, json.Unmarshal(js.Bytes(), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, []syncFailure{{ProjectID: "p2", Error: "boom"}}, report.Failures)

	var text bytes.Buffer
	require.NoError(t, renderSyncResults(&text, results, failures, Options{Width: 120}, time.Second))
	assert.Contains(t, text.String(), "failed p2: boom")
	assert.Contains(t, text.String(), "Synced 1 projects (1 failed) in 1000 ms")
}

func TestRenderJobs(t *testing.T) {
	finished := testNow.Add(time.Minute)
	jobs := []schema.SyncJob{
		{ID: "j1", ProjectID: "p1", Status: schema.JobCompleted, Attempts: 1, CreatedAt: testNow, FinishedAt: &finished},
		{ID: "j2", ProjectID: "p2", Status: schema.JobQueued, CreatedAt: testNow},
	}

	var buf bytes.Buffer
	require.NoError(t, renderJobs(&buf, jobs, Options{Output: schema.CSVOut}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"j1", "p1", "completed", "1", "2025-03-10T12:00:00Z", "2025-03-10T12:01:00Z", ""}, records[1])
	assert.Equal(t, "-", records[2][5])

	var empty bytes.Buffer
	require.NoError(t, renderJobs(&empty, nil, Options{Output: schema.JSONOut}))
	assert.Equal(t, "[]\n", empty.String())
}

func TestWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	ow := NewOutWriter(Options{Output: schema.JSONOut, OutputFile: path})
	require.NoError(t, ow.WriteAlerts(sampleAlerts()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []schema.InactiveAlert
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, int64(7), decoded[0].ID)
}

func TestNewOutWriterDefaultsThreshold(t *testing.T) {
	ow := NewOutWriter(Options{})
	assert.Equal(t, contract.DefaultAlertThresholdDays, ow.opts.ThresholdDays)

	cfg := &contract.Config{Output: schema.CSVOut, OutputFile: "x.csv", UseColors: true, AlertThresholdDays: 21}
	assert.Equal(t, Options{Output: schema.CSVOut, OutputFile: "x.csv", UseColors: true, ThresholdDays: 21}, OptionsFromConfig(cfg))
}

func TestMessageWidth(t *testing.T) {
	assert.Equal(t, 20, messageWidth(Options{Width: 60}, 90))
	assert.Equal(t, 50, messageWidth(Options{Width: 160}, 90))
	assert.Equal(t, 80, messageWidth(Options{Width: 400}, 90))
}
