package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ledgerColumns = []string{"project_id", "source", "event_id", "kind", "student_id", "occurred_at", "ingested_at"}

	recordKeys    = []string{"student_id", "project_id", "activity_date"}
	recordColumns = []string{
		"student_id", "project_id", "activity_date",
		"commits", "lines_added", "lines_deleted", "pull_requests", "reviews",
		"issues_created", "issues_completed", "story_points", "time_logged_centi", "comments",
		"updated_at",
	}

	// watermark_at and updated_at go last so MySQL compares against the stored value.
	watermarkColumns = []string{"project_id", "source", "cursor_value", "updated_at", "watermark_at"}
	issueColumns     = []string{"project_id", "issue_key", "status", "updated_at"}
)

const recordSelect = `SELECT student_id, project_id, activity_date, commits, lines_added, lines_deleted,
	pull_requests, reviews, issues_created, issues_completed, story_points, time_logged_centi, comments
	FROM activity_records`

type bucketKey struct {
	studentID string
	day       string
}

// toCenti converts hours to the stored centi-hour integer.
func toCenti(hours decimal.Decimal) int64 {
	return hours.Shift(2).Round(0).IntPart()
}

// fromCenti converts stored centi-hours back to hours.
func fromCenti(centi int64) decimal.Decimal {
	return decimal.New(centi, -2)
}

// GetWatermark returns the stored watermark for (project, source), or the zero value.
func (s *StoreImpl) GetWatermark(ctx context.Context, projectID string, src schema.Source) (schema.Watermark, error) {
	return s.readWatermark(ctx, s.db, projectID, src)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *StoreImpl) readWatermark(ctx context.Context, q queryer, projectID string, src schema.Source) (schema.Watermark, error) {
	var cursor string
	var atNanos int64
	err := q.QueryRowContext(ctx,
		s.bind("SELECT cursor_value, watermark_at FROM sync_watermarks WHERE project_id = ? AND source = ?"),
		projectID, string(src),
	).Scan(&cursor, &atNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Watermark{}, nil
	}
	if err != nil {
		return schema.Watermark{}, fmt.Errorf("failed to read watermark for %s/%s: %w", projectID, src, err)
	}
	return schema.Watermark{Cursor: cursor, At: time.Unix(0, atNanos).UTC()}, nil
}

// ApplyBatch ledgers every delta, merge-adds the new ones into their day buckets
// and advances the watermark, all inside one transaction. Deltas whose event id
// is already ledgered are counted as duplicates and contribute nothing.
func (s *StoreImpl) ApplyBatch(ctx context.Context, batch schema.MergeBatch) (schema.MergeOutcome, error) {
	for _, d := range batch.Deltas {
		if d.Counters.IsNegative() {
			s.log.WithFields(logrus.Fields{
				"project": batch.ProjectID,
				"source":  batch.Source,
				"event":   d.EventID,
			}).Error("rejecting batch with negative counter delta")
			return schema.MergeOutcome{}, fmt.Errorf("%w: negative counter delta for event %s", contract.ErrIntegrity, d.EventID)
		}
	}

	var out schema.MergeOutcome
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.applyBatchTx(ctx, tx, batch)
		return err
	})
	if err != nil {
		return schema.MergeOutcome{}, err
	}
	return out, nil
}

func (s *StoreImpl) applyBatchTx(ctx context.Context, tx *sql.Tx, batch schema.MergeBatch) (schema.MergeOutcome, error) {
	var out schema.MergeOutcome
	now := s.now().UTC()

	ledgerQuery := s.insertIgnoreQuery("activity_events", ledgerColumns, "project_id")
	buckets := make(map[bucketKey]schema.ActivityCounters)

	for _, d := range batch.Deltas {
		res, err := tx.ExecContext(ctx, ledgerQuery,
			batch.ProjectID, string(batch.Source), d.EventID, string(d.Kind),
			stringOrNull(d.StudentID), d.OccurredAt.Unix(), now.Unix(),
		)
		if err != nil {
			return out, fmt.Errorf("failed to ledger event %s: %w", d.EventID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return out, fmt.Errorf("failed to read ledger result for %s: %w", d.EventID, err)
		}
		if n == 0 {
			out.Duplicates++
			continue
		}
		out.EventsApplied++

		if d.Issue != nil {
			if err := s.upsertIssue(ctx, tx, batch.ProjectID, *d.Issue); err != nil {
				return out, err
			}
			if d.Counters.IssuesCompleted > 0 {
				first, err := s.claimCompletion(ctx, tx, batch.ProjectID, d.Issue.IssueKey, now)
				if err != nil {
					return out, err
				}
				if !first {
					d.Counters.IssuesCompleted = 0
					d.Counters.StoryPoints = 0
				}
			}
		}
		if d.StudentID == "" {
			continue
		}
		key := bucketKey{studentID: d.StudentID, day: d.Day()}
		buckets[key] = buckets[key].Add(d.Counters)
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	// Stable lock order across concurrent writers.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].studentID != keys[j].studentID {
			return keys[i].studentID < keys[j].studentID
		}
		return keys[i].day < keys[j].day
	})

	recordQuery := s.upsertQuery("activity_records", recordColumns, recordKeys, func(col, existing, incoming string) string {
		if col == "updated_at" {
			return incoming
		}
		return existing + " + " + incoming
	})
	for _, k := range keys {
		c := buckets[k]
		if _, err := tx.ExecContext(ctx, recordQuery,
			k.studentID, batch.ProjectID, k.day,
			c.Commits, c.LinesAdded, c.LinesDeleted, c.PullRequests, c.Reviews,
			c.IssuesCreated, c.IssuesCompleted, c.StoryPoints, toCenti(c.TimeLoggedHours), c.Comments,
			now.Unix(),
		); err != nil {
			return out, fmt.Errorf("failed to merge activity for %s on %s: %w", k.studentID, k.day, err)
		}
	}
	out.RecordsUpserted = len(keys)

	if !batch.Watermark.IsZero() {
		if err := s.advanceWatermark(ctx, tx, batch.ProjectID, batch.Source, batch.Watermark, now); err != nil {
			return out, err
		}
	}

	wm, err := s.readWatermark(ctx, tx, batch.ProjectID, batch.Source)
	if err != nil {
		return out, err
	}
	out.Watermark = wm
	return out, nil
}

// advanceWatermark moves the watermark forward. An older watermark leaves it
// unchanged; one with the same time replaces the cursor.
func (s *StoreImpl) advanceWatermark(ctx context.Context, tx *sql.Tx, projectID string, src schema.Source, wm schema.Watermark, now time.Time) error {
	notOlderWins := s.orderedWins("sync_watermarks", "watermark_at", ">=")
	query := s.upsertQuery("sync_watermarks", watermarkColumns, []string{"project_id", "source"}, notOlderWins)
	if _, err := tx.ExecContext(ctx, query,
		projectID, string(src), wm.Cursor, now.Unix(), wm.At.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to advance watermark for %s/%s: %w", projectID, src, err)
	}
	return nil
}

// upsertIssue records the latest known status of a Jira issue.
func (s *StoreImpl) upsertIssue(ctx context.Context, tx *sql.Tx, projectID string, issue schema.IssueState) error {
	query := s.upsertQuery("jira_issues", issueColumns, []string{"project_id", "issue_key"}, s.newerWins("jira_issues", "updated_at"))
	if _, err := tx.ExecContext(ctx, query,
		projectID, issue.IssueKey, issue.Status, issue.UpdatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("failed to record issue %s: %w", issue.IssueKey, err)
	}
	return nil
}

// claimCompletion marks an issue completed and reports whether this was its
// first completion. Reopened and repeated Done transitions report false.
func (s *StoreImpl) claimCompletion(ctx context.Context, tx *sql.Tx, projectID, issueKey string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		s.bind("UPDATE jira_issues SET completed_at = ? WHERE project_id = ? AND issue_key = ? AND completed_at = 0"),
		now.Unix(), projectID, issueKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark issue %s completed: %w", issueKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion result for %s: %w", issueKey, err)
	}
	return n > 0, nil
}

// newerWins returns an upsert setter that keeps the stored row unless the
// incoming orderCol is strictly greater. orderCol must be the last column.
func (s *StoreImpl) newerWins(table, orderCol string) func(col, existing, incoming string) string {
	return s.orderedWins(table, orderCol, ">")
}

// orderedWins is newerWins with the comparison operator spelled out.
func (s *StoreImpl) orderedWins(table, orderCol, op string) func(col, existing, incoming string) string {
	storedOrder, incomingOrder := s.refs(table, orderCol)
	return func(_, existing, incoming string) string {
		return fmt.Sprintf("CASE WHEN %s %s %s THEN %s ELSE %s END", incomingOrder, op, storedOrder, incoming, existing)
	}
}

// ListActivity returns records between two UTC days, inclusive. Empty bounds are open.
func (s *StoreImpl) ListActivity(ctx context.Context, projectID, fromDay, toDay string) ([]schema.ActivityRecord, error) {
	var where []string
	var args []any
	if projectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, projectID)
	}
	if fromDay != "" {
		where = append(where, "activity_date >= ?")
		args = append(args, fromDay)
	}
	if toDay != "" {
		where = append(where, "activity_date <= ?")
		args = append(args, toDay)
	}

	query := recordSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY project_id, activity_date, student_id"

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.ActivityRecord
	for rows.Next() {
		var r schema.ActivityRecord
		var centi int64
		if err := rows.Scan(
			&r.StudentID, &r.ProjectID, &r.Day,
			&r.Commits, &r.LinesAdded, &r.LinesDeleted, &r.PullRequests, &r.Reviews,
			&r.IssuesCreated, &r.IssuesCompleted, &r.StoryPoints, &centi, &r.Comments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}
		r.TimeLoggedHours = fromCenti(centi)
		records = append(records, r)
	}
	return records, rows.Err()
}

// MemberTotals sums each student's counters from fromDay onwards.
func (s *StoreImpl) MemberTotals(ctx context.Context, projectID, fromDay string) ([]schema.ActivityTotals, error) {
	query := s.bind(`SELECT student_id,
		SUM(commits), SUM(lines_added), SUM(lines_deleted), SUM(pull_requests), SUM(reviews),
		SUM(issues_created), SUM(issues_completed), SUM(story_points), SUM(time_logged_centi), SUM(comments),
		MAX(activity_date)
		FROM activity_records
		WHERE project_id = ? AND activity_date >= ?
		GROUP BY student_id
		ORDER BY student_id`)

	rows, err := s.db.QueryContext(ctx, query, projectID, fromDay)
	if err != nil {
		return nil, fmt.Errorf("failed to sum member activity for %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var totals []schema.ActivityTotals
	for rows.Next() {
		var t schema.ActivityTotals
		var c schema.ActivityCounters
		var centi int64
		var lastDay string
		if err := rows.Scan(&t.StudentID,
			&c.Commits, &c.LinesAdded, &c.LinesDeleted, &c.PullRequests, &c.Reviews,
			&c.IssuesCreated, &c.IssuesCompleted, &c.StoryPoints, &centi, &c.Comments,
			&lastDay,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member totals: %w", err)
		}
		c.TimeLoggedHours = fromCenti(centi)
		t.Counters = c
		if day, err := schema.ParseDay(lastDay); err == nil {
			t.LastActivity = &day
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// LastStudentActivity returns the latest activity day per student of a project.
func (s *StoreImpl) LastStudentActivity(ctx context.Context, projectID string) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind("SELECT student_id, MAX(activity_date) FROM activity_records WHERE project_id = ? GROUP BY student_id"),
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read student activity for %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	last := make(map[string]time.Time)
	for rows.Next() {
		var studentID, day string
		if err := rows.Scan(&studentID, &day); err != nil {
			return nil, fmt.Errorf("failed to scan student activity: %w", err)
		}
		t, err := schema.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("%w: bad activity day %q for %s", contract.ErrIntegrity, day, studentID)
		}
		last[studentID] = t
	}
	return last, rows.Err()
}

// LastProjectActivity returns when the newest ledgered event of a project occurred.
func (s *StoreImpl) LastProjectActivity(ctx context.Context, projectID string) (*time.Time, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		s.bind("SELECT MAX(occurred_at) FROM activity_events WHERE project_id = ?"),
		projectID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to read project activity for %s: %w", projectID, err)
	}
	return timeOrNil(last), nil
}

// CommitStats summarizes the GitHub events in the ledger of a project.
func (s *StoreImpl) CommitStats(ctx context.Context, projectID string) (schema.CommitStats, error) {
	var stats schema.CommitStats
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT
		COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		MAX(CASE WHEN kind = ? THEN occurred_at END)
		FROM activity_events
		WHERE project_id = ? AND source = ?`),
		string(schema.CommitEvent), string(schema.PullRequestEvent), string(schema.CommitEvent),
		projectID, string(schema.GitHubSource),
	).Scan(&stats.TotalCommits, &stats.TotalPullRequests, &last)
	if err != nil {
		return stats, fmt.Errorf("failed to read commit stats for %s: %w", projectID, err)
	}
	stats.LastCommitAt = timeOrNil(last)
	return stats, nil
}

// IssueStats summarizes the latest Jira issue states of a project.
func (s *StoreImpl) IssueStats(ctx context.Context, projectID string) (schema.IssueStats, error) {
	var stats schema.IssueStats
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN LOWER(status) = 'in progress' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN LOWER(status) = 'done' THEN 1 ELSE 0 END), 0),
		MAX(updated_at)
		FROM jira_issues
		WHERE project_id = ?`),
		projectID,
	).Scan(&stats.TotalIssues, &stats.InProgress, &stats.Done, &last)
	if err != nil {
		return stats, fmt.Errorf("failed to read issue stats for %s: %w", projectID, err)
	}
	stats.LastIssueUpdate = timeOrNil(last)
	return stats, nil
}
