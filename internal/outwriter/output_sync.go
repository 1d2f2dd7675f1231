package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/teampulse/core/agg"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

var syncHeader = []string{"Project", "Source", "Ref", "Fetched", "Processed", "Duplicates", "Unattributed", "Records", "Watermark"}

type syncFailure struct {
	ProjectID string `json:"project_id"`
	Error     string `json:"error"`
}

type syncReport struct {
	Results  []schema.SyncResult `json:"results"`
	Failures []syncFailure       `json:"failures"`
}

func renderSyncResults(w io.Writer, results []schema.SyncResult, failures []agg.SyncError, opts Options, duration time.Duration) error {
	failed := make([]syncFailure, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, syncFailure{ProjectID: f.ProjectID, Error: f.Err.Error()})
	}

	switch opts.Output {
	case schema.JSONOut:
		if results == nil {
			results = []schema.SyncResult{}
		}
		return writeJSON(w, syncReport{Results: results, Failures: failed})
	case schema.CSVOut:
		return writeCSVWithHeader(w, syncHeader, func(cw *csv.Writer) error {
			for _, row := range syncRows(results) {
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		if err := writeTable(w, syncHeader, syncRows(results)); err != nil {
			return err
		}
		for _, f := range failed {
			_, _ = fmt.Fprintf(w, "  failed %s: %s\n", f.ProjectID, f.Error)
		}
		_, _ = fmt.Fprintf(w, "Synced %d projects (%d failed) in %d ms\n", len(results), len(failed), duration.Milliseconds())
		return nil
	}
}

func syncRows(results []schema.SyncResult) [][]string {
	var rows [][]string
	for _, r := range results {
		for _, s := range r.Sources {
			wm := "-"
			if !s.Watermark.At.IsZero() {
				wm = s.Watermark.At.UTC().Format(contract.DateTimeFormat)
			}
			rows = append(rows, []string{
				r.ProjectID,
				string(s.Source),
				s.Ref,
				strconv.Itoa(s.EventsFetched),
				strconv.Itoa(s.EventsProcessed),
				strconv.Itoa(s.Duplicates),
				strconv.Itoa(s.Unattributed),
				strconv.Itoa(s.RecordsUpserted),
				wm,
			})
		}
	}
	return rows
}

var jobHeader = []string{"ID", "Project", "Status", "Attempts", "Created", "Finished", "Error"}

func renderJobs(w io.Writer, jobs []schema.SyncJob, opts Options) error {
	switch opts.Output {
	case schema.JSONOut:
		if jobs == nil {
			jobs = []schema.SyncJob{}
		}
		return writeJSON(w, jobs)
	case schema.CSVOut:
		return writeCSVWithHeader(w, jobHeader, func(cw *csv.Writer) error {
			for _, j := range jobs {
				if err := cw.Write(jobRow(j, 0)); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		width := messageWidth(opts, 100)
		rows := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			rows = append(rows, jobRow(j, width))
		}
		return writeTable(w, jobHeader, rows)
	}
}

func jobRow(j schema.SyncJob, width int) []string {
	msg := j.Error
	if width > 0 {
		msg = contract.TruncateText(msg, width)
	}
	return []string{
		j.ID,
		j.ProjectID,
		string(j.Status),
		strconv.Itoa(j.Attempts),
		j.CreatedAt.UTC().Format(contract.DateTimeFormat),
		formatTime(j.FinishedAt),
		msg,
	}
}
