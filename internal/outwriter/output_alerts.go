package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

var alertHeader = []string{"ID", "Target", "Project", "Severity", "Inactive Days", "Label", "Opened", "Message"}

func renderAlerts(w io.Writer, alerts []schema.InactiveAlert, opts Options) error {
	switch opts.Output {
	case schema.JSONOut:
		if alerts == nil {
			alerts = []schema.InactiveAlert{}
		}
		return writeJSON(w, alerts)
	case schema.CSVOut:
		return writeCSVWithHeader(w, alertHeader, func(cw *csv.Writer) error {
			for _, a := range alerts {
				if err := cw.Write(alertRow(a, opts.ThresholdDays, false, 0)); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		if len(alerts) == 0 {
			_, err := fmt.Fprintln(w, "No open alerts")
			return err
		}
		width := messageWidth(opts, 90)
		rows := make([][]string, 0, len(alerts))
		for _, a := range alerts {
			rows = append(rows, alertRow(a, opts.ThresholdDays, opts.UseColors, width))
		}
		return writeTable(w, alertHeader, rows)
	}
}

// alertRow formats one alert. A positive width truncates the message.
func alertRow(a schema.InactiveAlert, thresholdDays int, useColors bool, width int) []string {
	threshold := a.ThresholdDays
	if threshold <= 0 {
		threshold = thresholdDays
	}
	msg := a.Message
	if width > 0 {
		msg = contract.TruncateText(msg, width)
	}
	return []string{
		strconv.FormatInt(a.ID, 10),
		fmt.Sprintf("%s:%s", a.TargetType, a.TargetID),
		a.ProjectID,
		string(a.Severity),
		formatDays(a.InactiveDays, schema.NoActivitySentinel),
		inactivityLabel(a.InactiveDays, threshold, useColors),
		a.CreatedAt.UTC().Format(contract.DateTimeFormat),
		msg,
	}
}

func renderAlertSummary(w io.Writer, summary schema.AlertRunSummary, opts Options, duration time.Duration) error {
	switch opts.Output {
	case schema.JSONOut:
		return writeJSON(w, summary)
	case schema.CSVOut:
		header := []string{"Projects", "Targets", "Opened", "Updated", "Resolved", "Failures"}
		return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
			return cw.Write([]string{
				strconv.Itoa(summary.ProjectsScanned),
				strconv.Itoa(summary.TargetsScanned),
				strconv.Itoa(summary.Opened),
				strconv.Itoa(summary.Updated),
				strconv.Itoa(summary.Resolved),
				strconv.Itoa(len(summary.Failures)),
			})
		})
	default:
		_, _ = fmt.Fprintf(w, "Scanned %d projects (%d targets) in %d ms: %d opened, %d updated, %d resolved\n",
			summary.ProjectsScanned, summary.TargetsScanned, duration.Milliseconds(),
			summary.Opened, summary.Updated, summary.Resolved)
		for _, f := range summary.Failures {
			_, _ = fmt.Fprintf(w, "  failed: %s\n", f)
		}
		return nil
	}
}
