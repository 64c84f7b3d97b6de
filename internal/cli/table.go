package cli

import (
	"fmt"
	"strings"

	"github.com/hsdd/triage/internal/model"
)

// FormatQueueTable renders the flagged queue as a table, one row per item in
// the portal's triage order.
func FormatQueueTable(items []model.FlaggedItem) string {
	if len(items) == 0 {
		return FormatInfo("No flagged predictions found.")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-4s %-12s %-24s %-10s %-17s %s",
		"#", "PATIENT", "PREDICTED", "CONFIDENCE", "SUBMITTED", "STATUS")
	b.WriteString(TableHeaderStyle.Render(header))
	b.WriteString("\n")

	for i, item := range items {
		confidence := fmt.Sprintf("%d%%", int(item.Confidence*100+0.5))
		if item.Confidence < 0.5 {
			confidence = ErrorStyle.Render(fmt.Sprintf("%-10s", confidence))
		} else {
			confidence = WarningStyle.Render(fmt.Sprintf("%-10s", confidence))
		}

		submitted := "—"
		if !item.SubmittedAt.IsZero() {
			submitted = item.SubmittedAt.Local().Format("2006-01-02 15:04")
		}

		status := string(item.Status)
		if item.Status == model.StatusReviewed {
			status = SuccessStyle.Render(status)
		} else {
			status = InfoStyle.Render(status)
		}

		fmt.Fprintf(&b, "%-4d %-12s %-24s %s %-17s %s\n",
			i+1, item.SubjectRef, truncate(item.PredictedLabel, 24), confidence, submitted, status)
	}

	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
