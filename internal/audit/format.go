package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a HistoryResult as a human-readable text timeline.
func FormatTimeline(result *HistoryResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Account: %s | No entries found.\n", result.Account)
	}

	var b strings.Builder

	// Header
	first := result.Summary.FirstTimestamp
	last := result.Summary.LastTimestamp
	firstTime := formatDateRange(first)
	lastTime := formatTimeOnly(last)
	b.WriteString(fmt.Sprintf("Account: %s | %s–%s UTC\n", result.Account, firstTime, lastTime))
	b.WriteString(separator + "\n")

	// Entries
	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		outcome := strings.ToUpper(e.Outcome)
		action := truncate(e.Action, 12)
		target := e.Folder
		if e.UID != 0 {
			target = fmt.Sprintf("%s/%d", e.Folder, e.UID)
		}
		target = truncate(target, 24)
		sender := truncate(e.Sender, 30)

		score := ""
		if e.Scanned {
			score = fmt.Sprintf("  score=%.2f", e.Score)
		}

		b.WriteString(fmt.Sprintf("%-10s %-18s %-13s %-24s %-30s%s\n",
			ts, outcome, action, target, sender, score))
	}

	// Footer
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a HistoryResult as indented JSON.
func FormatJSON(result *HistoryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s HistorySummary) string {
	parts := []string{}
	if s.AllowedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d allowed", s.AllowedCount))
	}
	if s.DeniedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d denied", s.DeniedCount))
	}
	if s.BlockedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", s.BlockedCount))
	}
	if s.HiddenCount > 0 {
		parts = append(parts, fmt.Sprintf("%d hidden", s.HiddenCount))
	}
	if s.ScanFailCount > 0 {
		parts = append(parts, fmt.Sprintf("%d scan-failure", s.ScanFailCount))
	}

	return fmt.Sprintf("Summary: %s | Max score: %.2f\n",
		strings.Join(parts, ", "), s.MaxScore)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
